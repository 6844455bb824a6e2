package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fyerfyer/clause-rag/pkg/storage"
	"github.com/sirupsen/logrus"
)

// DefaultMaxDocumentBytes 单个文档允许下载的最大字节数
const DefaultMaxDocumentBytes = 50 << 20

// FetchError 文档下载失败
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download document %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to download document %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Loader 负责下载文档、暂存并解析为纯文本
type Loader struct {
	httpClient *http.Client
	store      storage.Storage
	maxBytes   int64
	fallback   Parser
	logger     *logrus.Logger
}

// LoaderOption 加载器选项
type LoaderOption func(*Loader)

// WithHTTPClient 设置下载使用的HTTP客户端
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// WithTimeout 设置下载超时时间
func WithTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) {
		l.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithMaxBytes 设置单个文档的大小上限
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithFallbackParser 本地解析失败时使用的后备解析器
func WithFallbackParser(p Parser) LoaderOption {
	return func(l *Loader) {
		l.fallback = p
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader 创建文档加载器
// store 为nil时不经过暂存，直接在内存中解析
func NewLoader(store storage.Storage, opts ...LoaderOption) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		store:      store,
		maxBytes:   DefaultMaxDocumentBytes,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 按顺序下载并解析所有文档
// 每个文档文本前加一个段落分隔符后拼接
func (l *Loader) Load(ctx context.Context, urls []string) (string, error) {
	var full string
	for _, u := range urls {
		text, err := l.loadURL(ctx, u)
		if err != nil {
			return "", err
		}
		full += ClauseSeparator + text
	}
	return full, nil
}

// LoadFiles 解析本地文件，拼接规则与Load一致
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (string, error) {
	var full string
	for _, p := range paths {
		contentType := DetectContentType(p)
		if contentType == Unknown {
			return "", fmt.Errorf("%s: %w", p, ErrUnsupportedFormat)
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}

		text, err := l.parse(ctx, data, filepath.Base(p), contentType)
		if err != nil {
			return "", err
		}
		full += ClauseSeparator + text
	}
	return full, nil
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := DetectContentType(rawURL)
	if contentType == Unknown {
		contentType = ContentTypeFromMIME(resp.Header.Get("Content-Type"))
	}
	if contentType == Unknown {
		return "", fmt.Errorf("%s: %w", rawURL, ErrUnsupportedFormat)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	if int64(len(data)) > l.maxBytes {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("document exceeds %d bytes", l.maxBytes)}
	}

	name := "document" + ExtensionFor(contentType)
	text, err := l.parse(ctx, data, name, contentType)
	if err != nil {
		return "", err
	}

	l.logger.WithFields(logrus.Fields{
		"url":          rawURL,
		"content_type": contentType,
		"bytes":        len(data),
		"chars":        len(text),
		"duration":     time.Since(start).String(),
	}).Info("Document loaded")

	return text, nil
}

// parse 暂存原始内容后解析，解析结束即删除暂存文件
func (l *Loader) parse(ctx context.Context, data []byte, name string, contentType ContentType) (string, error) {
	parser, err := ParserFor(contentType)
	if err != nil {
		return "", err
	}

	if l.store == nil {
		return l.parseBytes(parser, data, name)
	}

	info, err := l.store.Save(ctx, bytes.NewReader(data), name)
	if err != nil {
		return "", fmt.Errorf("failed to stage document: %w", err)
	}
	defer func() {
		if err := l.store.Delete(context.WithoutCancel(ctx), info.ID); err != nil {
			l.logger.WithError(err).WithField("file_id", info.ID).Warn("Failed to remove staged document")
		}
	}()

	rc, err := l.store.Get(ctx, info.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read staged document: %w", err)
	}
	defer rc.Close()

	staged, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read staged document: %w", err)
	}
	return l.parseBytes(parser, staged, name)
}

func (l *Loader) parseBytes(parser Parser, data []byte, name string) (string, error) {
	text, err := parser.ParseReader(bytes.NewReader(data), name)
	if err == nil || l.fallback == nil || errors.Is(err, ErrUnsupportedFormat) {
		return text, err
	}

	l.logger.WithError(err).WithField("file", name).Warn("Local parsing failed, trying fallback parser")
	text, fbErr := l.fallback.ParseReader(bytes.NewReader(data), name)
	if fbErr != nil {
		return "", fmt.Errorf("%w (fallback: %v)", err, fbErr)
	}
	return text, nil
}
