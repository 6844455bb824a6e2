package document

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"strings"
)

// ErrUnsupportedFormat 不支持的文档格式
var ErrUnsupportedFormat = errors.New("unsupported file type. Allowed: pdf, docx, email")

// ErrEmptyContent 文档中没有可提取的文本
var ErrEmptyContent = errors.New("no text content found in document")

// Parser 文档解析器接口
// 负责将不同格式的文档解析为纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// DOCX Word文档类型
	DOCX ContentType = "docx"
	// Email 邮件类型
	Email ContentType = "email"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// HTML 网页类型
	HTML ContentType = "html"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 根据文件名或URL创建对应的解析器
func ParserFactory(name string) (Parser, error) {
	return ParserFor(DetectContentType(name))
}

// ParserFor 根据内容类型创建解析器
func ParserFor(contentType ContentType) (Parser, error) {
	switch contentType {
	case PDF:
		return NewPDFParser(), nil
	case DOCX:
		return NewDOCXParser(), nil
	case Email:
		return NewEmailParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	case HTML:
		return NewHTMLParser(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// DetectContentType 根据扩展名检测内容类型
// 支持带查询参数的URL，查询串不参与判断
func DetectContentType(name string) ContentType {
	return contentTypeFromExt(Extension(name))
}

// Extension 返回文件名或URL路径的小写扩展名
func Extension(name string) string {
	p := name
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		p = u.Path
	} else if i := strings.IndexAny(name, "?#"); i >= 0 {
		p = name[:i]
	}
	return strings.ToLower(path.Ext(p))
}

func contentTypeFromExt(ext string) ContentType {
	switch ext {
	case ".pdf":
		return PDF
	case ".docx":
		return DOCX
	case ".eml", ".email":
		return Email
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	case ".html", ".htm":
		return HTML
	default:
		return Unknown
	}
}

// ContentTypeFromMIME 根据MIME类型检测内容类型
// 用于URL没有扩展名时参考响应头
func ContentTypeFromMIME(mimeType string) ContentType {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return Unknown
	}

	switch mediaType {
	case "application/pdf":
		return PDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return DOCX
	case "message/rfc822":
		return Email
	case "text/markdown":
		return Markdown
	case "text/plain":
		return PlainText
	case "text/html":
		return HTML
	default:
		return Unknown
	}
}

// ExtensionFor 返回内容类型对应的标准扩展名
func ExtensionFor(contentType ContentType) string {
	switch contentType {
	case PDF:
		return ".pdf"
	case DOCX:
		return ".docx"
	case Email:
		return ".eml"
	case Markdown:
		return ".md"
	case PlainText:
		return ".txt"
	case HTML:
		return ".html"
	default:
		return ""
	}
}

// parseFile 打开文件并交给ParseReader处理
func parseFile(p Parser, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}
