package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fyerfyer/clause-rag/internal/pyprovider"
)

// RemoteParser 使用Python解析服务的文档解析器
// 作为Loader的后备解析器，处理本地解析器无法提取文本的文档
type RemoteParser struct {
	client *pyprovider.DocumentClient
}

// NewRemoteParser 创建远程解析器
func NewRemoteParser(client *pyprovider.DocumentClient) Parser {
	return &RemoteParser{client: client}
}

// Parse 通过Python服务解析文件
func (p *RemoteParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 通过Python服务从Reader解析文档
func (p *RemoteParser) ParseReader(r io.Reader, filename string) (string, error) {
	if p.client == nil {
		return "", errors.New("python client uninitialized")
	}

	result, err := p.client.ParseDocumentWithReader(context.Background(), r, filename)
	if err != nil {
		return "", fmt.Errorf("failed to parse document by python: %w", err)
	}
	if strings.TrimSpace(result.Content) == "" {
		return "", ErrEmptyContent
	}
	return result.Content, nil
}
