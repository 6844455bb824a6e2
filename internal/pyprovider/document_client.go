package pyprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/pkg/errors"
)

// DocumentParseResult 表示文档解析结果
type DocumentParseResult struct {
	Content string         `json:"content"`
	Title   string         `json:"title"`
	Meta    map[string]any `json:"meta"`
	Pages   int            `json:"pages"`
	Chars   int            `json:"chars"`
}

// DocumentParseResponse 表示文档解析API的响应
type DocumentParseResponse struct {
	Success       bool                `json:"success"`
	Result        DocumentParseResult `json:"result"`
	Error         string              `json:"error,omitempty"`
	ProcessTimeMs int                 `json:"process_time_ms"`
}

// DocumentClient 是Python文档解析服务的客户端
// 用作本地解析器失败时的后备
type DocumentClient struct {
	client Client
}

// NewDocumentClient 创建一个新的文档解析客户端
func NewDocumentClient(client Client) *DocumentClient {
	return &DocumentClient{client: client}
}

// ParseDocumentWithReader 上传文档内容并返回解析结果
func (c *DocumentClient) ParseDocumentWithReader(ctx context.Context, reader io.Reader, fileName string) (*DocumentParseResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create form file")
	}
	if _, err := io.Copy(part, reader); err != nil {
		return nil, errors.Wrap(err, "failed to copy file data")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}

	var response DocumentParseResponse
	if err := c.client.PostMultipart(ctx, "/python/documents/parse", writer.FormDataContentType(), body.Bytes(), &response); err != nil {
		return nil, errors.Wrap(err, "document parse request failed")
	}

	if !response.Success {
		return nil, fmt.Errorf("document parsing failed: %s", response.Error)
	}
	return &response.Result, nil
}
