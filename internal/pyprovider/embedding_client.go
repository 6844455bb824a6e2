package pyprovider

import (
	"context"
	"fmt"
	"net/url"
)

// EmbeddingRequest 表示单个文本的嵌入请求
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// BatchEmbeddingRequest 表示批量文本的嵌入请求
type BatchEmbeddingRequest struct {
	Texts []string `json:"texts"`
}

// EmbeddingResponse 表示单个文本的嵌入响应
type EmbeddingResponse struct {
	Success   bool      `json:"success"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

// BatchEmbeddingResponse 表示批量文本的嵌入响应
type BatchEmbeddingResponse struct {
	Success    bool        `json:"success"`
	Model      string      `json:"model"`
	Count      int         `json:"count"`
	Dimension  int         `json:"dimension"`
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbeddingClient 是Python嵌入服务的客户端
type EmbeddingClient struct {
	client Client
	model  string
}

// NewEmbeddingClient 创建一个新的嵌入客户端
func NewEmbeddingClient(client Client, model string) *EmbeddingClient {
	if model == "" {
		model = "default"
	}
	return &EmbeddingClient{client: client, model: model}
}

// Model 返回使用的模型名称
func (c *EmbeddingClient) Model() string {
	return c.model
}

// Embed 将单个文本转换为嵌入向量
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text provided for embedding")
	}

	var response EmbeddingResponse
	path := "/python/embeddings?model=" + url.QueryEscape(c.model)
	if err := c.client.Post(ctx, path, EmbeddingRequest{Text: text}, &response); err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if !response.Success {
		return nil, fmt.Errorf("embedding generation failed: API returned failure status")
	}
	return response.Embedding, nil
}

// EmbedBatch 批量将文本转换为嵌入向量
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty text list provided for batch embedding")
	}

	var response BatchEmbeddingResponse
	path := "/python/embeddings/batch?model=" + url.QueryEscape(c.model)
	if err := c.client.Post(ctx, path, BatchEmbeddingRequest{Texts: texts}, &response); err != nil {
		return nil, fmt.Errorf("failed to generate batch embeddings: %w", err)
	}
	if !response.Success {
		return nil, fmt.Errorf("batch embedding generation failed: API returned failure status")
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("batch embedding returned %d vectors for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}
