package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/fyerfyer/clause-rag/internal/pyprovider"
)

// PythonEmbeddingClient 使用Python辅助服务的嵌入客户端
type PythonEmbeddingClient struct {
	client *pyprovider.EmbeddingClient
}

// NewPythonClient 创建一个新的Python嵌入服务客户端
func NewPythonClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	pyConfig := pyprovider.DefaultConfig()
	if cfg.BaseURL != "" {
		pyConfig.WithBaseURL(cfg.BaseURL)
	}
	pyConfig.WithTimeout(cfg.Timeout).
		WithRetry(cfg.MaxRetries, time.Second).
		WithAPIKey(cfg.APIKey)

	httpClient, err := pyprovider.NewClient(pyConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Python service HTTP client: %w", err)
	}

	return &PythonEmbeddingClient{
		client: pyprovider.NewEmbeddingClient(httpClient, cfg.Model),
	}, nil
}

// Embed 生成单条文本的向量表示
func (c *PythonEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	return c.client.Embed(ctx, text)
}

// EmbedBatch 批量生成多条文本的向量表示
func (c *PythonEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.client.EmbedBatch(ctx, texts)
}

// Name 返回模型名称
func (c *PythonEmbeddingClient) Name() string {
	return c.client.Model()
}

func init() {
	RegisterClient("python", NewPythonClient)
}
