package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "text-embedding-004"

// GeminiClient 基于Google GenAI SDK的嵌入客户端
type GeminiClient struct {
	client     *genai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewGeminiClient 创建Gemini嵌入客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create genai client: %v", err))
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &GeminiClient{
		client:     client,
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
	}, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成向量，单次请求不超过batchSize条
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > c.batchSize {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("batch of %d exceeds limit %d", len(texts), c.batchSize))
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	config := &genai.EmbedContentConfig{}
	if c.dimensions > 0 {
		dim := int32(c.dimensions)
		config.OutputDimensionality = &dim
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("gemini embed request failed: %v", err))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb != nil {
			vectors[i] = emb.Values
		}
	}
	if err := checkCount(vectors, texts); err != nil {
		return nil, err
	}
	return vectors, nil
}

func init() {
	RegisterClient("gemini", NewGeminiClient)
}
