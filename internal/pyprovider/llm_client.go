package pyprovider

import (
	"context"
	"fmt"
)

// GenerateRequest 表示生成文本的请求
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// TextResponse 表示生成文本的响应
type TextResponse struct {
	Text             string  `json:"text"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	FinishReason     string  `json:"finish_reason,omitempty"`
	ProcessingTime   float64 `json:"processing_time"`
}

// GenerateOption 是Generate方法的选项函数
type GenerateOption func(*GenerateRequest)

// WithModel 设置模型名称
func WithModel(model string) GenerateOption {
	return func(req *GenerateRequest) {
		req.Model = model
	}
}

// WithTemperature 设置温度
func WithTemperature(temperature float64) GenerateOption {
	return func(req *GenerateRequest) {
		req.Temperature = temperature
	}
}

// WithMaxTokens 设置最大生成token数
func WithMaxTokens(maxTokens int) GenerateOption {
	return func(req *GenerateRequest) {
		req.MaxTokens = maxTokens
	}
}

// LLMClient 是Python大模型服务的客户端
type LLMClient struct {
	client Client
}

// NewLLMClient 创建一个新的LLM客户端
func NewLLMClient(client Client) *LLMClient {
	return &LLMClient{client: client}
}

// Generate 根据提示词生成文本
func (c *LLMClient) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*TextResponse, error) {
	if prompt == "" {
		return nil, fmt.Errorf("empty prompt provided for generation")
	}

	req := &GenerateRequest{Prompt: prompt}
	for _, opt := range opts {
		opt(req)
	}

	var response TextResponse
	if err := c.client.Post(ctx, "/python/llm/generate", req, &response); err != nil {
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}
	return &response, nil
}
