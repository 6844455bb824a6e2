package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/fyerfyer/clause-rag/internal/pyprovider"
)

// PythonClient 通过Python辅助服务调用本地大模型
type PythonClient struct {
	client *pyprovider.LLMClient
	model  string
	cfg    *Config
}

// NewPythonClient 创建Python服务生成客户端，BaseURL为服务地址
func NewPythonClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == "" {
		return nil, NewLLMError(ErrCodeInvalidRequest, "python service base url is required")
	}

	pyCfg := pyprovider.DefaultConfig().
		WithBaseURL(cfg.BaseURL).
		WithTimeout(cfg.Timeout).
		WithRetry(0, 0)
	if cfg.APIKey != "" {
		pyCfg = pyCfg.WithAPIKey(cfg.APIKey)
	}
	httpClient, err := pyprovider.NewClient(pyCfg)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, err.Error())
	}

	return &PythonClient{
		client: pyprovider.NewLLMClient(httpClient),
		model:  cfg.Model,
		cfg:    cfg,
	}, nil
}

// Name 返回模型名称
func (c *PythonClient) Name() string {
	if c.model == "" {
		return "python"
	}
	return c.model
}

// Generate 调用Python服务生成文本
func (c *PythonClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	opts := resolve(c.cfg, options)
	var pyOpts []pyprovider.GenerateOption
	if c.model != "" {
		pyOpts = append(pyOpts, pyprovider.WithModel(c.model))
	}
	if opts.Temperature != nil {
		pyOpts = append(pyOpts, pyprovider.WithTemperature(float64(*opts.Temperature)))
	}
	if opts.MaxTokens != nil {
		pyOpts = append(pyOpts, pyprovider.WithMaxTokens(*opts.MaxTokens))
	}

	resp, err := c.client.Generate(ctx, prompt, pyOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewLLMError(ErrCodeGenerationFailed, fmt.Sprintf("python llm request failed: %v", err))
	}

	return &Response{
		Text:       resp.Text,
		TokenCount: resp.TotalTokens,
		ModelName:  resp.Model,
		FinishTime: time.Now(),
	}, nil
}

func init() {
	RegisterClient("python", NewPythonClient)
}
