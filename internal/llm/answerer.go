package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FallbackAnswer 上下文不包含答案时模型应返回的固定句子
const FallbackAnswer = "The document does not provide this information."

// DefaultAnswerTemplate 条款问答提示词模板
// 包含变量：
// {{.Context}} - 检索到的条款
// {{.Question}} - 用户问题
const DefaultAnswerTemplate = `Role: You are a specialised expert for answering questions about insurance, legal, HR, or compliance documents.

Goal:
- Provide a direct and concise answer based only on the provided context.
- Keep the tone plain, clear, and easy to understand.

Instructions:
- Use only the given context clauses.
- Answer in 1-2 short sentences.
- Do NOT mention clause numbers or include legal citations.
- Avoid unnecessary explanations or reasoning unless the question demands it.
- If the answer is not found in the context, clearly say: "` + FallbackAnswer + `"
- Do not use bullet points, markdown, or special formatting.

Context:
{{.Context}}

User Query:
{{.Question}}`

// clauseLabel 每段上下文的标签，不带序号
const clauseLabel = "Clause:\n"

// formatContext 格式化上下文内容
func formatContext(contexts []string) string {
	blocks := make([]string, 0, len(contexts))
	for _, text := range contexts {
		blocks = append(blocks, clauseLabel+text)
	}
	return strings.Join(blocks, "\n\n")
}

// AnswererConfig 回答生成配置
type AnswererConfig struct {
	Template    string        // 提示词模板
	MaxTokens   int           // 最大Token数，0表示沿用客户端配置
	Temperature *float32      // 温度参数，nil表示沿用客户端配置
	Timeout     time.Duration // 单次调用超时，0表示不限制
}

// DefaultAnswererConfig 默认回答生成配置
func DefaultAnswererConfig() *AnswererConfig {
	return &AnswererConfig{
		Template: DefaultAnswerTemplate,
	}
}

// AnswererOption 回答生成配置选项
type AnswererOption func(*AnswererConfig)

// WithTemplate 设置提示词模板
func WithTemplate(template string) AnswererOption {
	return func(c *AnswererConfig) {
		c.Template = template
	}
}

// WithAnswerMaxTokens 设置最大Token数
func WithAnswerMaxTokens(tokens int) AnswererOption {
	return func(c *AnswererConfig) {
		c.MaxTokens = tokens
	}
}

// WithAnswerTemperature 设置温度参数
func WithAnswerTemperature(temp float32) AnswererOption {
	return func(c *AnswererConfig) {
		c.Temperature = &temp
	}
}

// WithAnswerTimeout 设置单次调用超时
func WithAnswerTimeout(timeout time.Duration) AnswererOption {
	return func(c *AnswererConfig) {
		c.Timeout = timeout
	}
}

// Answerer 根据检索到的条款构造提示词并调用大模型
// 每个问题只调用一次模型，不重试也不缓存
type Answerer struct {
	client Client
	config *AnswererConfig
}

// NewAnswerer 创建回答生成器
func NewAnswerer(client Client, opts ...AnswererOption) *Answerer {
	cfg := DefaultAnswererConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Template == "" {
		cfg.Template = DefaultAnswerTemplate
	}
	return &Answerer{client: client, config: cfg}
}

// Client 返回底层大模型客户端
func (a *Answerer) Client() Client {
	return a.client
}

// BuildPrompt 构建提示词
func (a *Answerer) BuildPrompt(question string, contexts []string) string {
	prompt := a.config.Template
	prompt = strings.ReplaceAll(prompt, "{{.Context}}", formatContext(contexts))
	prompt = strings.ReplaceAll(prompt, "{{.Question}}", question)
	return strings.TrimSpace(prompt)
}

// Answer 根据上下文回答问题，返回去除首尾空白的文本
func (a *Answerer) Answer(ctx context.Context, question string, contexts []string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	var opts []GenerateOption
	if a.config.MaxTokens > 0 {
		opts = append(opts, WithGenerateMaxTokens(a.config.MaxTokens))
	}
	if a.config.Temperature != nil {
		opts = append(opts, WithGenerateTemperature(*a.config.Temperature))
	}

	response, err := a.client.Generate(ctx, a.BuildPrompt(question, contexts), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", WrapError(err, ErrCodeGenerationFailed))
	}
	if response == nil {
		return "", NewLLMError(ErrCodeGenerationFailed, "nil response from model")
	}

	answer := strings.TrimSpace(response.Text)
	if answer == "" {
		return "", NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}
	return answer, nil
}
