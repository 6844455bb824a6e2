package llm

import (
	"errors"
	"fmt"
)

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey    = 1001 // 无效的API密钥
	ErrCodeInvalidRequest   = 1002 // 无效的请求
	ErrCodeNetworkError     = 1003 // 网络连接错误
	ErrCodeRateLimited      = 1004 // 请求频率超限
	ErrCodeServerError      = 1005 // 服务器错误
	ErrCodeTimeout          = 1006 // 请求超时
	ErrCodeEmptyPrompt      = 1007 // 提示词为空
	ErrCodeContentFilter    = 1008 // 内容安全过滤
	ErrCodeGenerationFailed = 1011 // 生成失败或返回内容无法解析
	ErrCodeEmptyResponse    = 1012 // 模型返回空文本
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgContentFilter  = "content filtered due to safety concerns"
	ErrMsgEmptyResponse  = "model returned an empty answer"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}

// IsGenerationError 判断错误是否来自上游大模型
// 除了提示词为空、参数错误以外的LLMError都视为上游失败
func IsGenerationError(err error) bool {
	var llmErr LLMError
	if !errors.As(err, &llmErr) {
		return false
	}
	return llmErr.Code != ErrCodeEmptyPrompt && llmErr.Code != ErrCodeInvalidRequest
}

// IsLLMError 判断错误链中是否包含指定错误码
func IsLLMError(err error, code int) bool {
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Code == code
	}
	return false
}
