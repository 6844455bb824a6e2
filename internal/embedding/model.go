package embedding

// DashScopeRequest 通义千问原生嵌入接口请求
type DashScopeRequest struct {
	Model      string                `json:"model"`
	Input      DashScopeRequestInput `json:"input"`
	Parameters *DashScopeParameters  `json:"parameters,omitempty"`
}

// DashScopeRequestInput 请求输入
type DashScopeRequestInput struct {
	Texts []string `json:"texts"`
}

// DashScopeParameters 可选参数
type DashScopeParameters struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// DashScopeResponse 通义千问原生嵌入接口响应
type DashScopeResponse struct {
	StatusCode int             `json:"status_code,omitempty"`
	RequestID  string          `json:"request_id"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Output     DashScopeOutput `json:"output"`
	Usage      DashScopeUsage  `json:"usage"`
}

// DashScopeOutput 嵌入输出结果
type DashScopeOutput struct {
	Embeddings []DashScopeEmbedding `json:"embeddings"`
}

// DashScopeEmbedding 单条文本的向量
type DashScopeEmbedding struct {
	Embedding []float32 `json:"embedding"`
	TextIndex int       `json:"text_index"`
}

// DashScopeUsage 资源使用情况
type DashScopeUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// OllamaEmbedRequest Ollama嵌入接口请求
type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaEmbedResponse Ollama嵌入接口响应
type OllamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}
