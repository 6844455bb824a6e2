package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskAnswerRun 问答运行任务：下载文档、建立索引并回答全部问题
	TaskAnswerRun TaskType = "answer_run"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// IsFinal 是否为终态
func (s TaskStatus) IsFinal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	RunID       string          `json:"run_id"`       // 关联的运行ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// AnswerRunPayload 问答运行任务载荷
type AnswerRunPayload struct {
	RunID    string `json:"run_id"`             // 运行ID
	Strategy string `json:"strategy,omitempty"` // 检索策略
	TopK     int    `json:"top_k,omitempty"`    // 检索条数
}

// AnswerRunResult 问答运行任务结果
type AnswerRunResult struct {
	RunID       string `json:"run_id"`       // 运行ID
	AnswerCount int    `json:"answer_count"` // 答案数量
	ClauseCount int    `json:"clause_count"` // 条款数量
	Strategy    string `json:"strategy"`     // 实际使用的策略
}
