package model

import (
	"time"

	"github.com/fyerfyer/clause-rag/internal/models"
	"github.com/fyerfyer/clause-rag/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// AnswersResponse 同步问答响应，答案与问题一一对应
type AnswersResponse struct {
	Answers []string `json:"answers"`
}

// RunResponse 运行记录响应
type RunResponse struct {
	RunID       string     `json:"run_id"`                 // 运行ID
	Status      string     `json:"status"`                 // 运行状态
	Strategy    string     `json:"strategy"`               // 检索策略
	TopK        int        `json:"top_k,omitempty"`        // 检索条数
	Documents   []string   `json:"documents"`              // 文档地址
	Questions   []string   `json:"questions"`              // 问题列表
	Answers     []string   `json:"answers,omitempty"`      // 答案列表
	ClauseCount int        `json:"clause_count,omitempty"` // 条款数量
	Error       string     `json:"error,omitempty"`        // 错误信息
	TaskID      string     `json:"task_id,omitempty"`      // 队列任务ID
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 结束时间
}

// NewRunResponse 将运行记录转换为响应
func NewRunResponse(run *models.Run) (*RunResponse, error) {
	documents, err := run.DocumentList()
	if err != nil {
		return nil, err
	}
	questions, err := run.QuestionList()
	if err != nil {
		return nil, err
	}
	answers, err := run.AnswerList()
	if err != nil {
		return nil, err
	}

	return &RunResponse{
		RunID:       run.ID,
		Status:      string(run.Status),
		Strategy:    run.Strategy,
		TopK:        run.TopK,
		Documents:   documents,
		Questions:   questions,
		Answers:     answers,
		ClauseCount: run.ClauseCount,
		Error:       run.Error,
		TaskID:      run.TaskID,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
	}, nil
}

// RunListResponse 运行列表响应
type RunListResponse struct {
	Total    int64          `json:"total"`     // 总数量
	Page     int            `json:"page"`      // 当前页码
	PageSize int            `json:"page_size"` // 每页大小
	Runs     []*RunResponse `json:"runs"`      // 运行列表
}

// TaskResponse 队列任务状态响应
type TaskResponse struct {
	TaskID      string     `json:"task_id"`                // 任务ID
	Type        string     `json:"type"`                   // 任务类型
	RunID       string     `json:"run_id"`                 // 关联的运行ID
	Status      string     `json:"status"`                 // 任务状态
	Error       string     `json:"error,omitempty"`        // 错误信息
	Attempts    int        `json:"attempts"`               // 尝试次数
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间
}

// NewTaskResponse 将队列任务转换为响应
func NewTaskResponse(task *taskqueue.Task) *TaskResponse {
	return &TaskResponse{
		TaskID:      task.ID,
		Type:        string(task.Type),
		RunID:       task.RunID,
		Status:      string(task.Status),
		Error:       task.Error,
		Attempts:    task.Attempts,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string   `json:"status"`     // 服务状态
	Strategies []string `json:"strategies"` // 可用检索策略
	Async      bool     `json:"async"`      // 是否启用异步运行
}
