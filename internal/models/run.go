package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus 问答运行状态类型
type RunStatus string

const (
	// RunStatusPending 已提交，等待处理
	RunStatusPending RunStatus = "pending"
	// RunStatusProcessing 处理中
	RunStatusProcessing RunStatus = "processing"
	// RunStatusCompleted 处理完成
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed 处理失败
	RunStatusFailed RunStatus = "failed"
)

// IsFinal 是否为终态
func (s RunStatus) IsFinal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run 一次文档问答运行记录
// 文档地址、问题与答案以JSON数组保存，答案与问题一一对应
type Run struct {
	ID          string         `gorm:"primaryKey"`         // 运行ID
	Status      RunStatus      `gorm:"not null;index"`     // 运行状态
	Strategy    string         `gorm:"size:20;not null"`   // 检索策略
	TopK        int            `gorm:"not null;default:0"` // 检索条数，0表示策略默认值
	Documents   datatypes.JSON `gorm:"type:json"`          // 文档地址列表
	Questions   datatypes.JSON `gorm:"type:json"`          // 问题列表
	Answers     datatypes.JSON `gorm:"type:json"`          // 答案列表
	ClauseCount int            `gorm:"not null;default:0"` // 条款数量
	Error       string         `gorm:"type:text"`          // 错误信息
	TaskID      string         `gorm:"size:64;index"`      // 关联的队列任务ID
	CreatedAt   time.Time      `gorm:"not null;index"`     // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`           // 更新时间
	CompletedAt *time.Time     `gorm:"index"`              // 结束时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *Run) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = RunStatusPending
	}
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *Run) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Run) TableName() string {
	return "runs"
}

// SetDocuments 写入文档地址列表
func (r *Run) SetDocuments(urls []string) error {
	data, err := encodeStrings(urls)
	r.Documents = data
	return err
}

// SetQuestions 写入问题列表
func (r *Run) SetQuestions(questions []string) error {
	data, err := encodeStrings(questions)
	r.Questions = data
	return err
}

// SetAnswers 写入答案列表
func (r *Run) SetAnswers(answers []string) error {
	data, err := encodeStrings(answers)
	r.Answers = data
	return err
}

// DocumentList 读取文档地址列表
func (r *Run) DocumentList() ([]string, error) {
	return decodeStrings(r.Documents)
}

// QuestionList 读取问题列表
func (r *Run) QuestionList() ([]string, error) {
	return decodeStrings(r.Questions)
}

// AnswerList 读取答案列表
func (r *Run) AnswerList() ([]string, error) {
	return decodeStrings(r.Answers)
}

func encodeStrings(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func decodeStrings(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
