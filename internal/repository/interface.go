package repository

import "github.com/fyerfyer/clause-rag/internal/models"

// RunRepository 问答运行仓储接口
// 负责运行记录的存储和检索
type RunRepository interface {
	// Create 创建运行记录
	Create(run *models.Run) error

	// Update 更新运行记录
	Update(run *models.Run) error

	// GetByID 根据ID获取运行记录，不存在时返回models.ErrRunNotFound
	GetByID(id string) (*models.Run, error)

	// List 按创建时间倒序分页列出运行记录，status为空表示不过滤
	List(offset, limit int, status models.RunStatus) ([]*models.Run, int64, error)

	// UpdateStatus 更新运行状态，终态时记录结束时间
	UpdateStatus(id string, status models.RunStatus, errorMsg string) error

	// SaveAnswers 保存答案并将状态置为已完成
	SaveAnswers(id string, answers []string, clauseCount int) error

	// SetTaskID 关联队列任务ID
	SetTaskID(id string, taskID string) error

	// Delete 删除运行记录
	Delete(id string) error
}
