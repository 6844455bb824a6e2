package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/clause-rag/internal/database"
	"github.com/fyerfyer/clause-rag/internal/models"
)

// runRepository 运行记录仓储实现
type runRepository struct {
	db *gorm.DB
}

// NewRunRepository 使用全局数据库连接创建仓储实例
func NewRunRepository() RunRepository {
	return &runRepository{db: database.MustDB()}
}

// NewRunRepositoryWithDB 使用指定的数据库连接创建仓储实例
func NewRunRepositoryWithDB(db *gorm.DB) RunRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &runRepository{db: db}
}

// Create 创建运行记录
func (r *runRepository) Create(run *models.Run) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.db.Create(run).Error
}

// Update 更新运行记录
func (r *runRepository) Update(run *models.Run) error {
	if run.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	return r.db.Save(run).Error
}

// GetByID 根据ID获取运行记录
func (r *runRepository) GetByID(id string) (*models.Run, error) {
	var run models.Run
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
		}
		return nil, err
	}
	return &run, nil
}

// List 分页列出运行记录
func (r *runRepository) List(offset, limit int, status models.RunStatus) ([]*models.Run, int64, error) {
	var (
		runs  []*models.Run
		total int64
	)

	query := r.db.Model(&models.Run{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// UpdateStatus 更新运行状态
func (r *runRepository) UpdateStatus(id string, status models.RunStatus, errorMsg string) error {
	switch status {
	case models.RunStatusPending, models.RunStatusProcessing, models.RunStatusCompleted, models.RunStatusFailed:
	default:
		return fmt.Errorf("%w: %s", models.ErrInvalidRunStatus, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	if status.IsFinal() {
		now := time.Now()
		updates["completed_at"] = &now
	}

	return r.updates(id, updates)
}

// SaveAnswers 保存答案
func (r *runRepository) SaveAnswers(id string, answers []string, clauseCount int) error {
	run := models.Run{}
	if err := run.SetAnswers(answers); err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	now := time.Now()
	return r.updates(id, map[string]interface{}{
		"answers":      run.Answers,
		"clause_count": clauseCount,
		"status":       models.RunStatusCompleted,
		"error":        "",
		"completed_at": &now,
		"updated_at":   now,
	})
}

// SetTaskID 关联队列任务ID
func (r *runRepository) SetTaskID(id string, taskID string) error {
	return r.updates(id, map[string]interface{}{
		"task_id":    taskID,
		"updated_at": time.Now(),
	})
}

// Delete 删除运行记录
func (r *runRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Run{}).Error
}

func (r *runRepository) updates(id string, updates map[string]interface{}) error {
	result := r.db.Model(&models.Run{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	return nil
}
