package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/internal/models"
	"github.com/fyerfyer/clause-rag/internal/repository"
	"github.com/fyerfyer/clause-rag/internal/retrieval"
	"github.com/fyerfyer/clause-rag/pkg/taskqueue"
)

// RunService 问答运行服务
// 持久化运行记录，启用队列时异步执行，否则在提交时同步执行
type RunService struct {
	qa      *QAService               // 问答流程
	repo    repository.RunRepository // 运行记录仓储
	queue   taskqueue.Queue          // 任务队列，可为nil
	timeout time.Duration            // 单次运行超时
	logger  *logrus.Logger           // 日志记录器
}

// RunOption 运行服务配置选项
type RunOption func(*RunService)

// WithRunQueue 设置任务队列
func WithRunQueue(queue taskqueue.Queue) RunOption {
	return func(s *RunService) {
		s.queue = queue
	}
}

// WithRunTimeout 设置单次运行超时
func WithRunTimeout(timeout time.Duration) RunOption {
	return func(s *RunService) {
		s.timeout = timeout
	}
}

// WithRunLogger 设置日志记录器
func WithRunLogger(logger *logrus.Logger) RunOption {
	return func(s *RunService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRunService 创建运行服务
func NewRunService(qa *QAService, repo repository.RunRepository, opts ...RunOption) *RunService {
	s := &RunService{
		qa:      qa,
		repo:    repo,
		timeout: 10 * time.Minute,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Async 是否异步执行
func (s *RunService) Async() bool {
	return s.queue != nil
}

// Submit 创建运行记录并执行
// 异步模式返回待处理记录，同步模式返回执行后的记录
func (s *RunService) Submit(ctx context.Context, req Request) (*models.Run, error) {
	if len(req.Documents) == 0 {
		return nil, ErrNoDocuments
	}
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}
	if req.TopK < 0 {
		return nil, retrieval.ErrInvalidTopK
	}
	strategy, err := s.qa.Strategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	run := &models.Run{
		ID:       uuid.New().String(),
		Status:   models.RunStatusPending,
		Strategy: strategy.Name(),
		TopK:     req.TopK,
	}
	if err := run.SetDocuments(req.Documents); err != nil {
		return nil, err
	}
	if err := run.SetQuestions(req.Questions); err != nil {
		return nil, err
	}
	if err := s.repo.Create(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"strategy":  run.Strategy,
		"documents": len(req.Documents),
		"questions": len(req.Questions),
	})

	if s.queue == nil {
		logger.Info("Executing run synchronously")
		if _, err := s.Execute(ctx, run.ID); err != nil {
			return nil, err
		}
		return s.repo.GetByID(run.ID)
	}

	payload := &taskqueue.AnswerRunPayload{RunID: run.ID, Strategy: run.Strategy, TopK: run.TopK}
	taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskAnswerRun, run.ID, payload)
	if err != nil {
		s.repo.UpdateStatus(run.ID, models.RunStatusFailed, err.Error())
		return nil, fmt.Errorf("failed to enqueue run: %w", err)
	}
	if err := s.repo.SetTaskID(run.ID, taskID); err != nil {
		logger.WithError(err).Warn("Failed to record task id")
	}
	run.TaskID = taskID

	logger.WithField("task_id", taskID).Info("Run enqueued")
	return run, nil
}

// Execute 执行已创建的运行，结果或错误写回记录
func (s *RunService) Execute(ctx context.Context, runID string) (*Result, error) {
	return s.execute(ctx, runID, true)
}

// execute 执行运行；lastAttempt为false时失败的运行退回pending等待队列重试
func (s *RunService) execute(ctx context.Context, runID string, lastAttempt bool) (*Result, error) {
	run, err := s.repo.GetByID(runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsFinal() {
		return nil, fmt.Errorf("%w: run %s is already %s", models.ErrInvalidRunStatus, runID, run.Status)
	}

	documents, err := run.DocumentList()
	if err != nil {
		return nil, err
	}
	questions, err := run.QuestionList()
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(runID, models.RunStatusProcessing, ""); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.WithField("run_id", runID)
	result, err := s.qa.Run(ctx, Request{
		Documents: documents,
		Questions: questions,
		TopK:      run.TopK,
		Strategy:  run.Strategy,
	})
	if err != nil {
		status := models.RunStatusFailed
		if lastAttempt {
			logger.WithError(err).Error("Run failed")
		} else {
			status = models.RunStatusPending
			logger.WithError(err).Warn("Run attempt failed, waiting for retry")
		}
		if updateErr := s.repo.UpdateStatus(runID, status, err.Error()); updateErr != nil {
			logger.WithError(updateErr).Error("Failed to record run failure")
		}
		return nil, err
	}

	if err := s.repo.SaveAnswers(runID, result.Answers, result.ClauseCount); err != nil {
		return nil, fmt.Errorf("failed to save answers: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"clauses": result.ClauseCount,
		"latency": result.Duration.String(),
	}).Info("Run completed")
	return result, nil
}

// Get 获取运行记录
func (s *RunService) Get(ctx context.Context, runID string) (*models.Run, error) {
	return s.repo.GetByID(runID)
}

// List 分页列出运行记录
func (s *RunService) List(ctx context.Context, offset, limit int, status models.RunStatus) ([]*models.Run, int64, error) {
	return s.repo.List(offset, limit, status)
}

// Handler 返回处理问答运行任务的队列处理器
func (s *RunService) Handler() taskqueue.Handler {
	return taskqueue.HandlerFunc(func(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
		var payload taskqueue.AnswerRunPayload
		if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
			return nil, err
		}
		if payload.RunID == "" {
			payload.RunID = task.RunID
		}

		// task.Attempts为此前已执行的次数
		result, err := s.execute(ctx, payload.RunID, task.Attempts >= task.MaxRetries)
		if err != nil {
			return nil, err
		}
		return &taskqueue.AnswerRunResult{
			RunID:       payload.RunID,
			AnswerCount: len(result.Answers),
			ClauseCount: result.ClauseCount,
			Strategy:    result.Strategy,
		}, nil
	})
}
