package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/api/middleware"
	"github.com/fyerfyer/clause-rag/api/model"
	"github.com/fyerfyer/clause-rag/pkg/taskqueue"
)

// TaskHandler 处理队列任务相关的API请求
type TaskHandler struct {
	queue  taskqueue.Queue // 任务队列
	logger *logrus.Logger  // 日志记录器
}

// NewTaskHandler 创建新的任务处理器
func NewTaskHandler(queue taskqueue.Queue) *TaskHandler {
	return &TaskHandler{
		queue:  queue,
		logger: middleware.GetLogger(),
	}
}

// GetTask 查询任务状态
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		middleware.HandleError(c, middleware.NewValidationError("task id is required"))
		return
	}

	task, err := h.queue.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("task not found"))
			return
		}
		h.logger.WithError(err).WithField("task_id", taskID).Error("Failed to get task")
		middleware.HandleError(c, middleware.NewInternalError("failed to get task", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTaskResponse(task)))
}

// GetRunTasks 查询运行关联的任务
// GET /api/v1/runs/:id/tasks
func (h *TaskHandler) GetRunTasks(c *gin.Context) {
	tasks, err := h.queue.GetTasksByRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to get run tasks", err.Error()))
		return
	}

	items := make([]*model.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, model.NewTaskResponse(task))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(items))
}
