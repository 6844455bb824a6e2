package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/api/middleware"
	"github.com/fyerfyer/clause-rag/api/model"
	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/embedding"
	"github.com/fyerfyer/clause-rag/internal/llm"
	"github.com/fyerfyer/clause-rag/internal/models"
	"github.com/fyerfyer/clause-rag/internal/retrieval"
	"github.com/fyerfyer/clause-rag/internal/services"
)

// RunHandler 处理文档问答相关的API请求
type RunHandler struct {
	qaService  *services.QAService  // 问答流程
	runService *services.RunService // 运行记录服务
	logger     *logrus.Logger       // 日志记录器
}

// NewRunHandler 创建新的问答处理器
func NewRunHandler(qaService *services.QAService, runService *services.RunService) *RunHandler {
	return &RunHandler{
		qaService:  qaService,
		runService: runService,
		logger:     middleware.GetLogger(),
	}
}

// Answer 同步回答文档问题
// POST /hackrx/run
func (h *RunHandler) Answer(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request", err.Error()))
		return
	}

	logger := h.logger.WithFields(logrus.Fields{
		middleware.FieldTraceID: middleware.TraceID(c),
		"documents":             len(req.Documents),
		"questions":             len(req.Questions),
		"strategy":              req.Strategy,
	})
	logger.Info("Answering questions")

	result, err := h.qaService.Run(c.Request.Context(), toServiceRequest(req))
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	logger.WithFields(logrus.Fields{
		"clauses":               result.ClauseCount,
		middleware.FieldLatency: result.Duration.String(),
	}).Info("Questions answered")

	c.JSON(http.StatusOK, model.AnswersResponse{Answers: result.Answers})
}

// SubmitRun 提交问答运行
// POST /api/v1/runs
func (h *RunHandler) SubmitRun(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request", err.Error()))
		return
	}

	run, err := h.runService.Submit(c.Request.Context(), toServiceRequest(req))
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	resp, err := model.NewRunResponse(run)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to decode run", err.Error()))
		return
	}

	status := http.StatusOK
	if h.runService.Async() {
		status = http.StatusAccepted
	}
	c.JSON(status, model.NewSuccessResponse(resp))
}

// GetRun 查询运行记录
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	var req model.RunIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid run id", err.Error()))
		return
	}

	run, err := h.runService.Get(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	resp, err := model.NewRunResponse(run)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to decode run", err.Error()))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListRuns 分页列出运行记录
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req model.RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query", err.Error()))
		return
	}

	runs, total, err := h.runService.List(c.Request.Context(), req.Offset(), req.GetPageSize(), models.RunStatus(req.Status))
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	items := make([]*model.RunResponse, 0, len(runs))
	for _, run := range runs {
		item, err := model.NewRunResponse(run)
		if err != nil {
			middleware.HandleError(c, middleware.NewInternalError("failed to decode run", err.Error()))
			return
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.RunListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Runs:     items,
	}))
}

// Health 健康检查
// GET /api/health
func (h *RunHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:     "ok",
		Strategies: h.qaService.Strategies(),
		Async:      h.runService != nil && h.runService.Async(),
	})
}

func toServiceRequest(req model.RunRequest) services.Request {
	return services.Request{
		Documents: req.Documents,
		Questions: req.Questions,
		TopK:      req.TopK,
		Strategy:  req.Strategy,
	}
}

// toAppError 将核心错误映射为HTTP错误
func toAppError(err error) error {
	var fetchErr *document.FetchError
	var embedErr embedding.EmbeddingError

	switch {
	case errors.Is(err, services.ErrNoDocuments),
		errors.Is(err, services.ErrNoQuestions),
		errors.Is(err, services.ErrEmptyQuestion),
		errors.Is(err, services.ErrUnknownStrategy),
		errors.Is(err, retrieval.ErrInvalidTopK),
		errors.Is(err, retrieval.ErrEmptyQuery):
		return middleware.NewValidationError("invalid request", err.Error())
	case errors.Is(err, document.ErrUnsupportedFormat):
		return middleware.NewValidationError("unsupported document format", err.Error())
	case errors.As(err, &fetchErr):
		return middleware.NewValidationError("failed to fetch document", err.Error())
	case errors.Is(err, retrieval.ErrEmptyCorpus):
		return middleware.NewUnprocessableError("document has no clauses long enough to index")
	case llm.IsGenerationError(err):
		return middleware.NewUpstreamError("language model request failed", err.Error())
	case errors.As(err, &embedErr):
		return middleware.NewUpstreamError("embedding request failed", err.Error())
	case errors.Is(err, models.ErrRunNotFound):
		return middleware.NewNotFoundError("run not found")
	default:
		return middleware.NewInternalError("failed to process request", err.Error())
	}
}
