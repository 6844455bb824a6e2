package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/clause-rag/api/handler"
	"github.com/fyerfyer/clause-rag/api/middleware"
)

// RouterConfig 路由配置
type RouterConfig struct {
	AuthToken string // 非空时问答接口要求Bearer令牌
}

// SetupRouter 设置API路由
// taskHandler 为nil表示未启用任务队列
func SetupRouter(runHandler *handler.RunHandler, taskHandler *handler.TaskHandler, cfg RouterConfig) *gin.Engine {
	RegisterValidators()

	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(Cors())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	auth := middleware.BearerAuth(cfg.AuthToken)

	// 兼容原有路径 - POST /hackrx/run
	router.POST("/hackrx/run", auth, runHandler.Answer)

	api := router.Group("/api")
	{
		// 健康检查API
		api.GET("/health", runHandler.Health)

		v1 := api.Group("/v1", auth)
		{
			// 同步问答 - POST /api/v1/hackrx/run
			v1.POST("/hackrx/run", runHandler.Answer)

			// 运行记录API
			runs := v1.Group("/runs")
			{
				runs.POST("", runHandler.SubmitRun)
				runs.GET("", runHandler.ListRuns)
				runs.GET("/:id", runHandler.GetRun)
				if taskHandler != nil {
					runs.GET("/:id/tasks", taskHandler.GetRunTasks)
				}
			}

			// 任务API
			if taskHandler != nil {
				v1.GET("/tasks/:id", taskHandler.GetTask)
			}
		}
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
