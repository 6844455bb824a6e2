package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/clause-rag/api"
	"github.com/fyerfyer/clause-rag/api/handler"
	"github.com/fyerfyer/clause-rag/config"
	"github.com/fyerfyer/clause-rag/internal/app"
)

// 命令行参数，显式指定时覆盖配置文件
type flags struct {
	ConfigFile string // 配置文件路径
	Port       int    // 服务端口
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
	Worker     bool   // 是否在进程内运行队列工作者
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, f)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	logger := app.SetupLogger(cfg.Log)
	logger.Info("Starting clause QA service...")

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	if application.Worker != nil && f.Worker {
		if err := application.Worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		logger.Info("Task worker started")
	}

	// 初始化API处理器
	runHandler := handler.NewRunHandler(application.QA, application.Runs)
	var taskHandler *handler.TaskHandler
	if application.Queue != nil {
		taskHandler = handler.NewTaskHandler(application.Queue)
	}

	r := api.SetupRouter(runHandler, taskHandler, api.RouterConfig{AuthToken: cfg.Server.AuthToken})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":  srv.Addr,
			"async": application.Runs.Async(),
		}).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.IntVar(&f.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&f.Mode, "mode", "", "Run mode debug/release (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level debug/info/warn/error (overrides config)")
	flag.BoolVar(&f.Worker, "worker", true, "Run the task worker in this process when the queue is enabled")
	flag.Parse()
	return f
}

// applyFlags 用显式指定的命令行参数覆盖配置
func applyFlags(cfg *config.Config, f flags) {
	if f.Port > 0 {
		cfg.Server.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Server.Mode = f.Mode
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
}
