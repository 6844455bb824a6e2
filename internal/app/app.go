package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/clause-rag/api/middleware"
	"github.com/fyerfyer/clause-rag/config"
	"github.com/fyerfyer/clause-rag/internal/cache"
	"github.com/fyerfyer/clause-rag/internal/database"
	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/embedding"
	"github.com/fyerfyer/clause-rag/internal/llm"
	"github.com/fyerfyer/clause-rag/internal/pyprovider"
	"github.com/fyerfyer/clause-rag/internal/repository"
	"github.com/fyerfyer/clause-rag/internal/retrieval"
	"github.com/fyerfyer/clause-rag/internal/services"
	"github.com/fyerfyer/clause-rag/pkg/storage"
	"github.com/fyerfyer/clause-rag/pkg/taskqueue"
)

// App 组装好的应用组件
// Runs只由New创建，Queue和Worker在未启用队列时为nil
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	QA      *services.QAService
	Runs    *services.RunService
	Queue   taskqueue.Queue
	Worker  taskqueue.Worker
	closers []func() error
}

// SetupLogger 按配置设置共享日志记录器，配置了文件时同时写入滚动日志
func SetupLogger(cfg config.LogConfig) *logrus.Logger {
	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "" {
			_ = os.MkdirAll(dir, 0755)
		}
		output = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	middleware.ConfigureLogger(cfg.Level, output)
	return middleware.GetLogger()
}

// NewQA 只创建问答流程，不涉及数据库和队列
// 出错时已创建的资源会被释放
func NewQA(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.setupQA(cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// setupQA 创建检索策略、回答器和文档加载器
func (a *App) setupQA(cfg *config.Config) error {
	logger := a.Logger
	if cfg.Document.LicenseKey != "" {
		if err := document.ConfigureLicense(cfg.Document.LicenseKey); err != nil {
			logger.WithError(err).Warn("Failed to configure docx license, falling back to XML reader")
		}
	}

	llmClient, err := setupLLM(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	answerer := llm.NewAnswerer(llmClient, llm.WithAnswerTimeout(cfg.LLM.Timeout))

	var embedder embedding.Client
	if cfg.Embed.Enable {
		embedder, err = a.setupEmbedding(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize embedding client: %w", err)
		}
	}

	sparse, err := retrieval.NewStrategy(retrievalConfig(cfg, retrieval.StrategySparse), nil, logger)
	if err != nil {
		return err
	}
	strategies := map[string]retrieval.Strategy{retrieval.StrategySparse: sparse}
	if embedder != nil {
		dense, err := retrieval.NewStrategy(retrievalConfig(cfg, retrieval.StrategyDense), embedder, logger)
		if err != nil {
			return err
		}
		strategies[retrieval.StrategyDense] = dense
	}

	defaultStrategy, ok := strategies[cfg.Retrieval.Strategy]
	if !ok {
		return fmt.Errorf("retrieval strategy %s is not available", cfg.Retrieval.Strategy)
	}

	loader, err := a.setupLoader(cfg)
	if err != nil {
		return err
	}

	opts := []services.QAOption{services.WithLoader(loader), services.WithQALogger(logger)}
	for _, s := range strategies {
		opts = append(opts, services.WithStrategy(s))
	}
	a.QA = services.NewQAService(defaultStrategy, answerer, opts...)

	logger.WithFields(logrus.Fields{
		"llm":        llmClient.Name(),
		"strategies": a.QA.Strategies(),
		"default":    a.QA.DefaultStrategy(),
	}).Info("QA pipeline initialized")
	return nil
}

// New 创建完整应用：问答流程、运行记录持久化和可选的任务队列
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a, err := NewQA(cfg, logger)
	if err != nil {
		return nil, err
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Type = cfg.Database.Type
	dbCfg.DSN = cfg.Database.DSN
	if err := database.Setup(dbCfg, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, database.Close)

	runOpts := []services.RunOption{
		services.WithRunTimeout(cfg.Queue.RunTimeout),
		services.WithRunLogger(logger),
	}

	if cfg.Queue.Enable {
		queue, err := setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		a.Queue = queue
		a.closers = append(a.closers, queue.Close)
		runOpts = append(runOpts, services.WithRunQueue(queue))
	}

	a.Runs = services.NewRunService(a.QA, repository.NewRunRepository(), runOpts...)

	if rq, ok := a.Queue.(*taskqueue.RedisQueue); ok {
		a.Worker = taskqueue.NewRedisWorker(rq, queueConfig(cfg.Queue))
		a.Worker.RegisterHandler(taskqueue.TaskAnswerRun, a.Runs.Handler())
	}
	return a, nil
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	if a.Worker != nil {
		a.Worker.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func retrievalConfig(cfg *config.Config, strategy string) retrieval.Config {
	rc := retrieval.DefaultConfig()
	rc.Strategy = strategy
	rc.SparseMinLength = cfg.Retrieval.SparseMinLength
	rc.SparseTopK = cfg.Retrieval.SparseTopK
	rc.MaxFeatures = cfg.Retrieval.MaxFeatures
	rc.DenseMinLength = cfg.Retrieval.DenseMinLength
	rc.DenseTopK = cfg.Retrieval.DenseTopK
	rc.IndexType = cfg.VectorDB.Type
	if cfg.Embed.BatchSize > 0 {
		rc.BatchSize = cfg.Embed.BatchSize
	}
	if cfg.Retrieval.Workers > 0 {
		rc.Workers = cfg.Retrieval.Workers
	}
	return rc
}

// setupLLM 设置大语言模型客户端
func setupLLM(appCfg *config.Config) (llm.Client, error) {
	cfg := appCfg.LLM
	endpoint := cfg.Endpoint
	if cfg.Provider == "python" {
		if endpoint == "" {
			endpoint = appCfg.PythonService.BaseURL
		}
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required for provider %s", cfg.Provider)
	}

	return llm.NewClient(cfg.Provider,
		llm.WithAPIKey(cfg.APIKey),
		llm.WithBaseURL(endpoint),
		llm.WithModel(cfg.Model),
		llm.WithTimeout(cfg.Timeout),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	)
}

// setupEmbedding 设置嵌入模型客户端，按需包装缓存
func (a *App) setupEmbedding(cfg *config.Config) (embedding.Client, error) {
	ec := cfg.Embed
	endpoint := ec.Endpoint
	switch ec.Provider {
	case "ollama":
	case "python":
		if endpoint == "" {
			endpoint = cfg.PythonService.BaseURL
		}
	default:
		if ec.APIKey == "" {
			return nil, fmt.Errorf("embedding API key is required for provider %s", ec.Provider)
		}
	}

	client, err := embedding.NewClient(ec.Provider,
		embedding.WithAPIKey(ec.APIKey),
		embedding.WithBaseURL(endpoint),
		embedding.WithModel(ec.Model),
		embedding.WithTimeout(ec.Timeout),
		embedding.WithDimensions(ec.Dimensions),
		embedding.WithBatchSize(ec.BatchSize),
	)
	if err != nil {
		return nil, err
	}
	if !ec.Cache {
		return client, nil
	}

	c, err := setupCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if closer, ok := c.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}
	return embedding.NewCachedClient(client, c, cfg.Cache.TTL, a.Logger), nil
}

// setupCache 设置缓存服务
func setupCache(cfg config.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	if cfg.TTL > 0 {
		cacheConfig.DefaultTTL = cfg.TTL
	}
	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}
	return cache.NewCache(cacheConfig)
}

// setupStorage 设置下载文档的暂存，none表示只在内存中解析
func setupStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return storage.New(storage.Config{
		Type:  cfg.Type,
		Local: storage.LocalConfig{Path: cfg.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupLoader 设置文档加载器，可选Python解析服务作为后备
func (a *App) setupLoader(cfg *config.Config) (*document.Loader, error) {
	store, err := setupStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	opts := []document.LoaderOption{
		document.WithTimeout(cfg.Fetch.Timeout),
		document.WithMaxBytes(cfg.Fetch.MaxBytes),
		document.WithLogger(a.Logger),
	}

	if cfg.Document.PythonFallback {
		ps := cfg.PythonService
		pyCfg := pyprovider.DefaultConfig().
			WithBaseURL(ps.BaseURL).
			WithTimeout(ps.Timeout).
			WithRetry(ps.MaxRetries, ps.RetryDelay)
		if ps.APIKey != "" {
			pyCfg = pyCfg.WithAPIKey(ps.APIKey)
		}
		client, err := pyprovider.NewClient(pyCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create python service client: %w", err)
		}
		opts = append(opts, document.WithFallbackParser(
			document.NewRemoteParser(pyprovider.NewDocumentClient(client.WithLogger(a.Logger))),
		))
	}

	return document.NewLoader(store, opts...), nil
}

func queueConfig(cfg config.QueueConfig) *taskqueue.Config {
	qc := taskqueue.DefaultConfig()
	qc.RedisAddr = cfg.RedisAddr
	qc.RedisPassword = cfg.RedisPassword
	qc.RedisDB = cfg.RedisDB
	if cfg.Concurrency > 0 {
		qc.Concurrency = cfg.Concurrency
	}
	qc.RetryLimit = cfg.RetryLimit
	if cfg.RetryDelay > 0 {
		qc.RetryDelay = cfg.RetryDelay
	}
	return qc
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg config.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.Concurrency,
		"retry_limit": cfg.RetryLimit,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewQueue(cfg.Type, queueConfig(cfg))
	if err != nil {
		return nil, err
	}
	if rq, ok := queue.(*taskqueue.RedisQueue); ok {
		rq.SetLogger(logger)
	}
	return queue, nil
}
