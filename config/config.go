package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Embed         EmbedConfig         `mapstructure:"embed"`
	LLM           LLMConfig           `mapstructure:"llm"`
	VectorDB      VectorDBConfig      `mapstructure:"vectordb"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Fetch         FetchConfig         `mapstructure:"fetch"`
	Document      DocumentConfig      `mapstructure:"document"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Database      DatabaseConfig      `mapstructure:"database"`
	PythonService PythonServiceConfig `mapstructure:"python_service"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`          // 服务器主机
	Port         int           `mapstructure:"port"`          // 服务器端口
	Mode         string        `mapstructure:"mode"`          // gin运行模式
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时
	AuthToken    string        `mapstructure:"auth_token"`    // Bearer令牌，为空表示不校验
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`     // 是否压缩旧日志
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	Strategy        string `mapstructure:"strategy"`          // 默认检索策略：sparse 或 dense
	SparseMinLength int    `mapstructure:"sparse_min_length"` // 稀疏检索最小条款长度
	SparseTopK      int    `mapstructure:"sparse_top_k"`      // 稀疏检索默认条数
	MaxFeatures     int    `mapstructure:"max_features"`      // TF-IDF词表上限
	DenseMinLength  int    `mapstructure:"dense_min_length"`  // 稠密检索最小条款长度
	DenseTopK       int    `mapstructure:"dense_top_k"`       // 稠密检索默认条数
	Workers         int    `mapstructure:"workers"`           // 嵌入并发数
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Enable     bool          `mapstructure:"enable"`     // 是否启用嵌入模型，启用后可以使用稠密检索
	Provider   string        `mapstructure:"provider"`   // 提供商：gemini, openai, tongyi, ollama, python
	Model      string        `mapstructure:"model"`      // 模型名称
	APIKey     string        `mapstructure:"api_key"`    // API密钥
	Endpoint   string        `mapstructure:"endpoint"`   // API端点
	BatchSize  int           `mapstructure:"batch_size"` // 批处理大小
	Dimensions int           `mapstructure:"dimensions"` // 向量维度
	Timeout    time.Duration `mapstructure:"timeout"`    // 请求超时
	Cache      bool          `mapstructure:"cache"`      // 是否缓存嵌入结果
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`    // 提供商：gemini, openai, tongyi, python
	Model       string        `mapstructure:"model"`       // 模型名称
	APIKey      string        `mapstructure:"api_key"`     // API密钥
	Endpoint    string        `mapstructure:"endpoint"`    // API端点
	MaxTokens   int           `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32       `mapstructure:"temperature"` // 采样温度，负数表示使用模型默认值
	Timeout     time.Duration `mapstructure:"timeout"`     // 单次调用超时
}

// VectorDBConfig 向量索引配置
type VectorDBConfig struct {
	Type string `mapstructure:"type"` // 索引类型：memory，或以faiss标签构建时的faiss
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string        `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string        `mapstructure:"address"`  // Redis地址
	Password string        `mapstructure:"password"` // Redis密码
	DB       int           `mapstructure:"db"`       // Redis数据库
	TTL      time.Duration `mapstructure:"ttl"`      // 缓存有效期
}

// StorageConfig 下载文档的暂存配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`       // 存储类型：none, local 或 minio
	Path      string `mapstructure:"path"`       // 本地存储路径
	Bucket    string `mapstructure:"bucket"`     // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`   // MinIO端点
	AccessKey string `mapstructure:"access_key"` // MinIO访问密钥
	SecretKey string `mapstructure:"secret_key"` // MinIO秘密密钥
	UseSSL    bool   `mapstructure:"use_ssl"`    // 是否使用SSL
}

// FetchConfig 文档下载配置
type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`   // 下载超时
	MaxBytes int64         `mapstructure:"max_bytes"` // 单个文档大小上限
}

// DocumentConfig 文档解析配置
type DocumentConfig struct {
	LicenseKey     string `mapstructure:"license_key"`     // unioffice计量许可证
	PythonFallback bool   `mapstructure:"python_fallback"` // 本地解析失败时交给Python服务
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool          `mapstructure:"enable"`         // 是否启用任务队列
	Type          string        `mapstructure:"type"`           // 队列类型
	RedisAddr     string        `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string        `mapstructure:"redis_password"` // Redis密码
	RedisDB       int           `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int           `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int           `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    time.Duration `mapstructure:"retry_delay"`    // 重试延迟
	RunTimeout    time.Duration `mapstructure:"run_timeout"`    // 单次运行超时
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型：sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// PythonServiceConfig Python服务配置
type PythonServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`    // Python服务基础URL
	APIKey     string        `mapstructure:"api_key"`     // 访问令牌
	Timeout    time.Duration `mapstructure:"timeout"`     // 请求超时时间
	MaxRetries int           `mapstructure:"max_retries"` // 最大重试次数
	RetryDelay time.Duration `mapstructure:"retry_delay"` // 重试间隔
}

// Load 从.env、配置文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
	} else {
		logrus.WithField("path", v.ConfigFileUsed()).Debug("Using config file")
	}

	// 支持环境变量覆盖，例如 LLM_API_KEY 覆盖 llm.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	expandSecrets(&cfg)
	return &cfg
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Retrieval.Strategy {
	case "sparse", "dense":
	default:
		return fmt.Errorf("invalid retrieval.strategy %q: must be sparse or dense", c.Retrieval.Strategy)
	}
	if c.Retrieval.Strategy == "dense" && !c.Embed.Enable {
		return errors.New("retrieval.strategy dense requires embed.enable")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Retrieval.SparseMinLength <= 0 || c.Retrieval.DenseMinLength <= 0 {
		return errors.New("clause minimum lengths must be positive")
	}
	if c.Retrieval.SparseTopK <= 0 || c.Retrieval.DenseTopK <= 0 {
		return errors.New("default top_k values must be positive")
	}
	return nil
}

// expandSecrets 展开形如 ${VAR} 的密钥配置
func expandSecrets(cfg *Config) {
	for _, s := range []*string{
		&cfg.Embed.APIKey,
		&cfg.LLM.APIKey,
		&cfg.Server.AuthToken,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
		&cfg.Document.LicenseKey,
		&cfg.PythonService.APIKey,
	} {
		*s = expandEnv(*s)
	}
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.auth_token", "")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", false)

	// 检索默认配置
	v.SetDefault("retrieval.strategy", "sparse")
	v.SetDefault("retrieval.sparse_min_length", 100)
	v.SetDefault("retrieval.sparse_top_k", 1)
	v.SetDefault("retrieval.max_features", 1000)
	v.SetDefault("retrieval.dense_min_length", 512)
	v.SetDefault("retrieval.dense_top_k", 3)
	v.SetDefault("retrieval.workers", 4)

	// Embedding默认配置
	v.SetDefault("embed.enable", false)
	v.SetDefault("embed.provider", "gemini")
	v.SetDefault("embed.model", "text-embedding-004")
	v.SetDefault("embed.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("embed.endpoint", "")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.dimensions", 0)
	v.SetDefault("embed.timeout", "30s")
	v.SetDefault("embed.cache", false)

	// LLM默认配置
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash-lite")
	v.SetDefault("llm.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", -1)
	v.SetDefault("llm.timeout", "60s")

	// 向量索引默认配置
	v.SetDefault("vectordb.type", "memory")

	// 缓存默认配置
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")

	// 存储默认配置
	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.path", "./data/staging")
	v.SetDefault("storage.bucket", "clause-rag")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 下载默认配置
	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.max_bytes", 50<<20)

	// 文档解析默认配置
	v.SetDefault("document.license_key", "${UNIDOC_LICENSE_API_KEY}")
	v.SetDefault("document.python_fallback", false)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 0)
	v.SetDefault("queue.retry_delay", "1m")
	v.SetDefault("queue.run_timeout", "10m")

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/runs.db")

	// Python服务默认配置
	v.SetDefault("python_service.base_url", "http://localhost:8000/api")
	v.SetDefault("python_service.api_key", "")
	v.SetDefault("python_service.timeout", "30s")
	v.SetDefault("python_service.max_retries", 3)
	v.SetDefault("python_service.retry_delay", "1s")
}
