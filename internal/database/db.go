package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fyerfyer/clause-rag/internal/models"
)

// ErrUnsupportedType 不支持的数据库类型
var ErrUnsupportedType = errors.New("unsupported database type")

// DB 全局数据库连接，由Setup设置
var DB *gorm.DB

// Config 数据库配置
type Config struct {
	Type          string        // 数据库类型，目前支持sqlite
	DSN           string        // 文件路径、file: URI 或 :memory:
	MaxOpenConns  int           // 最大打开连接数
	MaxIdleConns  int           // 最大空闲连接数
	MaxLifetime   time.Duration // 连接最大生命周期
	SlowThreshold time.Duration // 慢查询阈值
}

// DefaultConfig 返回默认数据库配置
func DefaultConfig() *Config {
	return &Config{
		Type:          "sqlite",
		DSN:           "data/runs.db",
		MaxOpenConns:  10,
		MaxIdleConns:  5,
		MaxLifetime:   time.Hour,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// Setup 打开数据库、迁移运行记录表并设置全局连接
func Setup(cfg *Config, log *logrus.Logger) error {
	db, err := Open(cfg, log)
	if err != nil {
		return err
	}
	if err := migrate(db, &models.Run{}); err != nil {
		closeDB(db)
		return err
	}

	DB = db
	log.WithFields(logrus.Fields{
		"type":   cfg.Type,
		"memory": isMemoryDSN(cfg.DSN),
	}).Info("Database connection established")
	return nil
}

// Open 按配置打开连接并设置连接池，不做迁移
func Open(cfg *Config, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(log, cfg.SlowThreshold)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := configurePool(db, cfg); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

// Close 关闭全局连接
func Close() error {
	if DB == nil {
		return nil
	}
	err := closeDB(DB)
	DB = nil
	return err
}

// MustDB 返回全局数据库连接，未初始化时panic
func MustDB() *gorm.DB {
	if DB == nil {
		panic("database not initialized, call database.Setup first")
	}
	return DB
}

func openDialector(cfg *Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Type) {
	case "sqlite", "sqlite3":
		if path := dsnPath(cfg.DSN); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

// configurePool 设置连接池
// 私有内存库的每个连接都是独立的空库，只能保留一个永不过期的连接
func configurePool(db *gorm.DB, cfg *Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if isMemoryDSN(cfg.DSN) && !strings.Contains(cfg.DSN, "cache=shared") {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		return nil
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	return nil
}

func migrate(db *gorm.DB, tables ...interface{}) error {
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}

// dsnPath 返回DSN对应的数据库文件路径，内存库返回空串
func dsnPath(dsn string) string {
	if dsn == "" || isMemoryDSN(dsn) {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// newGormLogger GORM日志转发到logrus，只记录警告、错误和慢查询
func newGormLogger(log *logrus.Logger, slow time.Duration) logger.Interface {
	return logger.New(
		gormWriter{entry: log.WithField("component", "gorm")},
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

type gormWriter struct {
	entry *logrus.Entry
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.entry.Warnf(format, args...)
}
