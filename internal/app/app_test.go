package app

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/clause-rag/config"
	"github.com/fyerfyer/clause-rag/internal/retrieval"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "test-key"
	cfg.VectorDB.Type = "memory"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "runs.db")
	return cfg
}

func TestNewQASparseOnly(t *testing.T) {
	a, err := NewQA(testConfig(t), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{retrieval.StrategySparse}, a.QA.Strategies())
	assert.Equal(t, retrieval.StrategySparse, a.QA.DefaultStrategy())
	assert.Nil(t, a.Runs)
}

func TestNewQAWithEmbeddings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embed.Enable = true
	cfg.Embed.Provider = "ollama"
	cfg.Embed.Cache = true
	cfg.Retrieval.Strategy = retrieval.StrategyDense

	a, err := NewQA(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{retrieval.StrategyDense, retrieval.StrategySparse}, a.QA.Strategies())
	assert.Equal(t, retrieval.StrategyDense, a.QA.DefaultStrategy())

	dense, err := a.QA.Strategy(retrieval.StrategyDense)
	require.NoError(t, err)
	assert.Equal(t, 512, dense.Splitter().MinLength())
	assert.Equal(t, 3, dense.DefaultTopK())
}

func TestNewQARequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	_, err := NewQA(cfg, quietLogger())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Embed.Enable = true
	cfg.Embed.Provider = "openai"
	cfg.Embed.APIKey = ""
	_, err = NewQA(cfg, quietLogger())
	assert.Error(t, err)
}

func TestNewQAUnavailableDefaultStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retrieval.Strategy = retrieval.StrategyDense
	_, err := NewQA(cfg, quietLogger())
	assert.Error(t, err)
}

func redisCachedConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	cfg := testConfig(t)
	cfg.Embed.Enable = true
	cfg.Embed.Provider = "ollama"
	cfg.Embed.Cache = true
	cfg.Cache.Type = "redis"
	cfg.Cache.Address = mr.Addr()
	return cfg
}

func TestNewQAReleasesCacheOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisCachedConfig(t, mr)
	cfg.Storage.Type = "ftp"

	_, err := NewQA(cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")

	assert.Positive(t, mr.TotalConnectionCount())
	assert.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestNewReleasesCacheWhenDatabaseFails(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisCachedConfig(t, mr)
	cfg.Database.Type = "oracle"

	_, err := New(cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")

	assert.Positive(t, mr.TotalConnectionCount())
	assert.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestNewWithoutQueue(t *testing.T) {
	a, err := New(testConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Runs)
	assert.False(t, a.Runs.Async())
	assert.Nil(t, a.Queue)
	assert.Nil(t, a.Worker)
}

func TestNewWithQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Queue.Enable = true
	cfg.Queue.RedisAddr = mr.Addr()

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Runs.Async())
	assert.NotNil(t, a.Queue)
	assert.NotNil(t, a.Worker)
}

func TestSetupStorage(t *testing.T) {
	store, err := setupStorage(config.StorageConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = setupStorage(config.StorageConfig{Type: "local", Path: filepath.Join(t.TempDir(), "staging")})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = setupStorage(config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestSetupLoggerWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")
	logger := SetupLogger(config.LogConfig{Level: "debug", File: file, MaxSizeMB: 1})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.Info("hello")
	assert.FileExists(t, file)

	SetupLogger(config.LogConfig{Level: "info"})
}
