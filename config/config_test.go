package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sparse", cfg.Retrieval.Strategy)
	assert.Equal(t, 100, cfg.Retrieval.SparseMinLength)
	assert.Equal(t, 1, cfg.Retrieval.SparseTopK)
	assert.Equal(t, 1000, cfg.Retrieval.MaxFeatures)
	assert.Equal(t, 512, cfg.Retrieval.DenseMinLength)
	assert.Equal(t, 3, cfg.Retrieval.DenseTopK)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "memory", cfg.VectorDB.Type)
	assert.Equal(t, "none", cfg.Storage.Type)
	assert.Equal(t, 10*time.Minute, cfg.Queue.RunTimeout)
	assert.False(t, cfg.Queue.Enable)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  auth_token: secret
retrieval:
  strategy: dense
  dense_top_k: 5
embed:
  enable: true
  provider: ollama
llm:
  provider: openai
  max_tokens: 256
  timeout: 15s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AuthToken)
	assert.Equal(t, "dense", cfg.Retrieval.Strategy)
	assert.Equal(t, 5, cfg.Retrieval.DenseTopK)
	assert.Equal(t, 1, cfg.Retrieval.SparseTopK)
	assert.True(t, cfg.Embed.Enable)
	assert.Equal(t, "ollama", cfg.Embed.Provider)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 256, cfg.LLM.MaxTokens)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
}

func TestLoadExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "from-env")
	path := writeConfig(t, `
llm:
  api_key: ${TEST_LLM_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("RETRIEVAL_SPARSE_TOP_K", "4")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Retrieval.SparseTopK)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown strategy", "retrieval:\n  strategy: hybrid\n"},
		{"dense without embeddings", "retrieval:\n  strategy: dense\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"zero top_k", "retrieval:\n  sparse_top_k: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, float32(-1), cfg.LLM.Temperature)
}
