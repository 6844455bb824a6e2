package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigAndOptions(t *testing.T) {
	cfg := NewConfig(
		WithAPIKey("key"),
		WithBaseURL("http://localhost"),
		WithModel("m"),
		WithTimeout(5*time.Second),
		WithMaxTokens(64),
		WithTemperature(0.2),
		WithTopP(0.9),
	)

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "http://localhost", cfg.BaseURL)
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 64, cfg.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-6)
	assert.InDelta(t, 0.9, cfg.TopP, 1e-6)
}

func TestResolveGenerateOptions(t *testing.T) {
	opts := resolve(DefaultConfig(), nil)
	require.NotNil(t, opts.MaxTokens)
	assert.Equal(t, 1024, *opts.MaxTokens)
	assert.Nil(t, opts.Temperature)
	assert.Nil(t, opts.TopP)

	opts = resolve(NewConfig(WithTemperature(0.5)), []GenerateOption{
		WithGenerateMaxTokens(10),
		WithGenerateTemperature(0),
		WithGenerateTopP(0.3),
	})
	assert.Equal(t, 10, *opts.MaxTokens)
	assert.Equal(t, float32(0), *opts.Temperature)
	assert.Equal(t, float32(0.3), *opts.TopP)
}

func TestClientFactory(t *testing.T) {
	_, err := NewClient("unknown")
	require.Error(t, err)
	assert.True(t, IsLLMError(err, ErrCodeInvalidRequest))

	for _, name := range []string{"gemini", "openai", "tongyi"} {
		_, err := NewClient(name)
		assert.True(t, IsLLMError(err, ErrCodeInvalidAPIKey), name)
	}

	_, err = NewClient("python")
	assert.True(t, IsLLMError(err, ErrCodeInvalidRequest))
}

func TestWrapErrorKeepsLLMError(t *testing.T) {
	original := NewLLMError(ErrCodeRateLimited, ErrMsgRateLimited)
	assert.Equal(t, original, WrapError(original, ErrCodeGenerationFailed))

	wrapped := WrapError(assert.AnError, ErrCodeGenerationFailed)
	assert.Equal(t, ErrCodeGenerationFailed, wrapped.Code)
	assert.Equal(t, assert.AnError.Error(), wrapped.Message)
}

func TestTongyiClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req TongyiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelQwenPlus, req.Model)
		require.Len(t, req.Input.Messages, 1)
		assert.Equal(t, RoleUser, req.Input.Messages[0].Role)
		assert.Equal(t, "message", req.Parameters.ResultFormat)

		json.NewEncoder(w).Encode(TongyiResponse{
			Output: TongyiOutput{Choices: []TongyiChoice{{
				Message: Message{Role: RoleAssistant, Content: "reply to " + req.Input.Messages[0].Content},
			}}},
			Usage: TongyiUsage{TotalTokens: 12},
		})
	}))
	defer server.Close()

	client, err := NewClient("tongyi", WithAPIKey("secret"), WithBaseURL(server.URL), WithModel(ModelQwenPlus))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply to hello", resp.Text)
	assert.Equal(t, 12, resp.TokenCount)
	assert.Equal(t, ModelQwenPlus, client.Name())
}

func TestTongyiClientDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"InternalError","message":"boom"}`))
	}))
	defer server.Close()

	client, err := NewTongyiClient(WithAPIKey("secret"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsLLMError(err, ErrCodeServerError))
	assert.True(t, IsGenerationError(err))
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, calls)
}

func TestOpenAIClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " The waiting period is two years. "}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("key"), WithBaseURL(server.URL+"/v1"), WithModel("gpt-test"))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, " The waiting period is two years. ", resp.Text)
	assert.Equal(t, 12, resp.TokenCount)
}

func TestOpenAIClientMapsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("key"), WithBaseURL(server.URL+"/v1"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, IsLLMError(err, ErrCodeRateLimited))
}

func TestGeminiClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ModelGeminiFlashLite)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Thirty days."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 2, "totalTokenCount": 5}
		}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(WithAPIKey("key"), WithBaseURL(server.URL))
	require.NoError(t, err)
	assert.Equal(t, ModelGeminiFlashLite, client.Name())

	resp, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Thirty days.", resp.Text)
	assert.Equal(t, 5, resp.TokenCount)
}

func TestPythonClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/python/llm/generate", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "local-llm", req["model"])
		json.NewEncoder(w).Encode(map[string]any{"text": "local answer", "model": "local-llm", "total_tokens": 4})
	}))
	defer server.Close()

	client, err := NewClient("python", WithBaseURL(server.URL), WithModel("local-llm"))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Text)
	assert.Equal(t, 4, resp.TokenCount)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	client, err := NewTongyiClient(WithAPIKey("secret"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "")
	assert.True(t, IsLLMError(err, ErrCodeEmptyPrompt))
}
