package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyerfyer/clause-rag/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps input order across batches", func(t *testing.T) {
		client := NewMockClient(t)
		client.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return([][]float32{{1}, {2}}, nil).Once()
		client.On("EmbedBatch", mock.Anything, []string{"c", "d"}).Return([][]float32{{3}, {4}}, nil).Once()
		client.On("EmbedBatch", mock.Anything, []string{"e"}).Return([][]float32{{5}}, nil).Once()

		vectors, err := NewBatchProcessor(client, 2, 3).Process(ctx, []string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {5}}, vectors)
	})

	t.Run("any batch failure fails the whole call", func(t *testing.T) {
		client := NewMockClient(t)
		client.On("EmbedBatch", mock.Anything, []string{"a"}).Return([][]float32{{1}}, nil).Maybe()
		client.On("EmbedBatch", mock.Anything, []string{"b"}).Return(nil, NewEmbeddingError(ErrCodeServerError, "boom"))

		_, err := NewBatchProcessor(client, 1, 1).Process(ctx, []string{"b", "a"})
		require.Error(t, err)
		assert.True(t, IsEmbeddingError(err, ErrCodeServerError))
	})

	t.Run("short response is an error", func(t *testing.T) {
		client := NewMockClient(t)
		client.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return([][]float32{{1}}, nil)

		_, err := NewBatchProcessor(client, 4, 1).Process(ctx, []string{"a", "b"})
		assert.True(t, IsEmbeddingError(err, ErrCodeCountMismatch))
	})

	t.Run("empty text rejected", func(t *testing.T) {
		_, err := NewBatchProcessor(NewMockClient(t), 4, 1).Process(ctx, []string{"a", ""})
		assert.True(t, IsEmbeddingError(err, ErrCodeEmptyInput))
	})

	t.Run("no texts", func(t *testing.T) {
		vectors, err := NewBatchProcessor(NewMockClient(t), 4, 1).Process(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}

func TestSplitIntoBatches(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, splitIntoBatches([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a"}, {"b"}}, splitIntoBatches([]string{"a", "b"}, 0))
	assert.Empty(t, splitIntoBatches(nil, 3))
}

func TestCachedClient(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	client := NewMockClient(t)
	client.On("Name").Return("test-model")
	client.On("EmbedBatch", mock.Anything, []string{"x", "y"}).Return([][]float32{{1, 0}, {0, 1}}, nil).Once()
	client.On("EmbedBatch", mock.Anything, []string{"z"}).Return([][]float32{{1, 1}}, nil).Once()

	cached := NewCachedClient(client, store, time.Minute, nil)
	assert.Equal(t, "test-model", cached.Name())

	first, err := cached.EmbedBatch(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, first)

	// x与y命中缓存，只请求z
	second, err := cached.EmbedBatch(ctx, []string{"y", "z", "x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {1, 0}}, second)

	vec, err := cached.Embed(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
}

func TestTongyiClient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		var req DashScopeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v3", req.Model)

		resp := DashScopeResponse{RequestID: "req-1"}
		// 逆序返回，客户端按text_index还原
		for i := len(req.Input.Texts) - 1; i >= 0; i-- {
			resp.Output.Embeddings = append(resp.Output.Embeddings, DashScopeEmbedding{
				TextIndex: i,
				Embedding: []float32{float32(i), 1},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient("tongyi", WithAPIKey("test-key"), WithBaseURL(server.URL), WithMaxRetries(2))
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-v3", client.Name())

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vectors)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	_, err = client.EmbedBatch(context.Background(), make([]string, 11))
	assert.True(t, IsEmbeddingError(err, ErrCodeInvalidRequest))
}

func TestTongyiClientRequiresKey(t *testing.T) {
	_, err := NewClient("tongyi")
	assert.True(t, IsEmbeddingError(err, ErrCodeInvalidAPIKey))
}

func TestOpenAIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := range req.Input {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i + 1), 0.5},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	defer server.Close()

	client, err := NewClient("openai", WithAPIKey("sk-test"), WithBaseURL(server.URL))
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0.5}, {2, 0.5}}, vectors)

	vec, err := client.Embed(context.Background(), "only")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5}, vec)
}

func TestOpenAIClientMapsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient("openai", WithAPIKey("sk-bad"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	assert.True(t, IsEmbeddingError(err, ErrCodeInvalidAPIKey))
}

func TestOllamaClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req OllamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(OllamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer server.Close()

	client, err := NewClient("ollama", WithBaseURL(server.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, defaultOllamaModel, client.Name())

	vectors, err := client.EmbedBatch(context.Background(), []string{"ab", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {4}}, vectors)
}

func TestNewClientUnknown(t *testing.T) {
	_, err := NewClient("word2vec")
	require.Error(t, err)

	var embErr EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)
}
