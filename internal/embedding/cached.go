package embedding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fyerfyer/clause-rag/internal/cache"
	"github.com/sirupsen/logrus"
)

// CachedClient 带缓存的嵌入客户端
// 以模型名和文本哈希为键，缓存读写失败只记录日志
type CachedClient struct {
	client Client
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedClient 包装嵌入客户端
func NewCachedClient(client Client, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachedClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedClient{
		client: client,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Name 返回模型名称
func (c *CachedClient) Name() string {
	return c.client.Name()
}

// Embed 优先读取缓存
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, nil
	}

	vec, err := c.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, text, vec)
	return vec, nil
}

// EmbedBatch 只为未命中的文本请求模型
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var (
		missTexts   []string
		missIndices []int
	)
	for i, text := range texts {
		if vec, ok := c.lookup(ctx, text); ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.client.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkCount(fresh, missTexts); err != nil {
		return nil, err
	}

	for j, idx := range missIndices {
		vectors[idx] = fresh[j]
		c.store(ctx, missTexts[j], fresh[j])
	}
	return vectors, nil
}

func (c *CachedClient) lookup(ctx context.Context, text string) ([]float32, bool) {
	raw, found, err := c.cache.Get(ctx, cache.EmbeddingKey(c.client.Name(), text))
	if err != nil {
		c.logger.WithError(err).Warn("Embedding cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (c *CachedClient) store(ctx context.Context, text string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cache.EmbeddingKey(c.client.Name(), text), string(raw), c.ttl); err != nil {
		c.logger.WithError(err).Warn("Embedding cache write failed")
	}
}
