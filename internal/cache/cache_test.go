package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCacheBasics 各实现共用的基本行为测试
func testCacheBasics(t *testing.T, cache Cache) {
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", "value1", 0))

	val, found, err := cache.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	val, found, err = cache.Get(ctx, "non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	require.NoError(t, cache.Set(ctx, "to-delete", "delete-me", 0))
	require.NoError(t, cache.Delete(ctx, "to-delete"))
	_, found, err = cache.Get(ctx, "to-delete")
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "key2", "value2", 0))
	require.NoError(t, cache.Clear(ctx))
	_, found, err = cache.Get(ctx, "key2")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache(t *testing.T) {
	cache, err := NewMemoryCache(Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	})
	require.NoError(t, err)
	testCacheBasics(t, cache)

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "expire-soon", "temp-value", 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)

	_, found, err := cache.Get(ctx, "expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	require.IsType(t, &RedisCache{}, cache)
	defer cache.(*RedisCache).Close()

	testCacheBasics(t, cache)

	ctx := context.Background()

	t.Run("keys carry prefix and default ttl", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "k", "v", 0))
		assert.True(t, mr.Exists("test:k"))
		assert.Equal(t, time.Minute, mr.TTL("test:k"))
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "short", "v", time.Second))
		mr.FastForward(2 * time.Second)
		_, found, err := cache.Get(ctx, "short")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("clear keeps foreign keys", func(t *testing.T) {
		require.NoError(t, mr.Set("other:key", "keep"))
		require.NoError(t, cache.Set(ctx, "mine", "drop", 0))
		require.NoError(t, cache.Clear(ctx))

		assert.True(t, mr.Exists("other:key"))
		assert.False(t, mr.Exists("test:mine"))
	})
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(Config{RedisAddr: addr})
	assert.Error(t, err)
}

func TestCacheFactory(t *testing.T) {
	cache, err := NewCache(DefaultConfig())
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)

	cache, err = NewCache(Config{Type: "unknown-type"})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)
}

func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "prefix", GenerateCacheKey("prefix"))
	assert.Equal(t, "prefix:part1", GenerateCacheKey("prefix", "part1"))
	assert.Equal(t, "prefix:part1:part2:part3", GenerateCacheKey("prefix", "part1", "part2", "part3"))
}

func TestEmbeddingKey(t *testing.T) {
	a := EmbeddingKey("text-embedding-004", "clause text")
	assert.Equal(t, a, EmbeddingKey("text-embedding-004", "clause text"))
	assert.NotEqual(t, a, EmbeddingKey("text-embedding-004", "other text"))
	assert.NotEqual(t, a, EmbeddingKey("other-model", "clause text"))
	assert.Regexp(t, `^emb:text-embedding-004:[0-9a-f]{64}$`, a)
}
