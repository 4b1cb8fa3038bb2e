package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, data)

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Hour))
	_, hit, _ = c.Get(ctx, "key")
	assert.False(t, hit, "NullCache should not store data")
	assert.NoError(t, c.Delete(ctx, "key"))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// Touch "a" so "b" is the least recently used entry.
	data, hit, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("1"), data)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))
	assert.Equal(t, 2, c.Len())
	_, hit, _ = c.Get(ctx, "b")
	assert.False(t, hit, "b should have been evicted")
	_, hit, _ = c.Get(ctx, "c")
	assert.True(t, hit)

	hits, misses, evictions := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), evictions)

	require.NoError(t, c.Delete(ctx, "c"))
	_, hit, _ = c.Get(ctx, "c")
	assert.False(t, hit)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	_, hit, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", []byte("payload"), time.Hour))
	data, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, c.Delete(ctx, "k"))
	_, hit, _ = c.Get(ctx, "k")
	assert.False(t, hit)
	assert.NoError(t, c.Delete(ctx, "k"), "deleting a missing key is not an error")
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	c := NewRedisCacheWithClient(client, cfg)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestRedis(t)

	_, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("graphstate:k"), "keys are prefixed")

	data, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("v"), data)

	mr.FastForward(2 * time.Minute)
	_, hit, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit, "entry should expire")

	require.NoError(t, c.Set(ctx, "d", []byte("x"), 0))
	require.NoError(t, c.Delete(ctx, "d"))
	assert.False(t, mr.Exists("graphstate:d"))
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()

	c, err := NewRedisCache(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestRedisCacheUnavailable(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackend))
	assert.True(t, IsRetryable(err))
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	k1 := k.GraphDefKey("abc-3-1", GraphDefKeyOpts{WireVersion: 1})
	k2 := k.GraphDefKey("abc-3-1", GraphDefKeyOpts{WireVersion: 1})
	k3 := k.GraphDefKey("abc-3-1", GraphDefKeyOpts{WireVersion: 2})
	k4 := k.GraphDefKey("abd-3-1", GraphDefKeyOpts{WireVersion: 1})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3, "options are part of the key")
	assert.NotEqual(t, k1, k4)
	assert.True(t, strings.HasPrefix(k1, "graphdef:"))
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "user:123:")
	key := scoped.GraphDefKey("fp", GraphDefKeyOpts{})
	assert.True(t, strings.HasPrefix(key, "user:123:graphdef:"), key)

	nilInner := NewScopedKeyer(nil, "p:")
	assert.Equal(t, "p:"+NewDefaultKeyer().GraphDefKey("fp", GraphDefKeyOpts{}), nilInner.GraphDefKey("fp", GraphDefKeyOpts{}))
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	assert.Equal(t, h1, Hash([]byte("hello")))
	assert.NotEqual(t, h1, Hash([]byte("world")))
	assert.Len(t, h1, 64)
}

func TestRetryableError(t *testing.T) {
	assert.Nil(t, Retryable(nil))

	err := Retryable(ErrBackend)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrBackend.Error(), err.Error())
	assert.True(t, errors.Is(err, ErrBackend))
	assert.False(t, IsRetryable(ErrCorrupt))
}

func TestRetryWithBackoff(t *testing.T) {
	old := RetryDelay
	RetryDelay = time.Millisecond
	t.Cleanup(func() { RetryDelay = old })
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return ErrCorrupt
	})
	assert.Equal(t, ErrCorrupt, err)
	assert.Equal(t, 1, calls, "non-retryable errors stop immediately")

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrBackend)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(ErrBackend)
	})
	assert.True(t, errors.Is(err, ErrBackend))
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrBackend)
	})
	assert.Equal(t, context.Canceled, err)
}
