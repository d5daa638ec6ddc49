package attribution

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetInvalidate(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "doc-001", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "doc-001", 3, 0, map[string]int{"a": 2}))
	require.NoError(t, c.Set(ctx, "doc-001", 4, 0, map[string]int{"a": 4}))

	got, ok, err := c.Get(ctx, "doc-001", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int{"a": 2}, got)

	require.NoError(t, c.Invalidate(ctx, "doc-001"))
	_, ok, _ = c.Get(ctx, "doc-001", 4)
	assert.False(t, ok)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()
	src := map[string]int{"a": 1}
	require.NoError(t, c.Set(ctx, "d", 1, 0, src))
	src["a"] = 9

	got, ok, _ := c.Get(ctx, "d", 1)
	require.True(t, ok)
	assert.Equal(t, 1, got["a"])
	got["a"] = 7

	again, _, _ := c.Get(ctx, "d", 1)
	assert.Equal(t, 1, again["a"])
}

func TestMemoryCache_SetAfterInvalidateIsDropped(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "d")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "d"))
	require.NoError(t, c.Set(ctx, "d", 2, gen, map[string]int{"k": 1}))

	_, ok, _ := c.Get(ctx, "d", 2)
	assert.False(t, ok)

	fresh, err := c.Generation(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, gen+1, fresh)
	require.NoError(t, c.Set(ctx, "d", 2, fresh, map[string]int{"k": 2}))
	got, ok, _ := c.Get(ctx, "d", 2)
	require.True(t, ok)
	assert.Equal(t, 2, got["k"])
}

func TestMemoryCache_GenerationsArePerDocument(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0, map[string]int{"k": 1}))
	require.NoError(t, c.Invalidate(ctx, "b"))

	_, ok, _ := c.Get(ctx, "a", 1)
	assert.True(t, ok)
	genA, _ := c.Generation(ctx, "a")
	assert.Equal(t, uint64(0), genA)
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "d", 1, 0, map[string]int{"a": 1}))
	now = now.Add(2 * time.Minute)
	_, ok, _ := c.Get(ctx, "d", 1)
	assert.False(t, ok)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, "127.0.0.1:1", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping")
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REVIEW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("REVIEW_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck

	doc := "test-doc-" + time.Now().Format("150405.000000000")
	require.NoError(t, c.Set(ctx, doc, 2, 0, map[string]int{"k": 2}))
	got, ok, err := c.Get(ctx, doc, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, got["k"])

	gen, err := c.Generation(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, doc))
	_, ok, err = c.Get(ctx, doc, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, doc, 2, gen, map[string]int{"k": 1}))
	_, ok, err = c.Get(ctx, doc, 2)
	require.NoError(t, err)
	assert.False(t, ok, "stale generation must not refill the cache")
}
