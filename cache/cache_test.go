package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, 0)

	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	require.NoError(t, c.Set(ctx, "c", "3"))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")

	val, ok := c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, "3", val)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpires(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(8, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", "v"))

	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry should expire after ttl")
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	require.NoError(t, c.Set(ctx, "k", "v"))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c, err := New(Config{Backend: "lru", Size: 4})
	require.NoError(t, err)
	assert.IsType(t, &LRU{}, c)

	c, err = New(Config{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = New(Config{Backend: "redis", RedisAddr: "localhost:6379", Namespace: "abc"})
	require.NoError(t, err)
	r, ok := c.(*Redis)
	require.True(t, ok)
	assert.Equal(t, "spendwise:abc:category:x", r.key("category:x"))
	require.NoError(t, r.Close())

	_, err = New(Config{Backend: "memcached"})
	assert.Error(t, err)
}
