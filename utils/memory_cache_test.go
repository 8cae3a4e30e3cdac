package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("probe:user-1", true, time.Minute)

	value, ok := cache.Get("probe:user-1")
	require.True(t, ok)
	assert.Equal(t, true, value)

	_, ok = cache.Get("probe:user-2")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("k", "v", -time.Second)

	_, ok := cache.Get("k")
	assert.False(t, ok, "expired entries are misses")
	assert.Zero(t, cache.Size(), "expired entries are evicted on access")
}

func TestMemoryCacheClear(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Minute)
	require.Equal(t, 2, cache.Size())

	cache.Clear()
	assert.Zero(t, cache.Size())
	assert.False(t, cache.Has("a"))
}
