package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_RoundTripsLikeRedis(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	type payload struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, mc.Set(ctx, "p", payload{Score: 42.5}, time.Minute))
	var got payload
	require.NoError(t, mc.Get(ctx, "p", &got))
	assert.Equal(t, 42.5, got.Score)

	require.NoError(t, mc.Set(ctx, "s", "plain", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)

	var missing float64
	assert.ErrorIs(t, mc.Get(ctx, "nope", &missing), ErrCacheMiss)
}

func TestMemoryCache_ExpiryAndLocks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()

	var v int
	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	require.NoError(t, mc.Get(ctx, "k", &v))

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)

	locked, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)
	require.NoError(t, mc.Unlock(ctx, "lock"))
	locked, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	now = now.Add(2 * time.Minute)
	locked, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked, "expired lock is free again")
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { now = now.Add(time.Millisecond); return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}
