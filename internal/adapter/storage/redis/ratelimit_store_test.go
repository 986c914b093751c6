package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_AllowsWithinLimit(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := store.Allow(ctx, "user-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, int64(3), res.Limit)
		assert.Equal(t, 3-i, res.Remaining)
	}
}

func TestRateLimitStore_BlocksOverLimit(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Allow(ctx, "user-2", 2, time.Minute)
		require.NoError(t, err)
	}

	res, err := store.Allow(ctx, "user-2", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Greater(t, res.ResetAt, time.Now().Unix()-int64(time.Minute.Seconds()))
}

func TestRateLimitStore_KeysAreIndependent(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	_, err := store.Allow(ctx, "user-a", 1, time.Minute)
	require.NoError(t, err)
	res, err := store.Allow(ctx, "user-a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = store.Allow(ctx, "user-b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a different identifier has its own counter")
}

func TestRateLimitStore_WindowResets(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	_, err := store.Allow(ctx, "user-3", 1, time.Minute)
	require.NoError(t, err)
	res, err := store.Allow(ctx, "user-3", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// The counter key carries a TTL so stale windows clean themselves up.
	mr.FastForward(2 * time.Minute)
	keys := mr.Keys()
	assert.Empty(t, keys, "expired window counters are evicted")
}
