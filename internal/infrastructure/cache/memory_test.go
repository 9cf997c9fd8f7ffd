package cache

import (
	"context"
	"testing"
	"time"

	"github.com/gpus/backend/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSetDel(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.Get(ctx, "user_role:u1")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "user_role:u1", "sdr", time.Minute))
	v, err := c.Get(ctx, "user_role:u1")
	require.NoError(t, err)
	assert.Equal(t, "sdr", v)

	n, err := c.Del(ctx, "user_role:u1", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	now = now.Add(2 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestMemoryCache_AllowWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		ok, err := c.Allow(ctx, "rl:ip", 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := c.Allow(ctx, "rl:ip", 5, time.Hour)
	assert.False(t, ok)

	now = now.Add(time.Hour)
	ok, _ = c.Allow(ctx, "rl:ip", 5, time.Hour)
	assert.True(t, ok)
	assert.Equal(t, 0, c.Sweep())
}
