package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(client)
	limiter.now = func() time.Time { return now }
	return limiter, mr, &now
}

func TestRateLimiter_CheckLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		limiter, _, _ := newTestLimiter(t)

		for i := 0; i < 3; i++ {
			result, err := limiter.CheckLimit(ctx, "user:1", 3, 10*time.Second)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i+1)
			assert.Equal(t, 3-i-1, result.Remaining)
		}

		result, err := limiter.CheckLimit(ctx, "user:1", 3, 10*time.Second)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter, _, _ := newTestLimiter(t)

		for i := 0; i < 2; i++ {
			_, err := limiter.CheckLimit(ctx, "user:a", 2, time.Minute)
			require.NoError(t, err)
		}

		result, err := limiter.CheckLimit(ctx, "user:b", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter, _, now := newTestLimiter(t)

		for i := 0; i < 2; i++ {
			_, err := limiter.CheckLimit(ctx, "user:slide", 2, 2*time.Second)
			require.NoError(t, err)
		}
		result, err := limiter.CheckLimit(ctx, "user:slide", 2, 2*time.Second)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, now.Add(2*time.Second).Unix(), result.ResetAt.Unix())

		*now = now.Add(3 * time.Second)
		result, err = limiter.CheckLimit(ctx, "user:slide", 2, 2*time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("returns error when redis is down", func(t *testing.T) {
		limiter, mr, _ := newTestLimiter(t)
		mr.Close()

		_, err := limiter.CheckLimit(ctx, "user:down", 2, time.Minute)
		assert.Error(t, err)
	})
}
