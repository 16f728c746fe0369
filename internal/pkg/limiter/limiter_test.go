package limiter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l, err := NewLimiter(client)
	require.NoError(t, err)

	limit := redis_rate.PerMinute(2)
	require.NoError(t, l.Allow(ctx, "limit:relay:alice", limit))
	require.NoError(t, l.Allow(ctx, "limit:relay:alice", limit))
	require.ErrorIs(t, l.Allow(ctx, "limit:relay:alice", limit), ErrRateLimited)

	// keys are independent
	require.NoError(t, l.Allow(ctx, "limit:relay:bob", limit))
}
