package ratelimit

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// 需要真实的 Redis，设置 FILEHUB_TEST_REDIS_ADDR 后运行
func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("FILEHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FILEHUB_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())

	publisher := "test-" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), redisKeyPrefix+publisher) })

	l := NewRedisLimiter(rdb, Limits{UploadsPerWindow: 2, BytesPerWindow: 100})
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Check(ctx, publisher, 40))
	}
	require.NoError(t, l.Allow(ctx, publisher, 40))
	require.NoError(t, l.Allow(ctx, publisher, 40))

	assert.ErrorIs(t, l.Check(ctx, publisher, 1), constant.ErrRateLimited)
	err := l.Allow(ctx, publisher, 1)
	require.ErrorIs(t, err, constant.ErrRateLimited)
	var rle *constant.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Positive(t, rle.RetryAfter)

	other := "test-" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), redisKeyPrefix+other) })
	bl := NewRedisLimiter(rdb, Limits{UploadsPerWindow: 10, BytesPerWindow: 100})
	require.NoError(t, bl.Allow(ctx, other, 90))
	assert.ErrorIs(t, bl.Allow(ctx, other, 20), constant.ErrRateLimited)
}
