package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "filehub:ratelimit:upload:"

// 成员格式为 "<size>:<uuid>"，分数为毫秒时间戳。
// ARGV[7] 为 1 时才写入本次上传。
// 返回 {allowed, reason, oldestScore}，reason 1=次数超限 2=字节超限。
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local maxCount = tonumber(ARGV[3])
local maxBytes = tonumber(ARGV[4])
local size = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local entries = redis.call('ZRANGE', key, 0, -1, 'WITHSCORES')
local count = #entries / 2
local total = 0
for i = 1, #entries, 2 do
  local sep = string.find(entries[i], ':', 1, true)
  total = total + tonumber(string.sub(entries[i], 1, sep - 1))
end
local oldest = now
if count > 0 then
  oldest = tonumber(entries[2])
end

if maxCount > 0 and count >= maxCount then
  return {0, 1, oldest}
end
if maxBytes > 0 and total + size > maxBytes then
  return {0, 2, oldest}
end

if ARGV[7] == '1' then
  redis.call('ZADD', key, now, ARGV[6])
  redis.call('PEXPIRE', key, window)
end
return {1, 0, 0}
`)

// RedisLimiter 基于有序集合的共享滑动窗口，适用于多实例部署
type RedisLimiter struct {
	rdb    *redis.Client
	limits Limits
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limits Limits) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limits: limits, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, publisherID string, size int64) error {
	return l.run(ctx, publisherID, size, false)
}

func (l *RedisLimiter) Allow(ctx context.Context, publisherID string, size int64) error {
	return l.run(ctx, publisherID, size, true)
}

func (l *RedisLimiter) run(ctx context.Context, publisherID string, size int64, record bool) error {
	now := l.now().UnixMilli()
	flag := 0
	if record {
		flag = 1
	}
	member := fmt.Sprintf("%d:%s", size, uuid.NewString())
	res, err := slidingWindowScript.Run(ctx, l.rdb, []string{redisKeyPrefix + publisherID},
		now, Window.Milliseconds(), l.limits.UploadsPerWindow, l.limits.BytesPerWindow, size, member, flag,
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("执行限流脚本失败: %w", err)
	}
	if len(res) != 3 {
		return fmt.Errorf("限流脚本返回值异常: %v", res)
	}
	if res[0] == 1 {
		return nil
	}

	retryAfter := time.Duration(res[2]+Window.Milliseconds()-now) * time.Millisecond
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	if res[1] == 1 {
		return countExceeded(l.limits, retryAfter)
	}
	return bytesExceeded(l.limits, retryAfter)
}
