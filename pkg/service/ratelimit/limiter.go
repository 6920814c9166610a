/*
 * @Description: 发布者上传频率限制
 * @Author: 安知鱼
 * @Date: 2026-09-10 10:02:36
 * @LastEditTime: 2026-09-24 16:18:20
 * @LastEditors: 安知鱼
 */
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// Window 滑动窗口长度
const Window = time.Minute

// Limiter 限制单个发布者在滑动窗口内的上传次数与累计字节数。
// 被拒绝时返回 *constant.RateLimitError。
type Limiter interface {
	// Check 只检查窗口是否还有余量，不计数
	Check(ctx context.Context, publisherID string, size int64) error
	// Allow 检查并在允许时将本次上传计入窗口
	Allow(ctx context.Context, publisherID string, size int64) error
}

// Limits 描述窗口内的上限，0 表示不限制该维度
type Limits struct {
	UploadsPerWindow int
	BytesPerWindow   int64
}

// LimitsFromConfig 读取配置中的上限，未配置时使用默认值
func LimitsFromConfig(cfg *config.Config) Limits {
	l := Limits{
		UploadsPerWindow: cfg.GetInt(config.KeyUploadsPerMinute),
		BytesPerWindow:   cfg.GetInt64(config.KeyBytesPerMinute),
	}
	if l.UploadsPerWindow < 0 {
		l.UploadsPerWindow = constant.DefaultUploadsPerMinute
	}
	if l.BytesPerWindow < 0 {
		l.BytesPerWindow = constant.DefaultBytesPerMinute
	}
	return l
}

// New 按配置选择实现。redis 后端要求传入可用的客户端，否则退回进程内计数。
func New(cfg *config.Config, rdb *redis.Client) (Limiter, error) {
	limits := LimitsFromConfig(cfg)
	switch backend := cfg.GetString(config.KeyRateLimitBackend); backend {
	case "", "memory":
		return NewMemoryLimiter(limits), nil
	case "redis":
		if rdb == nil {
			log.Warn().Msg("限流后端配置为 redis，但 Redis 不可用，退回进程内计数（多实例部署时限额不共享）")
			return NewMemoryLimiter(limits), nil
		}
		return NewRedisLimiter(rdb, limits), nil
	default:
		return nil, fmt.Errorf("不支持的限流后端: %s", backend)
	}
}

func countExceeded(limits Limits, retryAfter time.Duration) error {
	return &constant.RateLimitError{
		Limit:      fmt.Sprintf("每分钟最多上传 %d 个文件", limits.UploadsPerWindow),
		RetryAfter: retryAfter,
	}
}

func bytesExceeded(limits Limits, retryAfter time.Duration) error {
	return &constant.RateLimitError{
		Limit:      fmt.Sprintf("每分钟最多上传 %d 字节", limits.BytesPerWindow),
		RetryAfter: retryAfter,
	}
}
