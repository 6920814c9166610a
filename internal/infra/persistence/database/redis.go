/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-04 11:30:55
 * @LastEditTime: 2026-09-15 14:22:55
 * @LastEditors: 安知鱼
 */
package database

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
)

// NewRedisClient 根据配置返回 Redis 客户端。
// 未配置地址或连接失败时返回 nil，由调用方决定是否降级到进程内实现。
func NewRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	redisAddr := cfg.GetString(config.KeyRedisAddr)
	if redisAddr == "" {
		log.Warn().Msg("Redis 地址未配置")
		return nil
	}

	redisDB := 0
	if raw := cfg.GetString(config.KeyRedisDB); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			log.Warn().Err(err).Str("value", raw).Msg("无效的 Redis.DB 值")
			return nil
		}
		redisDB = v
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: cfg.GetString(config.KeyRedisPassword),
		DB:       redisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", redisAddr).Int("db", redisDB).Msg("连接 Redis 失败")
		rdb.Close()
		return nil
	}

	log.Info().Str("addr", redisAddr).Int("db", redisDB).Msg("成功连接到 Redis")
	return rdb
}
