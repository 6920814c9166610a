/*
 * @Description: 频率限制中间件
 * @Author: 安知鱼
 * @Date: 2026-09-13 00:00:00
 * @LastEditTime: 2026-09-23 15:59:28
 * @LastEditors: 安知鱼
 */
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/util"
)

// ipRateLimiter 用于存储每个IP地址的限流器
type ipRateLimiter struct {
	limiters map[string]*limiterInfo
	mu       sync.Mutex
	// 每个IP每分钟允许的请求数
	requestsPerMinute int
	// 突发请求数
	burst int
	// 超过该时长未访问的限流器会被清理
	idleTTL time.Duration
	ops     int
}

type limiterInfo struct {
	limiter      *rate.Limiter
	lastAccessed time.Time
}

func newIPRateLimiter(requestsPerMinute, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &ipRateLimiter{
		limiters:          make(map[string]*limiterInfo),
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		idleTTL:           10 * time.Minute,
	}
}

// getLimiter 获取指定IP的限流器，并按访问次数顺带清理闲置条目
func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	i.ops++
	if i.ops%256 == 0 {
		for key, info := range i.limiters {
			if now.Sub(info.lastAccessed) > i.idleTTL {
				delete(i.limiters, key)
			}
		}
	}

	info, exists := i.limiters[ip]
	if !exists {
		info = &limiterInfo{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(i.requestsPerMinute)), i.burst),
		}
		i.limiters[ip] = info
	}
	info.lastAccessed = now
	return info.limiter
}

// CustomRateLimit 创建一个按IP的接口频率限制中间件，requestsPerMinute <= 0 表示不限制
func CustomRateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	if requestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newIPRateLimiter(requestsPerMinute, burst)

	return func(c *gin.Context) {
		if !limiter.getLimiter(util.GetRealClientIP(c)).Allow() {
			c.Header("Retry-After", "60")
			response.Fail(c, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}
