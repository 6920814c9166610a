/*
 * @Description: 请求ID与访问日志
 * @Author: 安知鱼
 * @Date: 2026-09-13 11:20:04
 * @LastEditTime: 2026-09-13 11:48:36
 * @LastEditors: 安知鱼
 */
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/util"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger 为每个请求分配请求ID，并把带ID的 logger 放入请求上下文
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		default:
			ev = logger.Debug()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", util.GetRealClientIP(c)).
			Msg("HTTP 请求")
	}
}
