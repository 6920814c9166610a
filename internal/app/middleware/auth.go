/*
 * @Description: 认证与角色中间件
 * @Author: 安知鱼
 * @Date: 2026-09-12 19:02:15
 * @LastEditTime: 2026-09-24 10:31:40
 * @LastEditors: 安知鱼
 */
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/auth"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
)

type Middleware struct {
	secret  []byte
	enabled func() bool
}

// NewMiddleware 创建中间件集合，enabled 在每次请求时读取功能开关
func NewMiddleware(secret []byte, enabled func() bool) *Middleware {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Middleware{secret: secret, enabled: enabled}
}

// JWTAuth 是一个强制性的JWT认证中间件，解析成功后把身份写入上下文
func (m *Middleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			response.Fail(c, http.StatusUnauthorized, "请求未携带Token，无权限访问")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Fail(c, http.StatusUnauthorized, "Token格式不正确")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(parts[1], m.secret)
		if err != nil {
			if errors.Is(err, constant.ErrForbidden) {
				log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("[JWTAuth] 角色无权访问文件分发")
				response.Fail(c, http.StatusForbidden, "当前角色无权访问文件分发")
				c.Abort()
				return
			}
			log.Debug().Err(err).Msg("[JWTAuth] JWT token解析失败")
			response.Fail(c, http.StatusUnauthorized, "无效或过期的Token")
			c.Abort()
			return
		}

		c.Set(auth.ClaimsKey, claims.Identity())
		c.Next()
	}
}

// RequirePublisher 只允许发布者（HR/管理员）继续
func (m *Middleware) RequirePublisher() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "权限信息获取失败")
			c.Abort()
			return
		}
		if !id.IsPublisher() {
			log.Warn().Str("user_id", id.UserID).Str("path", c.Request.URL.Path).Msg("[RequirePublisher] 权限不足")
			response.Fail(c, http.StatusForbidden, "权限不足：此操作需要发布者权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// FeatureGate 功能关闭时所有文件分发接口返回 503
func (m *Middleware) FeatureGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled() {
			response.Fail(c, http.StatusServiceUnavailable, constant.ErrFeatureDisabled.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFrom 从上下文中取出 JWTAuth 写入的身份
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, exists := c.Get(auth.ClaimsKey)
	if !exists {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
