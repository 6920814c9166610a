/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-14 11:30:55
 * @LastEditTime: 2026-09-27 18:26:37
 * @LastEditors: 安知鱼
 */
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anzhiyu-c/anheyu-filehub/internal/app/middleware"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/version"
	distribution_handler "github.com/anzhiyu-c/anheyu-filehub/pkg/handler/distribution"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
)

// NoCacheMiddleware 全局反缓存中间件，确保所有API响应都不会被CDN缓存
func NoCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate, private, max-age=0")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}

// PingFunc 健康检查时调用，通常是 db.PingContext
type PingFunc func(ctx context.Context) error

// Router 封装了应用的所有路由和其依赖的处理器。
type Router struct {
	distributionHandler  *distribution_handler.Handler
	mw                   *middleware.Middleware
	ping                 PingFunc
	gatherer             prometheus.Gatherer
	apiRequestsPerMinute int
}

// NewRouter 是 Router 的构造函数。gatherer 为 nil 时使用默认注册表。
func NewRouter(
	distributionHandler *distribution_handler.Handler,
	mw *middleware.Middleware,
	ping PingFunc,
	gatherer prometheus.Gatherer,
	apiRequestsPerMinute int,
) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		distributionHandler:  distributionHandler,
		mw:                   mw,
		ping:                 ping,
		gatherer:             gatherer,
		apiRequestsPerMinute: apiRequestsPerMinute,
	}
}

// Setup 将所有路由注册到 Gin 引擎。
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.RequestLogger(), middleware.Cors())

	engine.GET("/healthz", r.healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	apiGroup := engine.Group("/api")
	apiGroup.Use(NoCacheMiddleware(), middleware.CustomRateLimit(r.apiRequestsPerMinute, r.apiRequestsPerMinute/10))

	apiGroup.GET("/version", func(c *gin.Context) {
		response.Success(c, version.GetBuildInfo(), "获取版本信息成功")
	})
	r.registerDistributionRoutes(apiGroup)
}

func (r *Router) registerDistributionRoutes(api *gin.RouterGroup) {
	h := r.distributionHandler
	group := api.Group("/distribution", r.mw.FeatureGate(), r.mw.JWTAuth())
	{
		group.GET("/inbox", h.ListForRecipient)
		group.GET("/files/:id", h.Get)
		group.GET("/files/:id/download", h.Download)
		group.POST("/files/:id/read", h.AcknowledgeRead)
	}

	publisher := group.Group("", r.mw.RequirePublisher())
	{
		publisher.POST("/files", h.Publish)
		publisher.GET("/files", h.ListForPublisher)
		publisher.DELETE("/files/:id", h.DeleteOne)
		publisher.DELETE("/files", h.DeleteAll)
		publisher.GET("/stats", h.Stats)
	}
}

func (r *Router) healthz(c *gin.Context) {
	if r.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.ping(ctx); err != nil {
			response.Fail(c, http.StatusServiceUnavailable, "数据库不可用")
			return
		}
	}
	response.Success(c, gin.H{"status": "ok"}, "ok")
}
