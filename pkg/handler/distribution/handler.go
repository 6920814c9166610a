/*
 * @Description: 文件分发接口
 * @Author: 安知鱼
 * @Date: 2026-09-14 10:05:31
 * @LastEditTime: 2026-09-27 17:42:10
 * @LastEditors: 安知鱼
 */
package distribution

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/app/middleware"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/idgen"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/response"
	distribution_service "github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

// Handler 负责处理所有与文件分发相关的HTTP请求
type Handler struct {
	svc           distribution_service.Service
	maxUploadSize int64
}

// NewHandler 是 Handler 的构造函数，maxUploadSize 用于限制整个 multipart 请求体
func NewHandler(svc distribution_service.Service, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = constant.DefaultMaxUploadSize
	}
	return &Handler{svc: svc, maxUploadSize: maxUploadSize}
}

// caller 取出认证中间件写入的身份，缺失时直接写 401
func caller(c *gin.Context) (model.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "权限信息获取失败")
		return model.Identity{}, false
	}
	return id, true
}

// recordID 解析路径中的公共ID，无效的ID与不存在的记录一样返回 404
func recordID(c *gin.Context) (uint, bool) {
	id, err := idgen.DecodeEntityID(c.Param("id"), idgen.EntityTypeDistributionRecord)
	if err != nil {
		response.Fail(c, http.StatusNotFound, constant.ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

// fail 统一的错误响应。针对单条记录的请求中，组织成员无权访问的记录按不存在处理
func fail(c *gin.Context, err error, who model.Identity, perRecord bool) {
	if perRecord && !who.IsPublisher() && errors.Is(err, constant.ErrForbidden) {
		err = constant.ErrNotFound
	}
	code, _ := response.StatusFor(err)
	logger := loggerFrom(c)
	switch {
	case code >= http.StatusInternalServerError:
		logger.Error().Err(err).
			Str("user_id", who.UserID).
			Str("role", string(who.Role)).
			Str("workplace_id", who.WorkplaceID).
			Str("record_id", c.Param("id")).
			Str("path", c.FullPath()).
			Msg("文件分发请求失败")
	case code == http.StatusTooManyRequests:
		logger.Info().Err(err).Str("user_id", who.UserID).Msg("上传被限流")
	}
	response.Error(c, err)
}

// loggerFrom 优先使用请求日志中间件注入的带请求ID的 logger
func loggerFrom(c *gin.Context) *zerolog.Logger {
	logger := zerolog.Ctx(c.Request.Context())
	if logger.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return logger
}
