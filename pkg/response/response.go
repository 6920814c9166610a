/*
 * @Description: 统一响应结构与错误映射
 * @Author: 安知鱼
 * @Date: 2026-09-12 12:16:18
 * @LastEditTime: 2026-09-25 19:08:52
 * @LastEditors: 安知鱼
 */
package response

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// Response 是统一的API返回结构体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// SuccessWithStatus 成功响应，但允许自定义 HTTP 状态码，例如 201 Created。
func SuccessWithStatus(c *gin.Context, code int, data any, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// StatusFor 将业务错误映射为 HTTP 状态码与对外消息。
// 未识别的错误统一返回 500 与通用消息，具体原因只写日志。
func StatusFor(err error) (int, string) {
	var ve *constant.ValidationError
	var rle *constant.RateLimitError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.As(err, &rle):
		return http.StatusTooManyRequests, rle.Error()
	case errors.Is(err, constant.ErrNotFound):
		return http.StatusNotFound, constant.ErrNotFound.Error()
	case errors.Is(err, constant.ErrForbidden):
		return http.StatusForbidden, constant.ErrForbidden.Error()
	case errors.Is(err, constant.ErrInvalidToken), errors.Is(err, constant.ErrUnauthorized):
		return http.StatusUnauthorized, constant.ErrUnauthorized.Error()
	case errors.Is(err, constant.ErrBadRequest), errors.Is(err, constant.ErrInvalidPublicID), errors.Is(err, constant.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, constant.ErrFeatureDisabled):
		return http.StatusServiceUnavailable, constant.ErrFeatureDisabled.Error()
	case errors.Is(err, constant.ErrStorageBackend):
		return http.StatusBadGateway, constant.ErrStorageBackend.Error()
	default:
		return http.StatusInternalServerError, constant.ErrInternalServer.Error()
	}
}

// Error 根据错误类型写入失败响应，限流错误附带 Retry-After 头
func Error(c *gin.Context, err error) {
	var rle *constant.RateLimitError
	if errors.As(err, &rle) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
	}
	code, msg := StatusFor(err)
	Fail(c, code, msg)
}
