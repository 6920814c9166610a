/*
 * @Description: 业务错误定义
 * @Author: 安知鱼
 * @Date: 2026-09-02 10:12:40
 * @LastEditTime: 2026-09-21 16:40:05
 * @LastEditors: 安知鱼
 */
package constant

import (
	"errors"
	"fmt"
	"time"
)

// 定义业务逻辑相关的标准错误
var (
	// ErrNotFound 表示资源未找到或已被软删除，可以由 Handler 转换为 404
	ErrNotFound = errors.New("资源未找到")

	// ErrForbidden 表示角色或组织无权执行该操作，可以由 Handler 转换为 403
	ErrForbidden = errors.New("操作禁止")

	// ErrInternalServer 表示服务器内部错误，可以由 Handler 转换为 500
	ErrInternalServer = errors.New("内部服务器错误")

	// ErrBadRequest 表示请求参数错误，可以由 Handler 转换为 400
	ErrBadRequest = errors.New("错误的请求")

	// ErrUnauthorized 表示未授权，可以由 Handler 转换为 401
	ErrUnauthorized = errors.New("未经授权的访问")

	// ErrInvalidToken 表示无效的令牌，可以由 Handler 转换为 401
	ErrInvalidToken = errors.New("无效令牌")

	// ErrInvalidPublicID 表示无效的公共ID，可以由 Handler 转换为 400
	ErrInvalidPublicID = errors.New("无效的公共ID")

	// ErrValidation 表示上传内容未通过校验（超出大小或类型不被允许），可以由 Handler 转换为 400
	ErrValidation = errors.New("文件校验失败")

	// ErrRateLimited 表示发布者超出了每分钟上传限额，可以由 Handler 转换为 429
	ErrRateLimited = errors.New("上传过于频繁")

	// ErrStorageBackend 表示存储后端调用失败，可以由 Handler 转换为 502
	ErrStorageBackend = errors.New("存储后端错误")

	// ErrFeatureDisabled 表示文件分发功能已被关闭，可以由 Handler 转换为 503
	ErrFeatureDisabled = errors.New("文件分发功能未启用")

	// ErrStorageNotFound 表示记录引用的存储后端未配置
	ErrStorageNotFound = errors.New("未找到存储后端")
)

// 校验规则名称
const (
	RuleMaxSize      = "max_size"
	RuleMimeType     = "mime_type"
	RuleEmptyFile    = "empty_file"
	RuleCategory     = "category"
	RuleFilename     = "filename"
	RuleSizeMismatch = "size_mismatch"
)

// ValidationError 指明了上传被拒绝时违反的具体规则
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s(%s): %s", ErrValidation.Error(), e.Rule, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError 创建一个校验错误
func NewValidationError(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// RateLimitError 携带了调用方需要等待的时间
type RateLimitError struct {
	Limit      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: 已达到 %s 限额，请在 %s 后重试", ErrRateLimited.Error(), e.Limit, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// BackendError 包装了存储驱动返回的原始错误
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s %s 失败: %v", ErrStorageBackend.Error(), e.Backend, e.Op, e.Err)
}

// Unwrap 同时暴露哨兵错误和底层错误
func (e *BackendError) Unwrap() []error { return []error{ErrStorageBackend, e.Err} }
