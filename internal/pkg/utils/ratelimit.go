/*
 * @Description: 下载限速写入器
 * @Author: 安知鱼
 * @Date: 2026-09-11 11:00:56
 * @LastEditTime: 2026-09-24 10:04:15
 * @LastEditors: 安知鱼
 */
package utils

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ThrottledWriter 是一个实现了 io.Writer 接口的结构体，用于限制写入速度。
type ThrottledWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

// NewThrottledWriter 创建一个新的限速写入器。
// bytesPerSecond <= 0 时不限速，直接返回原始的 writer。
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSecond int64) io.Writer {
	if bytesPerSecond <= 0 {
		return w
	}
	// 1 token = 1 byte，桶大小与速率相同
	return &ThrottledWriter{
		ctx:     ctx,
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond)),
	}
}

// Write 按桶大小切分后写入，单次 WaitN 不会超过桶容量
func (t *ThrottledWriter) Write(p []byte) (int, error) {
	written := 0
	burst := t.limiter.Burst()
	for written < len(p) {
		chunk := p[written:]
		if len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := t.limiter.WaitN(t.ctx, len(chunk)); err != nil {
			return written, err
		}
		n, err := t.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
