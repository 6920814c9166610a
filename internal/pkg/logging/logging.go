/*
 * @Description: 全局日志初始化
 * @Author: 安知鱼
 * @Date: 2026-09-06 11:20:33
 * @LastEditTime: 2026-09-06 11:48:02
 * @LastEditors: 安知鱼
 */
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup 配置全局 logger。调试模式下输出彩色控制台格式，否则输出 JSON。
func Setup(level string, debug bool) {
	SetupWithWriter(os.Stderr, level, debug)
}

// SetupWithWriter 与 Setup 相同，但允许指定输出目标
func SetupWithWriter(w io.Writer, level string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(level))

	if debug {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}).
			With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel 解析日志级别，无法识别时使用 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
