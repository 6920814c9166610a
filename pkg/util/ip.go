// pkg/util/ip.go
package util

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// clientIPHeaders 按优先级排列的代理头部，覆盖常见的反向代理与 CDN（Cloudflare、腾讯云 EdgeOne、阿里云 CDN）
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Original-Forwarded-For",
	"CF-Connecting-IP",
	"EO-Connecting-IP",
	"Ali-CDN-Real-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// GetRealClientIP 获取客户端真实IP地址，头部都无效时回退到 gin 的 ClientIP
func GetRealClientIP(c *gin.Context) string {
	for _, header := range clientIPHeaders {
		v := c.GetHeader(header)
		if v == "" {
			continue
		}
		// 可能包含多个IP，格式：client, proxy1, proxy2
		first := strings.TrimSpace(strings.Split(v, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	return c.ClientIP()
}
