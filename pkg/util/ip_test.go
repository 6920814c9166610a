package util

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetRealClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:443", "203.0.113.7"},
		{"invalid forwarded falls through", map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "198.51.100.2"}, "10.0.0.1:443", "198.51.100.2"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "2001:db8::1"}, "10.0.0.1:443", "2001:db8::1"},
		{"remote addr", nil, "192.0.2.10:5123", "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Request.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealClientIP(c))
		})
	}
}
