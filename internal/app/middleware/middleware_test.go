package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/auth"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
)

var testSecret = []byte("middleware-test-secret")

func newTestEngine(m *Middleware, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.String(http.StatusOK, id.UserID)
	})
	r.GET("/api/files", chain...)
	return r
}

func bearer(t *testing.T, id model.Identity) string {
	t.Helper()
	token, err := auth.GenerateToken(id, time.Hour, testSecret)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestJWTAuth(t *testing.T) {
	m := NewMiddleware(testSecret, nil)
	r := newTestEngine(m, m.JWTAuth())

	publisher := model.Identity{UserID: "hr-1", Role: constant.RolePublisher}
	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid publisher", bearer(t, publisher), http.StatusOK},
		{"unsupported role", bearer(t, model.Identity{UserID: "u-9", Role: "guest"}), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestRequirePublisher(t *testing.T) {
	m := NewMiddleware(testSecret, nil)
	r := newTestEngine(m, m.JWTAuth(), m.RequirePublisher())

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", bearer(t, model.Identity{UserID: "m-1", Role: constant.RoleMember, WorkplaceID: "wp-x"}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", bearer(t, model.Identity{UserID: "hr-1", Role: constant.RolePublisher}))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hr-1", w.Body.String())
}

func TestFeatureGate(t *testing.T) {
	enabled := false
	m := NewMiddleware(testSecret, func() bool { return enabled })
	r := newTestEngine(m, m.FeatureGate())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	enabled = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCustomRateLimit(t *testing.T) {
	m := NewMiddleware(testSecret, nil)
	r := newTestEngine(m, CustomRateLimit(60, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
		req.RemoteAddr = "10.0.0.8:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他IP不受影响
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.9, 172.16.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLoggerSetsID(t *testing.T) {
	m := NewMiddleware(testSecret, nil)
	r := newTestEngine(m, RequestLogger())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestCorsPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Cors())
	r.GET("/api/files", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/files", nil)
	req.Header.Set("Origin", "https://hr.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://hr.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
