package distribution

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/auth"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/idgen"
	distribution_service "github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

type brokenService struct {
	distribution_service.Service
}

func (brokenService) Get(context.Context, uint, model.Identity) (*model.DistributionRecord, error) {
	return nil, errors.New("connection reset by peer")
}

func TestUnexpectedFailureLogsRecordID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.NoError(t, idgen.Setup("handler-test"))
	publicID, err := idgen.GeneratePublicID(42, idgen.EntityTypeDistributionRecord)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	who := model.Identity{UserID: "u-x", Role: constant.RoleMember, WorkplaceID: "wp-x"}

	h := NewHandler(brokenService{}, 0)
	engine := gin.New()
	engine.GET("/files/:id", func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Set(auth.ClaimsKey, who)
		c.Next()
	}, h.Get)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/"+publicID, nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	out := buf.String()
	assert.Contains(t, out, `"record_id":"`+publicID+`"`)
	assert.Contains(t, out, `"user_id":"u-x"`)
	assert.Contains(t, out, `"workplace_id":"wp-x"`)
}
