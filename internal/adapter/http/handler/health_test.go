package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cstore/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	name string
	err  error
}

func (c *fakeChecker) Ping(context.Context) error { return c.err }
func (c *fakeChecker) Name() string               { return c.name }

func healthRequest(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func healthRouter(checkers ...*fakeChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	deps := make([]ports.HealthChecker, len(checkers))
	for i, c := range checkers {
		deps[i] = c
	}
	r.GET("/health", HealthCheck(deps...))
	return r
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	r := healthRouter(&fakeChecker{name: "postgres"}, &fakeChecker{name: "redis"})

	w := healthRequest(r)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Dependencies["postgres"]["status"])
	assert.Equal(t, "healthy", body.Dependencies["redis"]["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	r := healthRouter(
		&fakeChecker{name: "postgres"},
		&fakeChecker{name: "redis", err: errors.New("dial tcp: connection refused")},
	)

	w := healthRequest(r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Dependencies["postgres"]["status"])
	assert.Equal(t, "unhealthy", body.Dependencies["redis"]["status"])
	assert.Contains(t, body.Dependencies["redis"]["error"], "connection refused")
}

func TestHealthCheck_NoCheckers(t *testing.T) {
	r := healthRouter()

	w := healthRequest(r)
	assert.Equal(t, http.StatusOK, w.Code, "no dependencies means nothing can be down")
}
