package gin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infragin "github.com/datacite/lupo-sub003/infrastructure/gin"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
)

func buildRouter(t *testing.T, checks map[string]infragin.HealthCheck) *gin.Engine {
	t.Helper()

	b := infragin.NewServerBuilder("registry", 0).
		WithLogger(logger.NewNop()).
		WithMetrics(metrics.New("test")).
		WithRoutes(func(r *gin.Engine) {
			r.GET("/ping", func(c *gin.Context) {
				assert.NotEmpty(t, infragin.RequestID(c))
				c.String(http.StatusOK, "pong")
			})
			r.GET("/panic", func(*gin.Context) { panic("boom") })
		})
	for name, check := range checks {
		b.WithHealthCheck(name, check)
	}
	return b.Build().Router()
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	r := buildRouter(t, nil)

	w := do(r, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(infragin.RequestIDHeader), 36)

	w = do(r, http.MethodGet, "/ping", map[string]string{infragin.RequestIDHeader: "upstream-1"})
	assert.Equal(t, "upstream-1", w.Header().Get(infragin.RequestIDHeader))
}

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	w := do(buildRouter(t, nil), http.MethodGet, "/panic", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"data":null,"errors":[{"message":"internal server error"}]}`, w.Body.String())
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	w := do(buildRouter(t, nil), http.MethodOptions, "/ping", map[string]string{"Origin": "https://commons.datacite.org"})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]infragin.HealthCheck
		wantCode   int
		wantStatus infragin.HealthStatus
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: infragin.HealthStatusHealthy,
		},
		{
			name: "optional dependency down",
			checks: map[string]infragin.HealthCheck{
				"redis": {Ping: func(context.Context) error { return errors.New("refused") }},
			},
			wantCode:   http.StatusOK,
			wantStatus: infragin.HealthStatusDegraded,
		},
		{
			name: "critical dependency down",
			checks: map[string]infragin.HealthCheck{
				"elasticsearch": {Ping: func(context.Context) error { return errors.New("refused") }, Critical: true},
				"redis":         {Ping: func(context.Context) error { return nil }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: infragin.HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := do(buildRouter(t, tt.checks), http.MethodGet, "/health", nil)
			require.Equal(t, tt.wantCode, w.Code)

			var body infragin.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "registry", body.Service)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	r := buildRouter(t, nil)
	do(r, http.MethodGet, "/ping", nil)

	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}
