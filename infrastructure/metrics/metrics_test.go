package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacite/lupo-sub003/infrastructure/metrics"
)

func TestGinMiddleware_CountsByRoute(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	m := metrics.New("test")
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/dois/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 2 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dois/abc", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/dois/:id", "200")), 0)
}

func TestObserveHelpers(t *testing.T) {
	t.Parallel()

	m := metrics.New("test")
	m.ObserveSearch("dois", "search", time.Millisecond, errors.New("boom"))
	m.ObserveJob("lupo", "index", "succeeded", time.Second)
	m.ObserveLookup("orcid", "200", false)
	m.ObserveLookup("orcid", "", true)

	assert.InDelta(t, 1, testutil.ToFloat64(m.SearchErrors.WithLabelValues("dois", "search")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsProcessed.WithLabelValues("lupo", "index", "succeeded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LookupRequests.WithLabelValues("orcid", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LookupCacheHits.WithLabelValues("orcid")), 0)

	var nilMetrics *metrics.Metrics
	nilMetrics.ObserveJob("q", "op", "failed", 0)
}
