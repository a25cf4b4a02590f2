package gin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus is the overall or per-dependency state.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const healthCheckTimeout = 3 * time.Second

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency probe.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency"`
}

// HealthCheck describes a dependency probe. Critical failures make the
// service unhealthy; others only degrade it.
type HealthCheck struct {
	Ping     func(ctx context.Context) error
	Critical bool
}

func (h HealthCheck) run(ctx context.Context) CheckResult {
	start := time.Now()
	err := h.Ping(ctx)
	res := CheckResult{Status: HealthStatusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		res.Message = err.Error()
		res.Status = HealthStatusDegraded
		if h.Critical {
			res.Status = HealthStatusUnhealthy
		}
	}
	return res
}

// RegisterHealthRoutes adds GET and HEAD /health. Checks run concurrently.
func RegisterHealthRoutes(router *gin.Engine, cfg *Config, checks map[string]HealthCheck) {
	started := time.Now()

	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		resp := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: cfg.ServiceName,
			Version: cfg.ServiceVersion,
			Uptime:  time.Since(started).Truncate(time.Second).String(),
		}

		if len(checks) > 0 {
			resp.Checks = make(map[string]CheckResult, len(checks))
			var (
				mu sync.Mutex
				wg sync.WaitGroup
			)
			for name, check := range checks {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res := check.run(ctx)
					mu.Lock()
					resp.Checks[name] = res
					mu.Unlock()
				}()
			}
			wg.Wait()
		}

		for _, res := range resp.Checks {
			switch {
			case res.Status == HealthStatusUnhealthy:
				resp.Status = HealthStatusUnhealthy
			case res.Status == HealthStatusDegraded && resp.Status == HealthStatusHealthy:
				resp.Status = HealthStatusDegraded
			}
		}

		code := http.StatusOK
		if resp.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	})
}
