package gin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
)

// ServerBuilder assembles a Server fluently.
type ServerBuilder struct {
	config      *Config
	logger      logger.Logger
	metrics     *metrics.Metrics
	setupRoutes func(*gin.Engine)
	checks      map[string]HealthCheck
}

// NewServerBuilder starts a builder for serviceName listening on port.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config: &Config{ServiceName: serviceName, Port: port},
		checks: make(map[string]HealthCheck),
	}
}

func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

func (b *ServerBuilder) WithCORSOrigins(origins []string) *ServerBuilder {
	b.config.AllowedOrigins = origins
	return b
}

func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithMetrics installs the request middleware and serves GET /metrics.
func (b *ServerBuilder) WithMetrics(m *metrics.Metrics) *ServerBuilder {
	b.metrics = m
	return b
}

// WithHealthCheck adds a named dependency probe to GET /health.
func (b *ServerBuilder) WithHealthCheck(name string, check HealthCheck) *ServerBuilder {
	b.checks[name] = check
	return b
}

func (b *ServerBuilder) WithRoutes(setup func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setup
	return b
}

// Build creates the server.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.NewNop()
	}
	b.config.SetDefaults()

	return NewServer(b.config, b.logger, func(router *gin.Engine) {
		if b.metrics != nil {
			router.Use(b.metrics.GinMiddleware())
			router.GET("/metrics", gin.WrapH(b.metrics.Handler()))
		}
		RegisterHealthRoutes(router, b.config, b.checks)
		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	})
}
