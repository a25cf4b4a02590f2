// Package gin wires the registry HTTP server: standard middleware, health
// endpoints, metrics exposure and graceful shutdown.
package gin

import "time"

// Default timeouts of the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	// Port is the port number to listen on.
	Port int

	// Debug switches gin into debug mode with verbose route logging.
	Debug bool

	// ReadTimeout bounds reading the entire request, body included.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response. Batch queries that fan out
	// to several searches need it above the search timeout.
	WriteTimeout time.Duration

	// IdleTimeout is how long a keep-alive connection waits for the next request.
	IdleTimeout time.Duration

	// ShutdownTimeout is how long in-flight requests get to finish on shutdown.
	ShutdownTimeout time.Duration

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string

	// ServiceName is reported by the health endpoints.
	ServiceName string

	// ServiceVersion is reported by the health endpoints; "dev" when unset.
	ServiceVersion string
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "dev"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}
