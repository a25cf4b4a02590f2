package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"

	infragin "github.com/datacite/lupo-sub003/infrastructure/gin"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/api"
)

// SetupHTTPServer creates and configures the HTTP server.
func SetupHTTPServer(app *App, c *Components) *infragin.Server {
	cfg := app.Config
	handler := api.NewHandler(c.Connections, c.Events, c.Enqueuer, c.JobStore, app.Logger,
		api.WithMaxConnections(cfg.Query.MaxConnections))

	return infragin.NewServerBuilder(cfg.Service.Name, cfg.Server.Port).
		WithLogger(app.Logger).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.AllowedOrigins).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout).
		WithMetrics(app.Metrics).
		WithHealthCheck("database", infragin.HealthCheck{
			Ping:     func(ctx context.Context) error { return app.DB.PingContext(ctx) },
			Critical: true,
		}).
		WithHealthCheck("elasticsearch", infragin.HealthCheck{
			Ping:     app.Search.Ping,
			Critical: true,
		}).
		WithHealthCheck("redis", infragin.HealthCheck{
			Ping: func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() },
		}).
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, handler)
		}).
		Build()
}

// Serve runs the HTTP API until ctx is cancelled or a signal arrives.
func Serve(ctx context.Context, app *App) error {
	c := NewComponents(ctx, app)
	server := SetupHTTPServer(app, c)

	if err := server.Run(ctx); err != nil {
		app.Logger.Error("Server error", logger.Error(err))
		return err
	}
	app.Logger.Info("Registry API stopped")
	return nil
}
