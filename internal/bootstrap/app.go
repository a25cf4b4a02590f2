// Package bootstrap handles application initialization and lifecycle
// management for the registry commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
	"github.com/datacite/lupo-sub003/internal/config"
	"github.com/datacite/lupo-sub003/internal/database"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
)

// App holds the connections shared by every command.
type App struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics
	DB      *sqlx.DB
	Redis   *redis.Client
	Search  *elasticsearch.Client
}

// Backend selects the connections opened by Setup.
type Backend int

const (
	BackendDatabase Backend = 1 << iota
	BackendRedis
	BackendSearch

	BackendAll = BackendDatabase | BackendRedis | BackendSearch
)

// Setup loads configuration and opens the selected connections.
func Setup(ctx context.Context, configPath string, backends Backend) (*App, error) {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: log, Metrics: metrics.New("registry")}

	// Phase 2: Setup database
	if backends&BackendDatabase != 0 {
		if app.DB, err = SetupDatabase(ctx, cfg, log); err != nil {
			app.Close()
			return nil, err
		}
		log.Info("Database connection established")
	}

	// Phase 3: Setup Redis
	if backends&BackendRedis != 0 {
		if app.Redis, err = SetupRedis(ctx, cfg); err != nil {
			app.Close()
			return nil, err
		}
		log.Info("Redis connection established", logger.String("address", cfg.Redis.Address))
	}

	// Phase 4: Setup Elasticsearch
	if backends&BackendSearch != 0 {
		if app.Search, err = SetupElasticsearch(ctx, cfg, log, app.Metrics); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// Close releases every open connection.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", logger.Error(err))
		}
	}
	if err := database.Close(a.DB); err != nil {
		a.Logger.Error("Failed to close database connection", logger.Error(err))
	}
	_ = a.Logger.Sync()
}

// Ping checks every open backend.
func (a *App) Ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.Search != nil {
		if err := a.Search.Ping(ctx); err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
	}
	return nil
}
