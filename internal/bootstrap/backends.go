package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	infraes "github.com/datacite/lupo-sub003/infrastructure/elasticsearch"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
	infraredis "github.com/datacite/lupo-sub003/infrastructure/redis"
	"github.com/datacite/lupo-sub003/internal/config"
	"github.com/datacite/lupo-sub003/internal/database"
	"github.com/datacite/lupo-sub003/internal/elasticsearch"
)

// SetupDatabase opens PostgreSQL and, when enabled, applies migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	if cfg.Service.AutoMigrate {
		if err = database.RunMigrations(db.DB, log); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return db, nil
}

// SetupRedis opens the Redis client shared by the queue and the cache.
func SetupRedis(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client, err := infraredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	return client, nil
}

// SetupElasticsearch connects to the cluster and wraps it for queries and writes.
func SetupElasticsearch(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	m *metrics.Metrics,
) (*elasticsearch.Client, error) {
	esClient, err := infraes.NewClient(ctx, cfg.Elasticsearch, log)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return elasticsearch.NewClient(esClient,
		elasticsearch.WithLogger(log),
		elasticsearch.WithMetrics(m),
		elasticsearch.WithQueryTimeout(cfg.Elasticsearch.QueryTimeout),
	), nil
}
