package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/cache"
	"github.com/datacite/lupo-sub003/internal/database"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/worker"
)

// ErrNoReferenceBucket is returned by RefreshROR without storage config.
var ErrNoReferenceBucket = errors.New("storage.bucket is not configured")

// Enqueue records one job and pushes it on its operation's queue. It needs
// the database and Redis backends.
func Enqueue(ctx context.Context, app *App, operation string, args job.Args) (*job.Job, error) {
	enqueuer := job.NewEnqueuer(
		database.NewJobRepository(app.DB),
		job.NewRedisQueue(app.Redis, app.Config.Jobs.RedisPrefix),
		app.Config.Jobs.MaxAttempts,
		app.Logger,
	)
	j, err := enqueuer.Enqueue(ctx, worker.QueueFor(operation), operation, args)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", operation, err)
	}
	return j, nil
}

// RefreshROR reloads every ROR reference mapping into the cache. It needs
// the Redis backend.
func RefreshROR(ctx context.Context, app *App) error {
	store := setupROR(ctx, app.Config, cache.NewRedis(app.Redis, app.Config.External.CachePrefix), app.Logger)
	if store == nil {
		return ErrNoReferenceBucket
	}
	if err := store.RefreshAll(ctx); err != nil {
		return fmt.Errorf("refresh ror mappings: %w", err)
	}
	app.Logger.Info("ROR reference mappings refreshed", logger.String("bucket", app.Config.Storage.Bucket))
	return nil
}
