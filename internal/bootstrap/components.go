package bootstrap

import (
	"context"

	infrahttp "github.com/datacite/lupo-sub003/infrastructure/http"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/cache"
	"github.com/datacite/lupo-sub003/internal/config"
	"github.com/datacite/lupo-sub003/internal/connection"
	"github.com/datacite/lupo-sub003/internal/database"
	"github.com/datacite/lupo-sub003/internal/event"
	"github.com/datacite/lupo-sub003/internal/external"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/ror"
	"github.com/datacite/lupo-sub003/internal/worker"
)

// Components are the services built on top of an App.
type Components struct {
	JobStore    *database.JobRepository
	Queue       *job.RedisQueue
	Enqueuer    *job.Enqueuer
	Cache       *cache.Redis
	Connections *connection.Resolver
	Events      *event.Resolver
	// ROR is nil when no reference bucket is configured.
	ROR      *ror.ReferenceStore
	Handlers *worker.Handlers
}

// NewComponents wires repositories, queue, lookups and job handlers.
func NewComponents(ctx context.Context, app *App) *Components {
	cfg := app.Config
	log := app.Logger

	c := &Components{
		JobStore: database.NewJobRepository(app.DB),
		Queue:    job.NewRedisQueue(app.Redis, cfg.Jobs.RedisPrefix),
		Cache:    cache.NewRedis(app.Redis, cfg.External.CachePrefix),
		Connections: connection.NewResolver(app.Search, connection.Config{
			DOIIndex:   cfg.Elasticsearch.DOIIndex,
			EventIndex: cfg.Elasticsearch.EventIndex,
		}, log.With(logger.String("component", "connections"))),
		Events: event.NewResolver(app.Search, cfg.Elasticsearch.EventIndex,
			log.With(logger.String("component", "events"))),
	}
	c.Enqueuer = job.NewEnqueuer(c.JobStore, c.Queue, cfg.Jobs.MaxAttempts, log)
	c.ROR = setupROR(ctx, cfg, c.Cache, log)

	deps := external.Deps{
		HTTP: infrahttp.NewClient(infrahttp.ClientConfig{
			Timeout:   cfg.External.Timeout,
			UserAgent: cfg.External.UserAgent,
		}),
		Cache:   c.Cache,
		Metrics: app.Metrics,
		Logger:  log,
	}

	workerDeps := worker.Deps{
		DOIs:        database.NewDOIRepository(app.DB),
		Events:      database.NewEventRepository(app.DB),
		Enrichments: database.NewEnrichmentRepository(app.DB),
		Researchers: database.NewResearcherRepository(app.DB),
		Index:       app.Search,
		Counts:      c.Events,
		Agencies:    external.NewRAClient(endpoint(cfg.External.RA, cfg.External.Mailto), deps),
		Members:     external.NewCrossrefClient(endpoint(cfg.External.Crossref, cfg.External.Mailto), deps),
		People:      external.NewORCIDClient(endpoint(cfg.External.ORCID, cfg.External.Mailto), deps),
		Jobs:        c.Enqueuer,
		Logger:      log.With(logger.String("component", "worker")),
	}
	if c.ROR != nil {
		workerDeps.Funders = c.ROR
	}
	c.Handlers = worker.New(worker.Config{
		DOIIndex:              cfg.Elasticsearch.DOIIndex,
		EventIndex:            cfg.Elasticsearch.EventIndex,
		BatchSize:             cfg.Jobs.BatchSize,
		EnrichmentConcurrency: cfg.Jobs.EnrichmentConcurrency,
	}, workerDeps)

	return c
}

func endpoint(e config.EndpointConfig, mailto string) external.Config {
	return external.Config{
		BaseURL:  e.BaseURL,
		Delay:    e.Delay,
		CacheTTL: e.CacheTTL,
		Mailto:   mailto,
	}
}

// setupROR returns nil when storage is not configured or the S3 client
// cannot be built; funder enrichment is then skipped.
func setupROR(ctx context.Context, cfg *config.Config, c cache.Cache, log logger.Logger) *ror.ReferenceStore {
	if cfg.Storage.Bucket == "" {
		log.Warn("No ROR reference bucket configured; funder ROR enrichment disabled")
		return nil
	}
	client, err := ror.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		log.Error("Failed to create S3 client; funder ROR enrichment disabled", logger.Error(err))
		return nil
	}
	return ror.NewReferenceStore(client, cfg.Storage.Bucket, cfg.Storage.Prefix, c,
		log.With(logger.String("component", "ror")))
}
