// Package api serves the read-side query endpoints and the job enqueue
// endpoint over gin.
package api

import (
	"context"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/connection"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/event"
	"github.com/datacite/lupo-sub003/internal/job"
)

// ConnectionResolver resolves connections and single works.
type ConnectionResolver interface {
	Resolve(ctx context.Context, name string, args connection.Args) (*connection.Connection, error)
	Work(ctx context.Context, id string) (*domain.Record, error)
}

// EventReader reads relation events.
type EventReader interface {
	Relation(ctx context.Context, subjectID, objectID, sourceID string) (*event.Relation, error)
	CitationsOverTime(ctx context.Context, doi string) ([]domain.YearTotal, error)
}

// JobEnqueuer schedules background jobs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, queue, operation string, args job.Args) (*job.Job, error)
}

// JobReader loads job records.
type JobReader interface {
	Get(ctx context.Context, id string) (*job.Job, error)
	CountByStatus(ctx context.Context) (map[job.Status]int64, error)
	List(ctx context.Context, status job.Status, limit, offset int) ([]job.Job, error)
}

// DefaultMaxConnections bounds the connections of one batch query.
const DefaultMaxConnections = 20

// Handler holds HTTP request handlers
type Handler struct {
	connections    ConnectionResolver
	events         EventReader
	enqueuer       JobEnqueuer
	jobs           JobReader
	logger         logger.Logger
	maxConnections int
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxConnections overrides DefaultMaxConnections.
func WithMaxConnections(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxConnections = n
		}
	}
}

// NewHandler creates a new handler instance
func NewHandler(
	connections ConnectionResolver,
	events EventReader,
	enqueuer JobEnqueuer,
	jobs JobReader,
	log logger.Logger,
	opts ...Option,
) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	h := &Handler{
		connections:    connections,
		events:         events,
		enqueuer:       enqueuer,
		jobs:           jobs,
		logger:         log,
		maxConnections: DefaultMaxConnections,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
