package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
)

// Enqueuer records and delivers new jobs.
type Enqueuer struct {
	store       Store
	queue       Queue
	log         logger.Logger
	maxAttempts int
	now         func() time.Time
}

// NewEnqueuer returns an Enqueuer. maxAttempts <= 0 uses the default.
func NewEnqueuer(store Store, queue Queue, maxAttempts int, log logger.Logger) *Enqueuer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Enqueuer{store: store, queue: queue, log: log, maxAttempts: maxAttempts, now: time.Now}
}

// Enqueue persists a queued job for operation and pushes it onto queue.
func (e *Enqueuer) Enqueue(ctx context.Context, queue, operation string, args Args) (*Job, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", operation, err)
	}

	now := e.now().UTC()
	j := &Job{
		ID:          uuid.NewString(),
		Queue:       queue,
		Operation:   operation,
		Payload:     payload,
		Status:      StatusQueued,
		MaxAttempts: e.maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = e.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create %s job: %w", operation, err)
	}
	if err = e.queue.Push(ctx, queue, j.ID); err != nil {
		return nil, err
	}

	e.log.Debug("Job enqueued",
		logger.JobID(j.ID),
		logger.Operation(operation),
		logger.String("queue", queue),
	)
	return j, nil
}
