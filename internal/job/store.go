package job

import (
	"context"
	"time"
)

// Store persists job records.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// MarkRunning moves a queued or retrying job to running and increments
	// its attempt count. It returns domain.ErrNotFound if the job is terminal.
	MarkRunning(ctx context.Context, id string) (*Job, error)
	MarkSucceeded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, status Status, lastErr string, runAt time.Time) error
	// ResetStale returns jobs running longer than olderThan to queued and
	// lists them, together with queued or retrying jobs whose run_at passed
	// more than olderThan ago, for redelivery.
	ResetStale(ctx context.Context, olderThan time.Duration) ([]Job, error)
}

// Queue delivers job IDs.
type Queue interface {
	Push(ctx context.Context, queue, id string) error
	Pop(ctx context.Context, queue string) (string, error)
	Ack(ctx context.Context, queue, id string) error
	Schedule(ctx context.Context, queue, id string, at time.Time) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}
