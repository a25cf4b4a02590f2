package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
	"github.com/datacite/lupo-sub003/infrastructure/retry"
	"github.com/datacite/lupo-sub003/internal/domain"
)

const (
	defaultConcurrency       = 2
	defaultPollInterval      = time.Second
	defaultPromoteInterval   = 5 * time.Second
	defaultStaleAfter        = 30 * time.Minute
	defaultBackoffInitial    = 30 * time.Second
	defaultBackoffMax        = time.Hour
	defaultBackoffMultiplier = 4.0
)

// Handler executes one operation. Returned errors are classified by Classify.
type Handler func(ctx context.Context, j *Job, args Args) error

// RunnerConfig holds runner options. Zero values take defaults.
type RunnerConfig struct {
	Queues          []string
	Concurrency     int
	PollInterval    time.Duration
	PromoteInterval time.Duration
	StaleAfter      time.Duration
	// Backoff schedules retry attempts; MaxAttempts is ignored in favour of
	// the per-job limit.
	Backoff retry.Config
}

// DefaultRunnerConfig consumes every queue.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Queues:          []string{QueueDefault, QueueBackground, QueueImport, QueueOther, QueueTransfer, QueueEvents},
		Concurrency:     defaultConcurrency,
		PollInterval:    defaultPollInterval,
		PromoteInterval: defaultPromoteInterval,
		StaleAfter:      defaultStaleAfter,
		Backoff: retry.Config{
			InitialDelay: defaultBackoffInitial,
			MaxDelay:     defaultBackoffMax,
			Multiplier:   defaultBackoffMultiplier,
		},
	}
}

// Runner pops job IDs from its queues and executes the registered handler.
type Runner struct {
	store    Store
	queue    Queue
	handlers map[string]Handler
	metrics  *metrics.Metrics
	logger   logger.Logger
	tracer   trace.Tracer
	cfg      RunnerConfig
	now      func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewRunner creates a runner. m may be nil.
func NewRunner(store Store, queue Queue, cfg RunnerConfig, m *metrics.Metrics, log logger.Logger) *Runner {
	def := DefaultRunnerConfig()
	if len(cfg.Queues) == 0 {
		cfg.Queues = def.Queues
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = def.PromoteInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if cfg.Backoff.MaxDelay <= 0 {
		cfg.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	if cfg.Backoff.Multiplier <= 0 {
		cfg.Backoff.Multiplier = def.Backoff.Multiplier
	}

	return &Runner{
		store:    store,
		queue:    queue,
		handlers: make(map[string]Handler),
		metrics:  m,
		logger:   log,
		tracer:   otel.Tracer("job-runner"),
		cfg:      cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Register binds operation to h. Call before Start.
func (r *Runner) Register(operation string, h Handler) {
	r.handlers[operation] = h
}

// Operations lists the registered operation names.
func (r *Runner) Operations() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	return ops
}

// Start launches Concurrency consumers per queue and the delayed-job promoter.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	for _, q := range r.cfg.Queues {
		for range r.cfg.Concurrency {
			r.wg.Add(1)
			go r.consume(ctx, q)
		}
	}

	r.wg.Add(1)
	go r.runPromoter(ctx)

	r.logger.Info("Job runner started",
		logger.Strings("queues", r.cfg.Queues),
		logger.Int("concurrency", r.cfg.Concurrency),
	)
}

// Stop waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("Job runner stopped")
}

func (r *Runner) consume(ctx context.Context, queue string) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		id, err := r.queue.Pop(ctx, queue)
		if err != nil {
			if !errors.Is(err, ErrEmpty) {
				r.logger.Error("Failed to pop job", logger.String("queue", queue), logger.Error(err))
			}
			if !r.wait(ctx, r.cfg.PollInterval) {
				return
			}
			continue
		}

		if _, err = r.Process(ctx, queue, id); err != nil {
			r.logger.Error("Failed to record job result",
				logger.JobID(id),
				logger.String("queue", queue),
				logger.Error(err),
			)
		}
	}
}

func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) runPromoter(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PromoteInterval)
	defer ticker.Stop()

	r.promote(ctx)

	for {
		select {
		case <-ticker.C:
			r.promote(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) promote(ctx context.Context) {
	n, err := r.queue.PromoteDue(ctx, r.now())
	if err != nil {
		r.logger.Error("Failed to promote delayed jobs", logger.Error(err))
		return
	}
	if n > 0 {
		r.logger.Debug("Promoted delayed jobs", logger.Int("count", n))
	}
}

// RecoverStale re-queues jobs stuck in running longer than StaleAfter,
// typically left behind by a worker that died mid-job, and re-pushes queued
// or retrying jobs whose delivery is overdue by StaleAfter. A redelivered id
// that another worker already claimed is skipped by MarkRunning.
func (r *Runner) RecoverStale(ctx context.Context) (int, error) {
	jobs, err := r.store.ResetStale(ctx, r.cfg.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	for i := range jobs {
		if err = r.queue.Push(ctx, jobs[i].Queue, jobs[i].ID); err != nil {
			return i, err
		}
	}
	if len(jobs) > 0 {
		r.logger.Warn("Recovered stale jobs", logger.Int("count", len(jobs)))
	}
	return len(jobs), nil
}

// processingRecoverer is implemented by queues that hold popped ids until
// they are acknowledged.
type processingRecoverer interface {
	RecoverProcessing(ctx context.Context, queue string) (int, error)
}

// RecoverUnacked moves ids popped by an earlier worker process but never
// acknowledged back to the ready lists of the runner's queues. Call it
// before Start.
func (r *Runner) RecoverUnacked(ctx context.Context) (int, error) {
	rq, ok := r.queue.(processingRecoverer)
	if !ok {
		return 0, nil
	}
	total := 0
	for _, queue := range r.cfg.Queues {
		n, err := rq.RecoverProcessing(ctx, queue)
		total += n
		if err != nil {
			return total, err
		}
	}
	if total > 0 {
		r.logger.Warn("Recovered unacknowledged jobs", logger.Int("count", total))
	}
	return total, nil
}

// Process runs the job id popped from queue and records its outcome. The
// returned error concerns bookkeeping only; handler failures are reflected
// in the outcome.
func (r *Runner) Process(ctx context.Context, queue, id string) (Outcome, error) {
	j, err := r.store.MarkRunning(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Debug("Skipping finished or unknown job", logger.JobID(id))
		return OutcomeDiscard, r.queue.Ack(ctx, queue, id)
	}
	if err != nil {
		// the row stays queued; RecoverStale re-pushes it once overdue and
		// RecoverUnacked drains the processing list on the next start
		return OutcomeRetry, fmt.Errorf("claim job %s: %w", id, err)
	}

	ctx, span := r.tracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.String("job_id", j.ID),
			attribute.String("queue", j.Queue),
			attribute.String("operation", j.Operation),
			attribute.Int("attempt", j.Attempts),
		))
	defer span.End()

	jobLog := r.logger.With(logger.JobID(j.ID), logger.Operation(j.Operation))
	ctx = logger.WithContext(ctx, jobLog)

	start := r.now()
	runErr := r.execute(ctx, j)
	outcome := Classify(runErr)
	if outcome == OutcomeRetry && !j.CanRetry() {
		outcome = OutcomeExhausted
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, string(outcome))
	}

	err = r.record(ctx, j, outcome, runErr, jobLog)
	r.metrics.ObserveJob(j.Queue, j.Operation, string(outcome), r.now().Sub(start))
	if err != nil {
		return outcome, err
	}
	return outcome, r.queue.Ack(ctx, queue, id)
}

func (r *Runner) execute(ctx context.Context, j *Job) (err error) {
	h, ok := r.handlers[j.Operation]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, j.Operation)
	}
	args, err := j.DecodeArgs()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, j, args)
}

func (r *Runner) record(ctx context.Context, j *Job, outcome Outcome, runErr error, log logger.Logger) error {
	switch outcome {
	case OutcomeSuccess:
		log.Debug("Job succeeded", logger.Int("attempt", j.Attempts))
		return r.store.MarkSucceeded(ctx, j.ID)

	case OutcomeRetry:
		runAt := r.now().Add(r.cfg.Backoff.Delay(j.Attempts))
		log.Warn("Job failed, will retry",
			logger.Int("attempt", j.Attempts),
			logger.Time("run_at", runAt),
			logger.Error(runErr),
		)
		if err := r.store.MarkFailed(ctx, j.ID, StatusRetrying, runErr.Error(), runAt); err != nil {
			return err
		}
		return r.queue.Schedule(ctx, j.Queue, j.ID, runAt)

	case OutcomeDiscard:
		log.Warn("Job discarded", logger.Error(runErr))
		return r.store.MarkFailed(ctx, j.ID, StatusFailed, runErr.Error(), j.RunAt)

	default:
		log.Error("Job failed permanently",
			logger.Int("attempts", j.Attempts),
			logger.Error(runErr),
		)
		return r.store.MarkFailed(ctx, j.ID, StatusFailed, runErr.Error(), j.RunAt)
	}
}
