// Package scheduler runs the periodic maintenance of the registry on cron
// schedules: the nightly re-index sweep, the monthly ROR reference refresh
// and the recovery of jobs left running by a dead worker.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/worker"
)

// Entry names.
const (
	EntryImportSweep = "import_sweep"
	EntryRORRefresh  = "ror_refresh"
	EntryRecover     = "recover_stale"
)

// Enqueuer schedules jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, operation string, args job.Args) (*job.Job, error)
}

// RORRefresher reloads every ROR reference mapping.
type RORRefresher interface {
	RefreshAll(ctx context.Context) error
}

// StaleRecoverer re-queues jobs stuck in running.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context) (int, error)
}

// Config holds the cron specs. An empty spec disables its entry.
type Config struct {
	ImportSchedule     string
	RORRefreshSchedule string
	RecoverSchedule    string
}

// Deps are the collaborators driven by the schedule. A nil dependency
// disables the entries that need it.
type Deps struct {
	Jobs    Enqueuer
	ROR     RORRefresher
	Runner  StaleRecoverer
	Logger  logger.Logger
	Timeout time.Duration
}

// Entry describes one scheduled task.
type Entry struct {
	Name     string
	Schedule string
	Next     time.Time
}

// Scheduler owns the cron instance.
type Scheduler struct {
	cron    *cron.Cron
	deps    Deps
	log     logger.Logger
	specs   map[string]string
	entries map[string]cron.EntryID

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

const defaultTimeout = 30 * time.Minute

// New parses every configured spec. Schedules are evaluated in UTC.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}
	log := deps.Logger.With(logger.String("component", "scheduler"))

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		deps:    deps,
		log:     log,
		specs:   map[string]string{},
		entries: map[string]cron.EntryID{},
		ctx:     context.Background(),
	}

	tasks := []struct {
		name    string
		spec    string
		enabled bool
		run     func(context.Context) error
	}{
		{EntryImportSweep, cfg.ImportSchedule, deps.Jobs != nil, s.ImportSweep},
		{EntryRORRefresh, cfg.RORRefreshSchedule, deps.ROR != nil, s.RefreshROR},
		{EntryRecover, cfg.RecoverSchedule, deps.Runner != nil, s.Recover},
	}
	for _, task := range tasks {
		if task.spec == "" || !task.enabled {
			continue
		}
		id, err := s.cron.AddFunc(task.spec, s.wrap(task.name, task.run))
		if err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", task.name, task.spec, err)
		}
		s.specs[task.name] = task.spec
		s.entries[task.name] = id
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		s.mu.Lock()
		parent := s.ctx
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(parent, s.deps.Timeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.log.Error("Scheduled task failed",
				logger.String("task", name),
				logger.Duration("duration", time.Since(start)),
				logger.Error(err),
			)
			return
		}
		s.log.Info("Scheduled task completed",
			logger.String("task", name),
			logger.Duration("duration", time.Since(start)),
		)
	}
}

// Start begins firing entries until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	for _, e := range s.Entries() {
		s.log.Info("Scheduled task registered",
			logger.String("task", e.Name),
			logger.String("schedule", e.Schedule),
			logger.String("next_run", e.Next.Format(time.RFC3339)),
		)
	}
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// Entries lists the registered tasks with their next run time.
func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, name := range []string{EntryImportSweep, EntryRORRefresh, EntryRecover} {
		id, ok := s.entries[name]
		if !ok {
			continue
		}
		out = append(out, Entry{Name: name, Schedule: s.specs[name], Next: s.cron.Entry(id).Next})
	}
	return out
}

// ImportSweep enqueues a full import_range for DOIs and events.
func (s *Scheduler) ImportSweep(ctx context.Context) error {
	for _, kind := range []string{worker.KindDOI, worker.KindEvent} {
		j, err := s.deps.Jobs.Enqueue(ctx, worker.QueueFor(worker.OpImportRange), worker.OpImportRange,
			job.Args{Options: map[string]any{"kind": kind}})
		if err != nil {
			return fmt.Errorf("enqueue %s import: %w", kind, err)
		}
		s.log.Info("Import sweep enqueued", logger.JobID(j.ID), logger.String("kind", kind))
	}
	return nil
}

// RefreshROR reloads the ROR reference mappings.
func (s *Scheduler) RefreshROR(ctx context.Context) error {
	return s.deps.ROR.RefreshAll(ctx)
}

// Recover re-queues stale running jobs.
func (s *Scheduler) Recover(ctx context.Context) error {
	n, err := s.deps.Runner.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("Stale jobs re-queued", logger.Int("count", n))
	}
	return nil
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct{ log logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
