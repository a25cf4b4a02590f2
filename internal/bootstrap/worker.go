package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/scheduler"
)

// SetupRunner builds a job runner with every operation registered.
func SetupRunner(app *App, c *Components) *job.Runner {
	cfg := app.Config.Jobs
	runnerCfg := job.DefaultRunnerConfig()
	runnerCfg.Queues = cfg.Queues
	runnerCfg.Concurrency = cfg.Concurrency
	runnerCfg.PollInterval = cfg.PollInterval
	runnerCfg.StaleAfter = cfg.StaleAfter

	runner := job.NewRunner(c.JobStore, c.Queue, runnerCfg, app.Metrics,
		app.Logger.With(logger.String("component", "runner")))
	c.Handlers.Register(runner)
	return runner
}

// SetupScheduler builds the cron scheduler. withSchedule=false yields a
// scheduler that only recovers stale jobs.
func SetupScheduler(app *App, c *Components, runner *job.Runner, withSchedule bool) (*scheduler.Scheduler, error) {
	cfg := app.Config.Jobs
	schedCfg := scheduler.Config{RecoverSchedule: cfg.RecoverSchedule}
	if withSchedule {
		schedCfg.ImportSchedule = cfg.ImportSchedule
		schedCfg.RORRefreshSchedule = cfg.RORRefreshSchedule
	}

	deps := scheduler.Deps{Jobs: c.Enqueuer, Runner: runner, Logger: app.Logger}
	if c.ROR != nil {
		deps.ROR = c.ROR
	}
	return scheduler.New(schedCfg, deps)
}

// Work runs the job runner and the scheduler until ctx is cancelled or a
// signal arrives, then waits for in-flight jobs.
func Work(ctx context.Context, app *App, withSchedule bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := NewComponents(ctx, app)
	runner := SetupRunner(app, c)
	sched, err := SetupScheduler(app, c, runner, withSchedule)
	if err != nil {
		return fmt.Errorf("setup scheduler: %w", err)
	}

	if n, recoverErr := runner.RecoverUnacked(ctx); recoverErr != nil {
		app.Logger.Warn("Unacknowledged job recovery failed", logger.Error(recoverErr))
	} else if n > 0 {
		app.Logger.Info("Re-queued unacknowledged jobs on startup", logger.Int("count", n))
	}
	if n, recoverErr := runner.RecoverStale(ctx); recoverErr != nil {
		app.Logger.Warn("Initial stale job recovery failed", logger.Error(recoverErr))
	} else if n > 0 {
		app.Logger.Info("Re-queued stale jobs on startup", logger.Int("count", n))
	}

	runner.Start(ctx)
	sched.Start(ctx)

	<-ctx.Done()
	app.Logger.Info("Shutting down worker")
	sched.Stop()
	runner.Stop()
	return nil
}
