package main

import (
	"github.com/spf13/cobra"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/bootstrap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API",
		Long: `Serve the connection, work, relation and job endpoints over HTTP until
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), bootstrap.BackendAll, func(app *bootstrap.App) error {
				app.Logger.Info("Starting registry API",
					logger.String("version", app.Config.Service.Version),
					logger.Int("port", app.Config.Server.Port),
				)
				return bootstrap.Serve(cmd.Context(), app)
			})
		},
	}
}

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	var noSchedule bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs",
		Long: `Consume the job queues and run the scheduler: the nightly import sweep,
the monthly ROR reference refresh and stale job recovery.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), bootstrap.BackendAll, func(app *bootstrap.App) error {
				app.Logger.Info("Starting registry worker",
					logger.Strings("queues", app.Config.Jobs.Queues),
					logger.Bool("schedule", !noSchedule),
				)
				return bootstrap.Work(cmd.Context(), app, !noSchedule)
			})
		},
	}
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false,
		"only consume jobs; skip the import sweep and ROR refresh schedule")
	return cmd
}
