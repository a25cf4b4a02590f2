package main

import (
	"github.com/spf13/cobra"

	"github.com/datacite/lupo-sub003/internal/bootstrap"
	"github.com/datacite/lupo-sub003/internal/database"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), bootstrap.BackendDatabase, func(app *bootstrap.App) error {
				return database.RunMigrations(app.DB.DB, app.Logger)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), bootstrap.BackendDatabase, func(app *bootstrap.App) error {
				return database.MigrateDown(app.DB.DB, steps, app.Logger)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
