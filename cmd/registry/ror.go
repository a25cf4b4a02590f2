package main

import (
	"github.com/spf13/cobra"

	"github.com/datacite/lupo-sub003/internal/bootstrap"
)

func newRORCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ror",
		Short: "Manage ROR reference data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Reload funder, hierarchy and country mappings from object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), bootstrap.BackendRedis, func(app *bootstrap.App) error {
				return bootstrap.RefreshROR(cmd.Context(), app)
			})
		},
	})
	return cmd
}
