// Command registry runs the DOI metadata registry: the read API, the job
// worker and the operator tasks.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/datacite/lupo-sub003/internal/bootstrap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "registry",
		Short:         "DOI metadata registry",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default is $CONFIG_PATH or ./"+bootstrap.DefaultConfigPath+")")

	cmd.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newEnqueueCommand(opts),
		newRORCommand(opts),
		newMigrateCommand(opts),
	)
	return cmd
}

// withApp opens the selected backends, runs fn and closes them again.
func (o *rootOptions) withApp(ctx context.Context, backends bootstrap.Backend, fn func(*bootstrap.App) error) error {
	app, err := bootstrap.Setup(ctx, o.configPath, backends)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
