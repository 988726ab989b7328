package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acme/scatter-gather/internal/app"
	"github.com/acme/scatter-gather/internal/config"
	"github.com/acme/scatter-gather/pkg/logger"
)

// Version is overridden at build time.
var Version = "dev"

type options struct {
	configPath string
	verbose    bool
	container  *app.Container
}

// Execute runs the scatter command line.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "scatter",
		Short:         "Fan a request out to many backends and gather the results",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.build(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.container == nil {
				return nil
			}
			return opts.container.Close(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log per-call failures to stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newBackendsCmd(opts),
		newRunCmd(opts),
		newDemoCmd(opts),
	)

	return rootCmd
}

func (o *options) build(ctx context.Context) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	lg := logger.Nop()
	if o.verbose {
		if lg, err = logger.New(cfg.App.Env); err != nil {
			return err
		}
	}

	container, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	o.container = container
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func newBackendsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the configured backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, id := range opts.container.Registry().IDs() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
