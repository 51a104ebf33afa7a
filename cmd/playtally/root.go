package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmcdole/playtally/internal/app"
	"github.com/mmcdole/playtally/internal/config"
	"github.com/mmcdole/playtally/internal/logging"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand creates the playtally command tree
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "playtally",
		Short:         "Count local plays and sync them to a remote document store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default "+config.DefaultConfigDir()+"/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// runtime bundles what every command needs to talk to the ledger
type runtime struct {
	app       *app.App
	logger    *slog.Logger
	logCloser io.Closer
}

func (r *runtime) Close() error {
	err := r.app.Close()
	if r.logCloser != nil {
		r.logCloser.Close()
	}
	return err
}

// openRuntime loads config, sets up logging and builds the app
func openRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, closer, err := logging.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, closer = logging.NullLogger(), nil
	}
	slog.SetDefault(logger)
	logger.Info("starting playtally", "version", Version)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	return &runtime{app: a, logger: logger, logCloser: closer}, nil
}
