package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmcdole/playtally/internal/api"
)

// NewServeCommand runs the flush loop and the HTTP API until interrupted
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var noAPI bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic flush loop and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			var handler = api.NewHandler(rt.app.Playback, rt.app.Ledger, rt.logger.With("component", "api"))
			if noAPI {
				handler = nil
			}
			return rt.app.Serve(ctx, handler)
		},
	}

	cmd.Flags().BoolVar(&noAPI, "no-api", false, "only run the flush loop")
	return cmd
}
