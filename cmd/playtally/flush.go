package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewFlushCommand pushes every dirty entry to the remote store once
func NewFlushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Push unsynced play counts to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			report := rt.app.Playback.Flush(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "synced %d of %d in %s\n", len(report.Synced), report.Attempted, report.Duration)
			if n := len(report.Superseded); n > 0 {
				fmt.Fprintf(out, "%d played again during the write, still pending: %s\n", n, strings.Join(report.Superseded, ", "))
			}
			if report.OK() {
				return nil
			}

			failed := make([]string, 0, len(report.Failed))
			for id := range report.Failed {
				failed = append(failed, id)
			}
			sort.Strings(failed)
			for _, id := range failed {
				fmt.Fprintf(out, "  %s: %v\n", id, report.Failed[id])
			}
			return fmt.Errorf("%d items failed to sync", len(failed))
		},
	}
}
