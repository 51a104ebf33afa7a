package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPlayCommand records one play per item argument
func NewPlayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play <item-id>...",
		Short: "Record that playback of one or more items started",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			for _, itemID := range args {
				count, err := rt.app.Playback.Play(cmd.Context(), itemID)
				if err != nil {
					return fmt.Errorf("%s: %w", itemID, err)
				}
				fmt.Fprintf(out, "%s\t%d\n", itemID, count)
			}

			// let a flush-on-play pass finish before the store closes
			rt.app.Playback.Wait()
			return nil
		},
	}
}
