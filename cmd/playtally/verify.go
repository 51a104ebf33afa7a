package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mmcdole/playtally/internal/app"
	"github.com/mmcdole/playtally/internal/domain"
)

// NewVerifyCommand compares local counts with what the remote store holds
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare local play counts with the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			describeSetup(out, rt.app)

			failed := 0
			for _, e := range rt.app.Ledger.Search(filter) {
				remote, state := "-", ""
				count, err := rt.app.Remote.GetPlayCount(cmd.Context(), e.ItemID)
				switch {
				case errors.Is(err, domain.ErrDocumentNotFound):
					state = "missing"
				case err != nil:
					state = "error: " + err.Error()
					failed++
				case count == e.Count:
					remote, state = strconv.Itoa(count), "match"
				default:
					remote, state = strconv.Itoa(count), "differs"
				}
				fmt.Fprintf(out, "%s\t%d\t%s\t%s\n", e.ItemID, e.Count, remote, state)
			}

			if failed > 0 {
				return fmt.Errorf("%d items could not be read from the remote store", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "fuzzy filter on item ID")
	return cmd
}

// describeSetup prints where counts are kept and where they are sent
func describeSetup(w io.Writer, a *app.App) {
	fmt.Fprintf(w, "store: %s\n", a.StoreName())

	remote := a.Config.Remote.Driver
	if a.Config.IsRemoteConfigured() {
		remote += " " + a.Config.Remote.Endpoint
	} else {
		remote += " (local only)"
	}
	if b, ok := a.Remote.(interface{ State() string }); ok {
		remote += ", breaker " + b.State()
	}
	fmt.Fprintf(w, "remote: %s\n", remote)
}
