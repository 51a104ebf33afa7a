package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/tui"
	"github.com/mmcdole/playtally/internal/tui/styles"
)

type statusOptions struct {
	filter string
	json   bool
	tui    bool
}

// NewStatusCommand prints the ledger, or opens the interactive view with --tui
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	so := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked items and their sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			interactive := term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
			if so.tui {
				if !interactive {
					return fmt.Errorf("--tui needs a terminal")
				}
				p := tea.NewProgram(tui.NewModel(rt.app.Ledger, rt.app.Playback), tea.WithAltScreen())
				_, err := p.Run()
				return err
			}

			entries := rt.app.Ledger.Search(so.filter)
			if so.json {
				byID := make(map[string]domain.PlaybackEntry, len(entries))
				for _, e := range entries {
					byID[e.ItemID] = e
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(byID)
			}
			renderStatus(cmd.OutOrStdout(), entries, interactive)
			return nil
		},
	}

	cmd.Flags().StringVarP(&so.filter, "filter", "f", "", "fuzzy filter on item ID")
	cmd.Flags().BoolVar(&so.json, "json", false, "print entries as JSON")
	cmd.Flags().BoolVar(&so.tui, "tui", false, "open the interactive view")
	return cmd
}

func renderStatus(w io.Writer, entries []domain.PlaybackEntry, styled bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no plays recorded")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		played := "never"
		if e.LastEventTime > 0 {
			played = e.LastPlayed().Local().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{e.ItemID, strconv.Itoa(e.Count), played, e.SyncState()})
	}

	if !styled {
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r[0], r[1], r[2], r[3])
		}
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.DimGray)).
		Headers("ITEM", "PLAYS", "LAST PLAYED", "STATE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(styles.Accent)
			}
			if col == 3 && row >= 0 && row < len(rows) && rows[row][3] == "dirty" {
				return s.Foreground(styles.Accent)
			}
			return s
		})
	fmt.Fprintln(w, t)
}
