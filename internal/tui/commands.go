package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	flushTimeout    = 2 * time.Minute
	refreshInterval = 2 * time.Second
)

// LoadEntriesCmd reads the current ledger entries
func LoadEntriesCmd(src EntrySource) tea.Cmd {
	return func() tea.Msg {
		return EntriesLoadedMsg{Entries: src.Entries()}
	}
}

// FlushCmd runs a single flush pass
func FlushCmd(f Flusher) tea.Cmd {
	return flushCmd(f, flushTimeout)
}

func flushCmd(f Flusher, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		report := f.Flush(ctx)
		if err := ctx.Err(); err != nil {
			return ErrMsg{Err: err, Context: "flush"}
		}
		return FlushDoneMsg{Report: report}
	}
}

// RefreshTickCmd schedules the next ledger refresh
func RefreshTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return RefreshTickMsg{}
	})
}
