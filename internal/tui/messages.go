package tui

import (
	"github.com/mmcdole/playtally/internal/dispatch"
	"github.com/mmcdole/playtally/internal/domain"
)

// EntriesLoadedMsg is sent when the ledger has been read
type EntriesLoadedMsg struct {
	Entries []domain.PlaybackEntry
}

// FlushDoneMsg is sent when a flush pass completes
type FlushDoneMsg struct {
	Report dispatch.Report
}

// RefreshTickMsg triggers a periodic re-read of the ledger
type RefreshTickMsg struct{}

// ErrMsg wraps an error with context
type ErrMsg struct {
	Err     error
	Context string
}

func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}
