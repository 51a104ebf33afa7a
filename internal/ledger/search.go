package ledger

import (
	"strings"

	"github.com/mmcdole/playtally/internal/domain"
	"github.com/sahilm/fuzzy"
)

// entryIndex implements sahilm/fuzzy.Source over lowercased item IDs
type entryIndex struct {
	entries []domain.PlaybackEntry
	lower   []string
}

func (idx *entryIndex) String(i int) string { return idx.lower[i] }

func (idx *entryIndex) Len() int { return len(idx.entries) }

// Search returns entries whose item ID fuzzy-matches pattern, best match first.
// An empty pattern returns all entries.
func (l *Ledger) Search(pattern string) []domain.PlaybackEntry {
	entries := l.Entries()

	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return entries
	}

	idx := &entryIndex{entries: entries, lower: make([]string, len(entries))}
	for i, e := range entries {
		idx.lower[i] = strings.ToLower(e.ItemID)
	}

	matches := fuzzy.FindFrom(pattern, idx)
	out := make([]domain.PlaybackEntry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}
