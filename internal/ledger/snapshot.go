package ledger

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mmcdole/playtally/internal/domain"
)

// SnapshotKey is the durable store key the ledger is persisted under
const SnapshotKey = "playbackData"

// encodeSnapshot serializes the entry map as {"itemID": {count, lastEventTime, synced}}
func encodeSnapshot(entries map[string]domain.PlaybackEntry) ([]byte, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger: %w", err)
	}
	return data, nil
}

// decodeSnapshot parses a persisted snapshot. Entries get their ItemID from the map key.
func decodeSnapshot(data []byte) (map[string]domain.PlaybackEntry, error) {
	var raw map[string]domain.PlaybackEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}

	entries := make(map[string]domain.PlaybackEntry, len(raw))
	for id, e := range raw {
		if id == "" || e.Count < 0 {
			return nil, fmt.Errorf("%w: invalid entry %q", domain.ErrMalformedSnapshot, id)
		}
		e.ItemID = id
		entries[id] = e
	}
	return entries, nil
}
