package domain

import "time"

// PlaybackEntry is the locally known play count for one content item.
type PlaybackEntry struct {
	ItemID        string `json:"-"`
	Count         int    `json:"count"`
	LastEventTime int64  `json:"lastEventTime"` // unix milliseconds of the last counted play
	Synced        bool   `json:"synced"`
}

// IsDirty returns true if the remote store may be behind the local count
func (e PlaybackEntry) IsDirty() bool {
	return !e.Synced
}

// LastPlayed returns the last counted play as a time (zero if never played)
func (e PlaybackEntry) LastPlayed() time.Time {
	if e.LastEventTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.LastEventTime)
}

// SyncState returns a short label for display
func (e PlaybackEntry) SyncState() string {
	if e.Synced {
		return "clean"
	}
	return "dirty"
}
