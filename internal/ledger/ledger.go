package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/metrics"
)

var (
	// ErrNotInitialized is returned when a play is recorded before Initialize completed
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrLedgerClosed is returned when the ledger is used after Close
	ErrLedgerClosed = errors.New("ledger closed")

	// ErrEmptyItemID is returned for plays without an item ID
	ErrEmptyItemID = errors.New("item ID is required")
)

// Ledger holds the authoritative in-session play counts and their sync state.
// The entry map is only mutated through RecordPlay (increment path) and
// MarkSynced (sync path). Every mutation is followed by a persist of the whole map.
type Ledger struct {
	store  domain.KeyValueStore
	key    string
	window time.Duration
	logger *slog.Logger

	mu          sync.RWMutex
	entries     map[string]domain.PlaybackEntry
	initialized bool
	closed      bool

	// persistMu orders snapshot+save pairs so the store never goes backwards
	persistMu sync.Mutex
}

// Option configures a Ledger
type Option func(*Ledger)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithKey overrides the durable store key (SnapshotKey by default)
func WithKey(key string) Option {
	return func(l *Ledger) {
		if key != "" {
			l.key = key
		}
	}
}

// New creates an empty ledger backed by store. Call Initialize before recording plays.
func New(store domain.KeyValueStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		key:     SnapshotKey,
		window:  CooldownWindow,
		logger:  slog.Default(),
		entries: make(map[string]domain.PlaybackEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize rehydrates the ledger from the durable store.
// A missing, unreadable or corrupt snapshot leaves the ledger empty; none of
// these are returned as errors.
func (l *Ledger) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLedgerClosed
	}

	entries := make(map[string]domain.PlaybackEntry)

	raw, found, err := l.store.Load(ctx, l.key)
	switch {
	case err != nil:
		l.logger.Warn("ledger snapshot unavailable, starting empty", "error", err, "key", l.key)
	case !found:
		l.logger.Debug("no ledger snapshot, starting empty", "key", l.key)
	default:
		decoded, err := decodeSnapshot([]byte(raw))
		if err != nil {
			l.logger.Warn("discarding malformed ledger snapshot", "error", err, "key", l.key, "bytes", len(raw))
		} else {
			entries = decoded
		}
	}

	l.entries = entries
	l.initialized = true
	metrics.DirtyEntries.Set(float64(l.dirtyCountLocked()))

	l.logger.Info("ledger initialized", "entries", len(entries))
	return nil
}

// RecordPlay registers a play of itemID at now and returns the item's count.
// Plays inside the cooldown window return the current count without any mutation.
// Persistence failures are logged, never returned.
func (l *Ledger) RecordPlay(ctx context.Context, itemID string, now time.Time) (int, error) {
	if itemID == "" {
		return 0, ErrEmptyItemID
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrLedgerClosed
	}
	if !l.initialized {
		l.mu.Unlock()
		return 0, ErrNotInitialized
	}

	entry, ok := l.entries[itemID]
	if !ok {
		entry = domain.PlaybackEntry{ItemID: itemID, Synced: true}
	}

	nowMs := now.UnixMilli()
	if !ShouldCount(nowMs, entry.LastEventTime, l.window) {
		l.mu.Unlock()
		metrics.PlaysRecorded.WithLabelValues("skipped").Inc()
		l.logger.Debug("play inside cooldown", "itemID", itemID, "count", entry.Count)
		return entry.Count, nil
	}

	entry.Count++
	entry.LastEventTime = nowMs
	entry.Synced = false
	l.entries[itemID] = entry
	metrics.DirtyEntries.Set(float64(l.dirtyCountLocked()))
	l.mu.Unlock()

	metrics.PlaysRecorded.WithLabelValues("counted").Inc()
	l.logger.Debug("play counted", "itemID", itemID, "count", entry.Count)

	l.persist(ctx)
	return entry.Count, nil
}

// MarkSynced records that count was written remotely for itemID.
// The entry only becomes clean if its count has not moved since; a play counted
// while the write was in flight keeps it dirty for the next flush.
func (l *Ledger) MarkSynced(ctx context.Context, itemID string, count int) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	entry, ok := l.entries[itemID]
	if !ok || entry.Synced || entry.Count != count {
		l.mu.Unlock()
		return false
	}
	entry.Synced = true
	l.entries[itemID] = entry
	metrics.DirtyEntries.Set(float64(l.dirtyCountLocked()))
	l.mu.Unlock()

	l.persist(ctx)
	return true
}

// Entry returns a copy of the entry for itemID
func (l *Ledger) Entry(itemID string) (domain.PlaybackEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[itemID]
	return e, ok
}

// Entries returns copies of all entries sorted by item ID
func (l *Ledger) Entries() []domain.PlaybackEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collectLocked(func(domain.PlaybackEntry) bool { return true })
}

// Dirty returns copies of the entries whose count has not been written remotely
func (l *Ledger) Dirty() []domain.PlaybackEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collectLocked(domain.PlaybackEntry.IsDirty)
}

// Len returns the number of tracked items
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns the serialized entry map as it would be persisted
func (l *Ledger) Snapshot() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return encodeSnapshot(l.entries)
}

// Close disposes the ledger. The last persisted snapshot stays in the store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// persist writes the full entry map to the durable store
func (l *Ledger) persist(ctx context.Context) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	data, err := l.Snapshot()
	if err != nil {
		metrics.PersistFailures.Inc()
		l.logger.Error("failed to encode ledger", "error", err)
		return
	}

	// a counted play must reach disk even if the caller has gone away
	if err := l.store.Save(context.WithoutCancel(ctx), l.key, string(data)); err != nil {
		metrics.PersistFailures.Inc()
		l.logger.Warn("failed to persist ledger", "error", err, "key", l.key)
	}
}

func (l *Ledger) collectLocked(keep func(domain.PlaybackEntry) bool) []domain.PlaybackEntry {
	out := make([]domain.PlaybackEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func (l *Ledger) dirtyCountLocked() int {
	n := 0
	for _, e := range l.entries {
		if !e.Synced {
			n++
		}
	}
	return n
}
