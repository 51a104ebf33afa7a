package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/playtally/internal/domain"
)

// memStore is an in-memory domain.KeyValueStore with failure injection
type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	saves   int
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return "", false, s.loadErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Save(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func ms(v int64) time.Time { return time.UnixMilli(v) }

func newLedger(t *testing.T, s domain.KeyValueStore) *Ledger {
	t.Helper()
	l := New(s)
	require.NoError(t, l.Initialize(context.Background()))
	return l
}

func TestRecordPlay_FirstPlay(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	l := newLedger(t, s)

	count, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	e, ok := l.Entry("A")
	require.True(t, ok)
	assert.Equal(t, domain.PlaybackEntry{ItemID: "A", Count: 1, LastEventTime: 100000, Synced: false}, e)
	assert.Equal(t, 1, s.saveCount())
}

func TestRecordPlay_CooldownIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	l := newLedger(t, s)

	_, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)

	count, err := l.RecordPlay(ctx, "A", ms(250000))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	e, _ := l.Entry("A")
	assert.Equal(t, int64(100000), e.LastEventTime, "skipped play must not move lastEventTime")
	assert.Equal(t, 1, s.saveCount(), "skipped play must not persist")
}

func TestRecordPlay_Additivity(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newMemStore())

	const n = 6
	step := CooldownWindow.Milliseconds() + 1
	for i := int64(1); i <= n; i++ {
		count, err := l.RecordPlay(ctx, "A", ms(i*step))
		require.NoError(t, err)
		assert.Equal(t, int(i), count)
	}
}

func TestRecordPlay_CooldownIsPerItem(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newMemStore())

	_, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)
	count, err := l.RecordPlay(ctx, "B", ms(100001))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, l.Len())
}

func TestRecordPlay_Errors(t *testing.T) {
	ctx := context.Background()

	l := New(newMemStore())
	_, err := l.RecordPlay(ctx, "A", ms(1))
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, l.Initialize(ctx))
	_, err = l.RecordPlay(ctx, "", ms(1))
	assert.ErrorIs(t, err, ErrEmptyItemID)

	require.NoError(t, l.Close())
	_, err = l.RecordPlay(ctx, "A", ms(1))
	assert.ErrorIs(t, err, ErrLedgerClosed)
	assert.ErrorIs(t, l.Initialize(ctx), ErrLedgerClosed)
}

func TestRecordPlay_SaveFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.saveErr = errors.New("disk full")
	l := newLedger(t, s)

	count, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	e, ok := l.Entry("A")
	require.True(t, ok)
	assert.True(t, e.IsDirty())
}

func TestRecordPlay_CanceledCallerStillPersists(t *testing.T) {
	s := newMemStore()
	l := newLedger(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	s.mu.Lock()
	raw, ok := s.data[SnapshotKey]
	s.mu.Unlock()
	require.True(t, ok)
	assert.Contains(t, raw, `"A"`)

	assert.True(t, l.MarkSynced(ctx, "A", 1))
	reloaded := newLedger(t, s)
	e, ok := reloaded.Entry("A")
	require.True(t, ok)
	assert.Equal(t, "clean", e.SyncState())
}

func TestMarkSynced(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newMemStore())

	_, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)
	require.Len(t, l.Dirty(), 1)

	assert.False(t, l.MarkSynced(ctx, "missing", 1))
	assert.False(t, l.MarkSynced(ctx, "A", 7), "stale count must not clear dirty flag")
	assert.True(t, l.MarkSynced(ctx, "A", 1))
	assert.False(t, l.MarkSynced(ctx, "A", 1), "already clean")

	assert.Empty(t, l.Dirty())
	e, _ := l.Entry("A")
	assert.Equal(t, "clean", e.SyncState())
}

func TestMarkSynced_PlayDuringWriteStaysDirty(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newMemStore())
	step := CooldownWindow.Milliseconds() + 1

	_, err := l.RecordPlay(ctx, "A", ms(step))
	require.NoError(t, err)
	flushed := l.Dirty()[0].Count

	// a second play lands while the remote write of count 1 is in flight
	_, err = l.RecordPlay(ctx, "A", ms(2*step))
	require.NoError(t, err)

	assert.False(t, l.MarkSynced(ctx, "A", flushed))
	dirty := l.Dirty()
	require.Len(t, dirty, 1)
	assert.Equal(t, 2, dirty[0].Count)
}

func TestInitialize_Rehydrates(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	step := CooldownWindow.Milliseconds() + 1

	first := newLedger(t, s)
	_, _ = first.RecordPlay(ctx, "A", ms(step))
	_, _ = first.RecordPlay(ctx, "A", ms(2*step))
	_, _ = first.RecordPlay(ctx, "B", ms(step))
	require.True(t, first.MarkSynced(ctx, "B", 1))
	want := first.Entries()
	require.NoError(t, first.Close())

	second := newLedger(t, s)
	if diff := cmp.Diff(want, second.Entries()); diff != "" {
		t.Errorf("rehydrated entries mismatch (-want +got):\n%s", diff)
	}

	// cooldown state survives the restart
	count, err := second.RecordPlay(ctx, "A", ms(2*step+1000))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInitialize_SnapshotFormat(t *testing.T) {
	s := newMemStore()
	s.data[SnapshotKey] = `{"movie-1":{"count":3,"lastEventTime":1700000000000,"synced":false},"show-2":{"count":1,"lastEventTime":5,"synced":true}}`

	l := newLedger(t, s)
	got := l.Entries()
	want := []domain.PlaybackEntry{
		{ItemID: "movie-1", Count: 3, LastEventTime: 1700000000000},
		{ItemID: "show-2", Count: 1, LastEventTime: 5, Synced: true},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, l.Dirty(), 1)
}

func TestInitialize_StartsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *memStore)
	}{
		{"missing snapshot", func(*memStore) {}},
		{"corrupt snapshot", func(s *memStore) { s.data[SnapshotKey] = "{not json" }},
		{"negative count", func(s *memStore) { s.data[SnapshotKey] = `{"A":{"count":-1}}` }},
		{"wrong shape", func(s *memStore) { s.data[SnapshotKey] = `[1,2,3]` }},
		{"load failure", func(s *memStore) { s.loadErr = domain.ErrStorageUnavailable }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			tt.setup(s)

			l := New(s)
			require.NoError(t, l.Initialize(context.Background()))
			assert.Zero(t, l.Len())

			count, err := l.RecordPlay(context.Background(), "A", ms(100000))
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	l := New(s, WithKey("custom"))
	require.NoError(t, l.Initialize(ctx))

	_, err := l.RecordPlay(ctx, "A", ms(100000))
	require.NoError(t, err)

	_, ok := s.data["custom"]
	assert.True(t, ok)
	_, ok = s.data[SnapshotKey]
	assert.False(t, ok)
}

func TestRecordPlay_ConcurrentCallsCountOnce(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newMemStore())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.RecordPlay(ctx, "A", ms(100000))
		}()
	}
	wg.Wait()

	e, _ := l.Entry("A")
	assert.Equal(t, 1, e.Count)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newMemStore())
	for _, id := range []string{"Episode-1", "movie-42", "episode-10"} {
		_, err := l.RecordPlay(ctx, id, ms(100000))
		require.NoError(t, err)
	}

	assert.Len(t, l.Search(""), 3)

	ids := func(entries []domain.PlaybackEntry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.ItemID)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"Episode-1", "episode-10"}, ids(l.Search("EPI")))
	assert.Equal(t, []string{"movie-42"}, ids(l.Search("mv42")))
	assert.Empty(t, l.Search("zzz"))
}
