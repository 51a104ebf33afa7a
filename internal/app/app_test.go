package app

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/playtally/internal/config"
	"github.com/mmcdole/playtally/internal/dispatch"
	"github.com/mmcdole/playtally/internal/logging"
	"github.com/mmcdole/playtally/internal/remote"
	"github.com/mmcdole/playtally/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Logging.File = ""
	cfg.Sync.FlushOnPlay = false
	return cfg
}

func TestNew_FromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, logging.NullLogger())
	require.NoError(t, err)

	_, err = a.Playback.Play(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// the ledger is rehydrated from the same directory
	a, err = New(ctx, cfg, logging.NullLogger())
	require.NoError(t, err)
	defer a.Close()
	e, ok := a.Ledger.Entry("A")
	require.True(t, ok)
	assert.Equal(t, 1, e.Count)
	assert.True(t, e.IsDirty())
}

func TestNew_WithOverrides(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewBoltStore("", "")
	require.NoError(t, err)
	mem := remote.NewMemory()

	a, err := New(ctx, testConfig(t), nil, WithStore(s), WithRemote(mem))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "memory", a.StoreName())

	_, err = a.Playback.Play(ctx, "A")
	require.NoError(t, err)
	report := a.Playback.Flush(ctx)
	require.True(t, report.OK())

	got, err := mem.GetPlayCount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Storage.Driver = "etcd"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestFlushLoop(t *testing.T) {
	var calls atomic.Int32
	flush := func(context.Context) dispatch.Report {
		calls.Add(1)
		return dispatch.Report{}
	}

	loop := NewFlushLoop(flush, 10*time.Millisecond, nil)
	assert.Equal(t, "flush-loop", loop.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Serve(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	before := calls.Load()
	assert.GreaterOrEqual(t, before, int32(4), "shutdown runs a final flush")
}

func TestFlushLoop_FinalFlushUsesFreshContext(t *testing.T) {
	var finalErr error
	flush := func(ctx context.Context) dispatch.Report {
		finalErr = ctx.Err()
		return dispatch.Report{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = NewFlushLoop(flush, time.Hour, nil).Serve(ctx)
	assert.NoError(t, finalErr)
}

// fakeServer records the HTTPServer lifecycle
type fakeServer struct {
	stop      chan struct{}
	listenErr error
	shutdowns atomic.Int32
}

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.shutdowns.Add(1)
	close(s.stop)
	return nil
}

func TestHTTPService_Shutdown(t *testing.T) {
	srv := &fakeServer{stop: make(chan struct{})}
	svc := NewHTTPService(srv, 0)
	assert.Equal(t, "http-server", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(1), srv.shutdowns.Load())
}

func TestHTTPService_ListenError(t *testing.T) {
	srv := &fakeServer{stop: make(chan struct{}), listenErr: errors.New("address in use")}
	err := NewHTTPService(srv, time.Second).Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.Interval = 10 * time.Millisecond
	cfg.Server.Listen = "127.0.0.1:0"

	a, err := New(context.Background(), cfg, logging.NullLogger(), WithRemote(remote.NewMemory()))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Playback.Play(context.Background(), "A")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, http.NotFoundHandler()) }()

	require.Eventually(t, func() bool { return len(a.Ledger.Dirty()) == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
