// Package dispatch pushes dirty ledger entries to the remote document store.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultConcurrency  = 4
	defaultWriteTimeout = time.Minute
)

// ledgerView is the slice of the playback ledger the dispatcher needs (consumer-defined interface)
type ledgerView interface {
	Dirty() []domain.PlaybackEntry
	Entry(itemID string) (domain.PlaybackEntry, bool)
	MarkSynced(ctx context.Context, itemID string, count int) bool
}

// Report is the outcome of one flush pass
type Report struct {
	PassID     string
	Attempted  int
	Synced     []string
	// Superseded items were written but gained a play meanwhile; they stay dirty
	Superseded []string
	Failed     map[string]error
	Duration   time.Duration
}

// OK returns true if every attempted entry was written
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Dispatcher reconciles dirty ledger entries with the remote store.
// It holds no timers; callers decide when to flush.
type Dispatcher struct {
	ledger      ledgerView
	remote      domain.DocumentStore
	limiter      *rate.Limiter
	concurrency  int
	writeTimeout time.Duration
	logger       *slog.Logger

	// inflight collapses overlapping writes of the same item and count
	inflight singleflight.Group
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithConcurrency bounds parallel remote writes within a pass
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithWriteTimeout bounds a single shared remote write
func WithWriteTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.writeTimeout = timeout
		}
	}
}

// WithRateLimit paces remote writes; perSecond <= 0 means unlimited
func WithRateLimit(perSecond float64) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a dispatcher for l writing to remote
func New(l ledgerView, remote domain.DocumentStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ledger:      l,
		remote:      remote,
		limiter:      rate.NewLimiter(rate.Inf, 0),
		concurrency:  defaultConcurrency,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Flush writes every dirty entry's count to the remote store. A failed entry
// stays dirty for the next pass and never stops the others.
func (d *Dispatcher) Flush(ctx context.Context) Report {
	start := time.Now()
	dirty := d.ledger.Dirty()

	report := Report{
		PassID:    uuid.NewString(),
		Attempted: len(dirty),
		Failed:    make(map[string]error),
	}
	logger := d.logger.With("pass", report.PassID)

	if len(dirty) == 0 {
		report.Duration = time.Since(start)
		return report
	}

	logger.Debug("flush started", "dirty", len(dirty))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.concurrency)

	for _, entry := range dirty {
		g.Go(func() error {
			clean, err := d.push(ctx, entry)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed[entry.ItemID] = err
				logger.Warn("remote sync failed", "itemID", entry.ItemID, "count", entry.Count, "error", err)
			case !clean:
				report.Superseded = append(report.Superseded, entry.ItemID)
				logger.Debug("entry changed during write", "itemID", entry.ItemID, "count", entry.Count)
			default:
				report.Synced = append(report.Synced, entry.ItemID)
			}
			// Failures are recorded in the report, never returned, so no entry aborts the pass
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Synced)
	sort.Strings(report.Superseded)
	report.Duration = time.Since(start)

	metrics.FlushPasses.Inc()
	metrics.FlushDuration.Observe(report.Duration.Seconds())

	logger.Info("flush finished",
		"attempted", report.Attempted,
		"synced", len(report.Synced),
		"superseded", len(report.Superseded),
		"failed", len(report.Failed),
		"duration", report.Duration,
	)
	return report
}

// push writes one entry and reports whether it became clean. A write still
// pending under another pass is shared; each caller stops waiting when its own
// ctx ends while the shared write runs to completion under writeTimeout.
func (d *Dispatcher) push(ctx context.Context, entry domain.PlaybackEntry) (bool, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: %s: %w", domain.ErrRemoteSync, entry.ItemID, err)
	}

	key := fmt.Sprintf("%s:%d", entry.ItemID, entry.Count)
	ch := d.inflight.DoChan(key, func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.writeTimeout)
		defer cancel()
		return nil, d.remote.SetPlayCount(wctx, entry.ItemID, entry.Count)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		metrics.RemoteWrites.WithLabelValues("failure").Inc()
		return false, fmt.Errorf("%w: %s: %w", domain.ErrRemoteSync, entry.ItemID, err)
	}

	metrics.RemoteWrites.WithLabelValues("success").Inc()
	if d.ledger.MarkSynced(ctx, entry.ItemID, entry.Count) {
		return true, nil
	}
	// an overlapping pass may have marked the same count already
	current, ok := d.ledger.Entry(entry.ItemID)
	return ok && current.Synced && current.Count == entry.Count, nil
}
