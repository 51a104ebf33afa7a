package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/playtally/internal/dispatch"
)

// recorder abstracts the playback ledger (consumer-defined interface)
type recorder interface {
	RecordPlay(ctx context.Context, itemID string, now time.Time) (int, error)
}

// flusher abstracts the sync dispatcher (consumer-defined interface)
type flusher interface {
	Flush(ctx context.Context) dispatch.Report
}

// PlaybackService turns play events from the host into ledger updates and
// opportunistic flushes.
type PlaybackService struct {
	ledger      recorder
	flusher     flusher
	clock       func() time.Time
	flushOnPlay bool
	logger      *slog.Logger

	// background flush state
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup
	flushing bool
	pending  bool
	closed   bool
}

// NewPlaybackService creates a new playback service
func NewPlaybackService(
	ledger recorder,
	flusher flusher,
	flushOnPlay bool,
	logger *slog.Logger,
) *PlaybackService {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackService{
		ledger:      ledger,
		flusher:     flusher,
		clock:       time.Now,
		flushOnPlay: flushOnPlay,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetClock replaces the wall clock (tests)
func (s *PlaybackService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Play records that playback of itemID started now and returns its count.
// With flush-on-play enabled a background flush follows.
func (s *PlaybackService) Play(ctx context.Context, itemID string) (int, error) {
	count, err := s.ledger.RecordPlay(ctx, itemID, s.clock())
	if err != nil {
		s.logger.Error("failed to record play", "error", err, "itemID", itemID)
		return 0, err
	}

	if s.flushOnPlay {
		s.FlushAsync()
	}
	return count, nil
}

// Flush runs a flush pass and waits for it
func (s *PlaybackService) Flush(ctx context.Context) dispatch.Report {
	return s.flusher.Flush(ctx)
}

// FlushAsync starts a background flush. Requests arriving while one runs are
// coalesced into a single follow-up pass.
func (s *PlaybackService) FlushAsync() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.flushing {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.flushLoop()
}

func (s *PlaybackService) flushLoop() {
	defer s.wg.Done()
	for {
		s.flusher.Flush(s.ctx)

		s.mu.Lock()
		if !s.pending || s.closed {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.mu.Unlock()
	}
}

// Wait blocks until background flushes have finished
func (s *PlaybackService) Wait() {
	s.wg.Wait()
}

// Close cancels background flushes and waits for them to return
func (s *PlaybackService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
