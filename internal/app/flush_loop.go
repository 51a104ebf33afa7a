package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/playtally/internal/dispatch"
)

// finalFlushTimeout bounds the flush attempted on shutdown
const finalFlushTimeout = 5 * time.Second

type flushFunc func(ctx context.Context) dispatch.Report

// FlushLoop is a supervised service that flushes on a fixed interval and once
// more on shutdown. It is the app-level trigger; the dispatcher itself has no timers.
type FlushLoop struct {
	flush    flushFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewFlushLoop creates a periodic flush service
func NewFlushLoop(flush flushFunc, interval time.Duration, logger *slog.Logger) *FlushLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlushLoop{flush: flush, interval: interval, logger: logger}
}

// Serve implements suture.Service
func (f *FlushLoop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("flush loop started", "interval", f.interval)

	for {
		select {
		case <-ctx.Done():
			f.finalFlush()
			return ctx.Err()
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

func (f *FlushLoop) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()

	report := f.flush(ctx)
	if !report.OK() {
		f.logger.Warn("entries left dirty at shutdown", "failed", len(report.Failed))
	}
}

// String names the service in supervisor logs
func (f *FlushLoop) String() string {
	return "flush-loop"
}
