// Package app wires the ledger, its store, the remote document store and the
// dispatcher into one explicitly constructed and disposed instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmcdole/playtally/internal/config"
	"github.com/mmcdole/playtally/internal/dispatch"
	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/ledger"
	"github.com/mmcdole/playtally/internal/remote"
	"github.com/mmcdole/playtally/internal/service"
	"github.com/mmcdole/playtally/internal/store"
)

// App is the one shared instance per running process
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      domain.KeyValueStore
	Remote     domain.DocumentStore
	Ledger     *ledger.Ledger
	Dispatcher *dispatch.Dispatcher
	Playback   *service.PlaybackService
}

// Option overrides a collaborator built from config
type Option func(*App)

// WithStore uses s instead of opening storage from config
func WithStore(s domain.KeyValueStore) Option {
	return func(a *App) { a.Store = s }
}

// WithRemote uses r instead of building a client from config
func WithRemote(r domain.DocumentStore) Option {
	return func(a *App) { a.Remote = r }
}

// New builds the app and initializes the ledger. The ledger is fully loaded
// before New returns, so no play can clobber an unloaded snapshot.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.Store == nil {
		s, err := store.Open(cfg.Storage, cfg.Remote.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.Store = s
	}

	if a.Remote == nil {
		r, err := remote.NewClient(cfg.Remote, logger.With("component", "remote"))
		if err != nil {
			a.Store.Close()
			return nil, fmt.Errorf("failed to create remote client: %w", err)
		}
		a.Remote = r
	}

	a.Ledger = ledger.New(a.Store,
		ledger.WithKey(cfg.Storage.Key),
		ledger.WithLogger(logger.With("component", "ledger")),
	)
	if err := a.Ledger.Initialize(ctx); err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	logger.Debug("app ready", "store", a.StoreName(), "remote", cfg.Remote.Driver, "entries", len(a.Ledger.Entries()))

	a.Dispatcher = dispatch.New(a.Ledger, a.Remote,
		dispatch.WithConcurrency(cfg.Sync.Concurrency),
		dispatch.WithRateLimit(cfg.Sync.RatePerSecond),
		dispatch.WithWriteTimeout(cfg.Sync.WriteTimeout),
		dispatch.WithLogger(logger.With("component", "dispatch")),
	)

	a.Playback = service.NewPlaybackService(a.Ledger, a.Dispatcher, cfg.Sync.FlushOnPlay,
		logger.With("component", "playback"))

	return a, nil
}

// StoreName describes the durable store, e.g. "bolt(/path/playtally.db)"
func (a *App) StoreName() string {
	if s, ok := a.Store.(fmt.Stringer); ok {
		return s.String()
	}
	return a.Config.Storage.Driver
}

// Close stops background flushes, disposes the ledger and closes the store
func (a *App) Close() error {
	a.Playback.Close()
	return errors.Join(a.Ledger.Close(), a.Store.Close())
}
