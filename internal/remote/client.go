// Package remote provides the document stores play counts are flushed to.
package remote

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/playtally/internal/config"
	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/remote/appwrite"
)

// NewClient creates the configured document store.
// Network-backed stores are wrapped in a circuit breaker.
func NewClient(cfg config.RemoteConfig, logger *slog.Logger) (domain.DocumentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case config.RemoteAppwrite:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("remote endpoint is required")
		}
		if cfg.Project == "" {
			return nil, fmt.Errorf("remote project is required")
		}
		client := appwrite.NewClient(appwrite.Options{
			Endpoint:   cfg.Endpoint,
			Project:    cfg.Project,
			APIKey:     cfg.APIKey,
			Database:   cfg.Database,
			Collection: cfg.Collection,
			Field:      cfg.Field,
			Timeout:    cfg.Timeout,
		}, logger)
		return NewBreaker(client, DefaultBreakerSettings(), logger), nil

	case config.RemoteMemory, "":
		logger.Warn("using in-memory document store; play counts will not leave this process")
		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown remote driver: %s", cfg.Driver)
	}
}
