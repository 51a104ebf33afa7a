package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmcdole/playtally/internal/domain"
	"github.com/mmcdole/playtally/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // probes allowed in half-open state
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open -> half-open delay
	MinRequests  uint32        // requests before the failure ratio is considered
	FailureRatio float64
}

// DefaultBreakerSettings opens after 60% failures over at least 10 requests
// and probes again after one minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "document-store",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker wraps a DocumentStore with a circuit breaker so a failing backend is
// not hammered by every flush. Rejected calls fail fast; entries stay dirty.
type Breaker struct {
	next   domain.DocumentStore
	cb     *gobreaker.CircuitBreaker[int]
	name   string
	logger *slog.Logger
}

// NewBreaker wraps next
func NewBreaker(next domain.DocumentStore, settings BreakerSettings, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{next: next, name: settings.Name, logger: logger}

	metrics.CircuitBreakerState.WithLabelValues(settings.Name).Set(0)

	b.cb = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		// A missing document says nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrDocumentNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return b
}

func (b *Breaker) SetPlayCount(ctx context.Context, itemID string, count int) error {
	_, err := b.cb.Execute(func() (int, error) {
		return 0, b.next.SetPlayCount(ctx, itemID, count)
	})
	b.observe(err)
	return err
}

func (b *Breaker) GetPlayCount(ctx context.Context, itemID string) (int, error) {
	count, err := b.cb.Execute(func() (int, error) {
		return b.next.GetPlayCount(ctx, itemID)
	})
	b.observe(err)
	return count, err
}

// State returns the current breaker state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) observe(err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RemoteWrites.WithLabelValues("rejected").Inc()
		b.logger.Debug("circuit breaker rejected request", "name", b.name, "error", err)
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
