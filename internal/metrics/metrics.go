// Package metrics holds the Prometheus collectors shared by the ledger,
// the sync dispatcher and the remote client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaysRecorded counts play events by outcome: counted or skipped (cooldown).
	PlaysRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playtally_plays_total",
		Help: "Play events seen by the ledger, by outcome",
	}, []string{"result"})

	// DirtyEntries is the number of ledger entries awaiting a remote write.
	DirtyEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playtally_dirty_entries",
		Help: "Ledger entries whose count has not been written remotely",
	})

	// PersistFailures counts failed snapshot writes to the durable store.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playtally_persist_failures_total",
		Help: "Failed ledger snapshot writes to the durable store",
	})

	// FlushPasses counts completed flush passes.
	FlushPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playtally_flush_passes_total",
		Help: "Completed flush passes",
	})

	// FlushDuration measures flush pass latency.
	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playtally_flush_duration_seconds",
		Help:    "Flush pass duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RemoteWrites counts remote play count writes by result: success, failure, rejected.
	RemoteWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playtally_remote_writes_total",
		Help: "Remote play count writes, by result",
	}, []string{"result"})

	// CircuitBreakerState is the breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playtally_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playtally_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})
)
