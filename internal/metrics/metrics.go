// Package metrics exposes Prometheus counters for pipeline and reputation
// activity. Registration is best-effort so tests importing multiple
// packages never panic on duplicate collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BatchesProcessed counts pipeline runs by outcome.
	BatchesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "pipeline", Name: "batches_total", Help: "Telemetry batches processed, by outcome."},
		[]string{"outcome"},
	)

	// IncidentsScored counts incidents that went through the scoring engine.
	IncidentsScored = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "pipeline", Name: "incidents_scored_total", Help: "Incident rows scored."},
	)

	// ReputationLookups counts oracle lookups by result.
	ReputationLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "reputation", Name: "lookups_total", Help: "IP reputation lookups, by result."},
		[]string{"result"},
	)

	// ReputationCacheHits counts lookups served from cache.
	ReputationCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "triage", Subsystem: "reputation", Name: "cache_hits_total", Help: "IP reputation lookups served from cache."},
	)
)

func init() {
	_ = prometheus.Register(BatchesProcessed)
	_ = prometheus.Register(IncidentsScored)
	_ = prometheus.Register(ReputationLookups)
	_ = prometheus.Register(ReputationCacheHits)
}
