// Package metrics exposes in-process Prometheus collectors for the omg
// pipelines and mirrors every recorded observation to a JSONL sink under
// the workspace directory, so a run's counters survive without a scrape
// target attached.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector registered by this package.
var Registry = prometheus.NewRegistry()

var (
	nodesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omg",
			Subsystem: "graph",
			Name:      "nodes_written_total",
			Help:      "Total nodes written to the graph store, by pipeline and operation.",
		},
		[]string{"pipeline", "operation"},
	)

	batchesRetried = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omg",
			Subsystem: "bootstrap",
			Name:      "batches_retried_total",
			Help:      "Total bootstrap batch retry attempts, by reason.",
		},
		[]string{"reason"},
	)

	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "omg",
			Subsystem: "bootstrap",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one bootstrap batch's oracle round trip.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"outcome"},
	)

	mergesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omg",
			Subsystem: "dedup",
			Name:      "merges_executed_total",
			Help:      "Total merge plans executed, by engine (literal|semantic).",
		},
		[]string{"engine"},
	)

	reflectionClusters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omg",
			Subsystem: "reflection",
			Name:      "clusters_processed_total",
			Help:      "Total reflection clusters processed, by outcome (applied|skipped).",
		},
		[]string{"outcome"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "omg",
			Subsystem: "oracle",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"pipeline"},
	)
)

func init() {
	Registry.MustRegister(
		nodesWritten,
		batchesRetried,
		batchDuration,
		mergesExecuted,
		reflectionClusters,
		circuitState,
	)
}

// RecordNodesWritten increments the nodes-written counter for a pipeline
// and operation (e.g. "upsert", "patch", "archive").
func RecordNodesWritten(pipeline, operation string, n int) {
	if n <= 0 {
		return
	}
	nodesWritten.WithLabelValues(pipeline, operation).Add(float64(n))
	sink.record(event{Kind: "nodes_written", Pipeline: pipeline, Label: operation, Value: float64(n)})
}

// RecordBatchRetry increments the retried-batches counter for a reason
// ("rate-limit", "unreachable", "circuit-open").
func RecordBatchRetry(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	batchesRetried.WithLabelValues(reason).Inc()
	sink.record(event{Kind: "batch_retried", Label: reason, Value: 1})
}

// RecordBatchDuration observes the duration of one batch's oracle round
// trip, labeled by outcome ("success", "failure").
func RecordBatchDuration(outcome string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	batchDuration.WithLabelValues(outcome).Observe(d.Seconds())
	sink.record(event{Kind: "batch_duration_seconds", Label: outcome, Value: d.Seconds()})
}

// RecordMerge increments the merges-executed counter for an engine
// ("literal", "semantic").
func RecordMerge(engine string) {
	mergesExecuted.WithLabelValues(engine).Inc()
	sink.record(event{Kind: "merge_executed", Label: engine, Value: 1})
}

// RecordReflectionCluster increments the reflection-clusters counter for
// an outcome ("applied", "skipped").
func RecordReflectionCluster(outcome string) {
	reflectionClusters.WithLabelValues(outcome).Inc()
	sink.record(event{Kind: "reflection_cluster", Label: outcome, Value: 1})
}

// RecordCircuitState publishes the current circuit breaker state for a
// pipeline: 0 closed, 1 half-open, 2 open.
func RecordCircuitState(pipeline string, state int) {
	circuitState.WithLabelValues(pipeline).Set(float64(state))
	sink.record(event{Kind: "circuit_state", Pipeline: pipeline, Value: float64(state)})
}
