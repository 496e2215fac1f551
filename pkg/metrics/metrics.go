package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Block execution metrics
	BlockExecuteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txscheduler_block_execute_duration_seconds",
			Help:    "Time taken to execute every transaction in a block",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransactionsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscheduler_transactions_executed_total",
			Help: "Total number of transactions executed by outcome",
		},
		[]string{"status"},
	)

	TransactionExecuteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txscheduler_transaction_execute_duration_seconds",
			Help:    "Time taken to execute a single transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Chunked pipeline scheduler metrics
	ChunkExecuteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txscheduler_chunk_execute_duration_seconds",
			Help:    "Time taken to speculatively execute one chunk",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChunkMergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txscheduler_chunk_merge_duration_seconds",
			Help:    "Time taken to merge one chunk's writes into the global layer",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChunksReplayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txscheduler_chunks_replayed_total",
			Help: "Total number of chunks discarded and re-executed after a read-after-write conflict",
		},
	)

	ChunksMergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txscheduler_chunks_merged_total",
			Help: "Total number of chunks merged into the global mutable layer",
		},
	)

	// Rollback metrics
	RollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txscheduler_rollbacks_total",
			Help: "Total number of transaction-level rollbacks performed",
		},
	)

	// Storage/backend metrics
	StateLayerMergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txscheduler_state_layer_merge_duration_seconds",
			Help:    "Time taken to fold the oldest immutable layer into the durable backend",
			Buckets: prometheus.DefBuckets,
		},
	)

	ImmutableLayersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txscheduler_immutable_layers_total",
			Help: "Number of immutable layers currently stacked above the durable backend",
		},
	)

	// Precompiled call metrics
	PrecompiledCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscheduler_precompiled_calls_total",
			Help: "Total number of precompiled contract calls by contract name and outcome",
		},
		[]string{"contract", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(BlockExecuteDuration)
	prometheus.MustRegister(TransactionsExecutedTotal)
	prometheus.MustRegister(TransactionExecuteDuration)
	prometheus.MustRegister(ChunkExecuteDuration)
	prometheus.MustRegister(ChunkMergeDuration)
	prometheus.MustRegister(ChunksReplayedTotal)
	prometheus.MustRegister(ChunksMergedTotal)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(StateLayerMergeDuration)
	prometheus.MustRegister(ImmutableLayersTotal)
	prometheus.MustRegister(PrecompiledCallsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
