package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poller, decode, and reconciler counters. Single chain, so most series
// carry no labels.

var (
	// Poller
	BatchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "poller",
		Name:      "batches_processed_total",
		Help:      "Total sub-batches fully processed",
	})

	BatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "poller",
		Name:      "batch_errors_total",
		Help:      "Total poll cycles that ended in an error",
	})

	CursorBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultscope",
		Subsystem: "poller",
		Name:      "cursor_block",
		Help:      "Last fully indexed block height",
	})

	BlockLag = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultscope",
		Subsystem: "poller",
		Name:      "block_lag",
		Help:      "Blocks between chain head and the cursor",
	})

	BatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vaultscope",
		Subsystem: "poller",
		Name:      "batch_duration_seconds",
		Help:      "Sub-batch processing duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Fetcher / decode
	EventsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "indexer",
		Name:      "events_indexed_total",
		Help:      "Total distribution records written, by event type",
	}, []string{"event_type"})

	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "indexer",
		Name:      "events_duplicate_total",
		Help:      "Total records skipped because (tx_hash, log_index) already existed",
	})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "indexer",
		Name:      "decode_failures_total",
		Help:      "Total logs skipped because they failed to decode",
	})

	ProjectRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "indexer",
		Name:      "project_repairs_total",
		Help:      "Total records backfilled with a projectId after insert",
	})

	// Reconciler
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "reconciler",
		Name:      "runs_total",
		Help:      "Total reconciliation attempts, by escrow action",
	}, []string{"escrow_action"})

	ReconcileUnexpectedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "reconciler",
		Name:      "unexpected_errors_total",
		Help:      "Total reconciliation attempts that surfaced an unexpected error",
	})

	// Sweep
	SweepProjects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "sweep",
		Name:      "projects_total",
		Help:      "Total projects visited by the startup sweep",
	})

	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultscope",
		Subsystem: "sweep",
		Name:      "failures_total",
		Help:      "Total per-project sweep failures",
	})
)
