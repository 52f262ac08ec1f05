package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal tracks predictions served by outcome.
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permitpath_predictions_total",
			Help: "Total predictions served, labeled by outcome",
		},
		[]string{"outcome"},
	)

	// PlaybooksTotal tracks diagnoses served by outcome.
	PlaybooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permitpath_playbooks_total",
			Help: "Total stuck-permit playbooks served, labeled by outcome",
		},
		[]string{"outcome"},
	)

	// MatrixBuildDuration tracks transition matrix build time.
	MatrixBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "permitpath_matrix_build_seconds",
			Help:    "Transition matrix build duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BaselineRefreshDuration tracks the duration of a full baseline
	// recompute pass.
	BaselineRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "permitpath_baseline_refresh_seconds",
			Help:    "Baseline refresh cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// BaselineRowsWritten counts upserted baseline rows.
	BaselineRowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permitpath_baseline_rows_written_total",
			Help: "Total baseline rows upserted by the refresh worker",
		},
	)

	// CatalogCalls counts remote catalog calls by category and result.
	CatalogCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permitpath_catalog_calls_total",
			Help: "Remote catalog calls, labeled by category and result",
		},
		[]string{"category", "result"},
	)

	// PoolInUse tracks checked-out connections.
	PoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permitpath_pool_in_use",
			Help: "Connections currently checked out of the pool",
		},
	)

	// BreakerState exposes breaker position per category
	// (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "permitpath_breaker_state",
			Help: "Circuit breaker state per category (0 closed, 1 half-open, 2 open)",
		},
		[]string{"category"},
	)
)
