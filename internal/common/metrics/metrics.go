// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MetadataFetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_fetch_attempts_total",
			Help: "Total number of metadata fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	MetadataFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_fallbacks_total",
			Help: "Total number of resolutions that ended in the sentinel document",
		},
	)

	AggregationPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_passes_total",
			Help: "Total number of aggregation passes by view and outcome",
		},
		[]string{"view", "outcome"},
	)

	AggregationPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "catalog_pass_duration_seconds",
			Help: "Duration of aggregation passes in seconds",
		},
		[]string{"view"},
	)

	ItemsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_items_skipped_total",
			Help: "Total number of item records dropped from a pass",
		},
		[]string{"reason"},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_actions_total",
			Help: "Total number of dispatched marketplace actions by outcome",
		},
		[]string{"action", "outcome"},
	)
)
