package enrichment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal tracks refresh outcomes
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_refresh_total",
			Help: "Total number of catalog refreshes by outcome",
		},
		[]string{"outcome"}, // "success", "failed", "superseded"
	)

	// RefreshDuration tracks end-to-end refresh latency
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_refresh_duration_seconds",
			Help:    "Catalog refresh duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// ItemsSkipped tracks detail calls dropped by skip-on-error
	ItemsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_items_skipped_total",
			Help: "Total number of items omitted from a result set because their detail call failed",
		},
		[]string{"class"},
	)

	// ResultSetSize tracks the size of the published result set
	ResultSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_result_set_size",
			Help: "Number of entities in the currently published result set",
		},
	)
)

const (
	outcomeSuccess    = "success"
	outcomeFailed     = "failed"
	outcomeSuperseded = "superseded"
)
