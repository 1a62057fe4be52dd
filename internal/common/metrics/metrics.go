// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful prediction requests per backend",
		},
		[]string{"backend"},
	)

	PredictionRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_rows_total",
			Help: "Total number of records scored per backend",
		},
		[]string{"backend"},
	)

	PredictionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed prediction requests",
		},
		[]string{"backend", "error_code"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prediction_duration_seconds",
			Help:    "Duration of pipeline execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	ResultWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_writes_total",
			Help: "Result file writes by status",
		},
		[]string{"status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_cache_lookups_total",
			Help: "Single-record cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
