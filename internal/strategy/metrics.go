package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassesTotal counts trading passes started.
	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_strategy_passes_total",
		Help: "Total number of trading passes started",
	})

	// PassDurationSeconds observes full-pass latency.
	PassDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_strategy_pass_duration_seconds",
		Help:    "Duration of trading passes",
		Buckets: prometheus.DefBuckets,
	})
)
