package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// BreakerOpen is 1 while order submission is blocked.
	BreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_breaker_open",
		Help: "Whether the order submission breaker is open",
	})

	// BreakerTripsTotal counts breaker openings.
	BreakerTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_breaker_trips_total",
		Help: "Total number of times the breaker opened",
	})

	// ConsecutiveFailures tracks the current failure run length.
	ConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_breaker_consecutive_failures",
		Help: "Current consecutive order submission failures",
	})
)
