package order

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SkippedUpdatesTotal counts requotes suppressed by the significance
	// filter, by side.
	SkippedUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_order_skipped_updates_total",
		Help: "Total number of requotes suppressed as insignificant",
	}, []string{"side"})

	// OpenOrdersGauge tracks the number of open orders seen at the last
	// reconcile.
	OpenOrdersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_order_open_orders",
		Help: "Open orders on the exchange at the last reconcile",
	})
)
