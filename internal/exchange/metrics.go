package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlacedTotal counts successfully submitted orders by side.
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_exchange_orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"side"})

	// OrderFailuresTotal counts submissions that failed after retries.
	OrderFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_exchange_order_failures_total",
		Help: "Total number of order submissions failed after retries",
	}, []string{"side"})

	// OrdersCancelledTotal counts cancelled orders.
	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_exchange_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})
)
