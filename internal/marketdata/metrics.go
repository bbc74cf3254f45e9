package marketdata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookUpdatesTotal counts order book updates applied to the aggregator.
	BookUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_marketdata_book_updates_total",
		Help: "Total number of order book updates applied",
	})

	// TradesRecordedTotal counts trades appended to trade histories.
	TradesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_marketdata_trades_recorded_total",
		Help: "Total number of trades recorded",
	})

	// BooksTracked tracks the number of order books held in memory.
	BooksTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_marketdata_books_tracked",
		Help: "Number of order books tracked in memory",
	})

	// StaleBooksClearedTotal counts books dropped by staleness sweeps.
	StaleBooksClearedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_marketdata_stale_books_cleared_total",
		Help: "Total number of stale order books cleared",
	})
)
