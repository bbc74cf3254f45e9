package position

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergesTotal counts executed YES/NO merges.
	MergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_position_merges_total",
		Help: "Total number of position merges executed",
	})

	// RiskEventsSavedTotal counts persisted risk events by type.
	RiskEventsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_position_risk_events_saved_total",
		Help: "Total number of risk events persisted",
	}, []string{"event_type"})
)
