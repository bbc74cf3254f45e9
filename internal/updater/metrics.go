package updater

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts updater cycles run.
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_updater_cycles_total",
		Help: "Total number of updater cycles run",
	})

	// CycleFailuresTotal counts cycle steps that failed.
	CycleFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_updater_cycle_failures_total",
		Help: "Total number of failed updater cycle steps",
	})

	// SweptMarkersTotal counts stale in-flight markers dropped, by op.
	SweptMarkersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_updater_swept_markers_total",
		Help: "Total number of stale in-flight markers swept",
	}, []string{"op"})
)
