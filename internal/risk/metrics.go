package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StopLossTriggersTotal counts stop-loss activations.
	StopLossTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_risk_stop_loss_triggers_total",
		Help: "Total number of stop-loss activations",
	})

	// GuardRejectionsTotal counts entries blocked by each guard.
	GuardRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_risk_guard_rejections_total",
		Help: "Total number of entries blocked by risk guards",
	}, []string{"guard"})
)
