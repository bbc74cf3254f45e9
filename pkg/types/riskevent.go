package types

import "time"

// Risk event kinds.
const (
	RiskEventStopLoss = "stop_loss"
	RiskEventManual   = "manual"
)

// RiskEvent is the persisted record that trading on a market is paused.
// One JSON file per market id under the positions directory; the file is
// the ground truth for cool-down enforcement.
type RiskEvent struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	EventType string    `json:"event_type"`
	Question  string    `json:"question,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	ExitPrice float64   `json:"exit_price,omitempty"`
	PnLPct    float64   `json:"pnl_pct,omitempty"`
	SleepTill time.Time `json:"sleep_till"`
}

// Cooling reports whether the event's sleep window is still open.
func (e *RiskEvent) Cooling(now time.Time) bool {
	return now.Before(e.SleepTill)
}
