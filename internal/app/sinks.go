package app

import (
	"github.com/mmaker/polymarket-mm/internal/order"
	"github.com/mmaker/polymarket-mm/internal/position"
)

// accountSink routes private-stream events to the owning managers.
type accountSink struct {
	positions *position.Manager
	orders    *order.Manager
}

func (s *accountSink) HandleFill(tokenID, side string, size, price float64) {
	s.positions.Update(tokenID, side, size, price, "fill")
}

func (s *accountSink) HandleOrder(tokenID, side string, size, price float64) {
	s.orders.HandleOrder(tokenID, side, size, price)
}

func (s *accountSink) HandleCancel(tokenID, orderID string) {
	s.orders.HandleCancel(tokenID, orderID)
}
