// Package order manages resting orders: the significance filter that gates
// requotes, cancel-then-place submission and the periodic REST
// reconciliation of the local order view.
package order

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

const (
	// A requote must move price by more than half a cent or size by more
	// than ten percent of the new size to be worth cancelling for.
	priceUpdateThreshold   = 0.005
	sizeUpdateThresholdPct = 0.10
)

// Exchange is the slice of the CLOB client the order manager needs.
type Exchange interface {
	CreateOrder(ctx context.Context, tokenID, side string, price, size float64, negRisk bool) (*types.OrderResult, error)
	CancelAsset(ctx context.Context, tokenID string) error
	OpenOrders(ctx context.Context, tokenID string) ([]types.OpenOrder, error)
}

// Manager owns the resting-order lifecycle.
type Manager struct {
	st       *state.State
	exchange Exchange
	logger   *zap.Logger
}

// NewManager creates the order manager.
func NewManager(st *state.State, exchange Exchange, logger *zap.Logger) *Manager {
	return &Manager{st: st, exchange: exchange, logger: logger}
}

// ShouldUpdate reports whether a new quote differs enough from the resting
// order to justify a cancel-and-replace.
func (m *Manager) ShouldUpdate(tokenID, side string, newPrice, newSize float64) bool {
	orders := m.st.Orders(tokenID)

	var current types.RestingOrder
	switch side {
	case types.SideBuy:
		current = orders.Buy
	case types.SideSell:
		current = orders.Sell
	default:
		return false
	}

	if current.Size == 0 {
		return true
	}
	if math.Abs(current.Price-newPrice) > priceUpdateThreshold {
		return true
	}
	return math.Abs(current.Size-newSize) > sizeUpdateThresholdPct*newSize
}

// PlaceBuy submits a buy quote for the token. Returns true when an order
// was actually placed.
func (m *Manager) PlaceBuy(ctx context.Context, tokenID string, price, size float64, negRisk bool) bool {
	return m.place(ctx, tokenID, types.SideBuy, price, size, negRisk)
}

// PlaceSell submits a sell quote for the token. Returns true when an order
// was actually placed.
func (m *Manager) PlaceSell(ctx context.Context, tokenID string, price, size float64, negRisk bool) bool {
	return m.place(ctx, tokenID, types.SideSell, price, size, negRisk)
}

func (m *Manager) place(ctx context.Context, tokenID, side string, price, size float64, negRisk bool) bool {
	if !m.ShouldUpdate(tokenID, side, price, size) {
		SkippedUpdatesTotal.WithLabelValues(side).Inc()
		m.logger.Debug("order-update-skipped",
			zap.String("token_id", tokenID),
			zap.String("side", side),
			zap.Float64("price", price),
			zap.Float64("size", size))
		return false
	}

	// The exchange may hold orders on either side; clear them all before
	// requoting so at most one resting order per side survives.
	orders := m.st.Orders(tokenID)
	if orders.Buy.Size > 0 || orders.Sell.Size > 0 {
		if err := m.exchange.CancelAsset(ctx, tokenID); err != nil {
			m.logger.Error("pre-place-cancel-failed",
				zap.String("token_id", tokenID),
				zap.Error(err))
			return false
		}
		m.st.ClearOrders(tokenID)
	}

	result, err := m.exchange.CreateOrder(ctx, tokenID, side, price, size, negRisk)
	if err != nil || result == nil {
		return false
	}

	m.st.SetOrder(tokenID, side, price, size)
	return true
}

// EmergencySell clears the token's orders and submits a sell immediately,
// bypassing the significance filter. The stop-loss path must never be
// suppressed as an insignificant requote.
func (m *Manager) EmergencySell(ctx context.Context, tokenID string, price, size float64, negRisk bool) bool {
	if err := m.exchange.CancelAsset(ctx, tokenID); err != nil {
		m.logger.Error("emergency-cancel-failed",
			zap.String("token_id", tokenID),
			zap.Error(err))
	}
	m.st.ClearOrders(tokenID)

	result, err := m.exchange.CreateOrder(ctx, tokenID, types.SideSell, price, size, negRisk)
	if err != nil || result == nil {
		return false
	}

	m.st.SetOrder(tokenID, types.SideSell, price, size)
	return true
}

// Reconcile pulls all open orders and rebuilds the resting-order map.
// Multiple exchange orders per (token, side) aggregate: buys keep the max
// price, sells the min, sizes sum. The map is replaced wholesale.
func (m *Manager) Reconcile(ctx context.Context) error {
	open, err := m.exchange.OpenOrders(ctx, "")
	if err != nil {
		m.logger.Error("order-reconcile-failed", zap.Error(err))
		return err
	}

	grouped := make(map[string]types.TokenOrders)
	for _, o := range open {
		orders := grouped[o.AssetID]
		switch o.Side {
		case types.SideBuy:
			if orders.Buy.Size == 0 || o.Price > orders.Buy.Price {
				orders.Buy.Price = o.Price
			}
			orders.Buy.Size += o.Size
		case types.SideSell:
			if orders.Sell.Size == 0 || o.Price < orders.Sell.Price {
				orders.Sell.Price = o.Price
			}
			orders.Sell.Size += o.Size
		}
		grouped[o.AssetID] = orders
	}

	m.st.ReplaceOrders(grouped)
	OpenOrdersGauge.Set(float64(len(open)))
	return nil
}

// CancelAllForToken cancels every open order on a token and zeroes the
// local record.
func (m *Manager) CancelAllForToken(ctx context.Context, tokenID string) error {
	if err := m.exchange.CancelAsset(ctx, tokenID); err != nil {
		return err
	}
	m.st.ClearOrders(tokenID)
	return nil
}

// CancelAllForMarket cancels open orders on both of a market's tokens.
func (m *Manager) CancelAllForMarket(ctx context.Context, market types.Market) error {
	var firstErr error
	for _, tokenID := range []string{market.Token1, market.Token2} {
		if tokenID == "" {
			continue
		}
		if err := m.CancelAllForToken(ctx, tokenID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleOrder applies a private-stream order event to the local record.
func (m *Manager) HandleOrder(tokenID, side string, size, price float64) {
	m.st.SetOrder(tokenID, side, price, size)
}

// HandleCancel drops the local record for a cancelled token's orders. The
// stream does not say which side was cancelled; the next reconcile restores
// any survivor.
func (m *Manager) HandleCancel(tokenID, orderID string) {
	m.st.ClearOrders(tokenID)
	m.logger.Debug("order-cancel-event",
		zap.String("token_id", tokenID),
		zap.String("order_id", orderID))
}
