// Package state holds the single shared, mutex-guarded container for
// positions, resting orders, the market catalog, parameter profiles,
// in-flight operation markers and stream health flags.
//
// Accessors are short critical sections that copy values out; no I/O and no
// callbacks run while the lock is held.
package state

import (
	"sync"
	"time"

	"github.com/mmaker/polymarket-mm/pkg/mathutil"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

// State is the thread-safe shared state of the bot.
type State struct {
	mu sync.Mutex

	markets []types.Market
	params  map[string]types.ParamProfile

	positions map[string]types.Position
	orders    map[string]types.TokenOrders

	// In-flight REST operations: op kind -> operation id -> attach time.
	inflight map[string]map[string]time.Time

	marketStreamUp bool
	userStreamUp   bool
}

// New creates an empty state container.
func New() *State {
	return &State{
		params:    make(map[string]types.ParamProfile),
		positions: make(map[string]types.Position),
		orders:    make(map[string]types.TokenOrders),
		inflight: map[string]map[string]time.Time{
			types.OpBuy:    {},
			types.OpSell:   {},
			types.OpCancel: {},
		},
	}
}

// Position returns the tracked position for a token, or a zero record.
func (s *State) Position(tokenID string) types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[tokenID]
}

// Positions returns a copy of the full positions map.
func (s *State) Positions() map[string]types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]types.Position, len(s.positions))
	for tokenID, pos := range s.positions {
		out[tokenID] = pos
	}
	return out
}

// SetPosition overwrites the tracked position for a token.
func (s *State) SetPosition(tokenID string, pos types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[tokenID] = pos
}

// UpdatePosition applies one execution to a token's position and returns the
// new record. Buys move the average price to the size-weighted mean; sells
// reduce size and keep the average until the position fully closes, at which
// point both reset to zero. Stored values are quantized to the 2/4 decimal
// size/price grid.
func (s *State) UpdatePosition(tokenID, side string, size, price float64) types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.positions[tokenID]

	var next types.Position
	switch side {
	case types.SideBuy:
		total := current.Size + size
		if total > 0 {
			next.Size = total
			next.AvgPrice = (current.Size*current.AvgPrice + size*price) / total
		}
	case types.SideSell:
		next.Size = current.Size - size
		if next.Size < 0 {
			next.Size = 0
		}
		if next.Size > 0 {
			next.AvgPrice = current.AvgPrice
		}
	default:
		next = current
	}

	next.Size, _ = mathutil.RoundDown(next.Size, 2)
	next.AvgPrice = quantizePrice(next.AvgPrice)

	s.positions[tokenID] = next
	return next
}

// ReplacePositions swaps in a full position snapshot.
func (s *State) ReplacePositions(positions map[string]types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]types.Position, len(positions))
	for tokenID, pos := range positions {
		s.positions[tokenID] = pos
	}
}

// UpdateAvgPrices overwrites the average price of tokens already tracked,
// preserving sizes. Unknown tokens are ignored.
func (s *State) UpdateAvgPrices(avgPrices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tokenID, avg := range avgPrices {
		pos, ok := s.positions[tokenID]
		if !ok {
			continue
		}
		pos.AvgPrice = quantizePrice(avg)
		s.positions[tokenID] = pos
	}
}

// TotalExposure returns the summed long exposure (size x avg price) across
// all tracked positions.
func (s *State) TotalExposure() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, pos := range s.positions {
		if pos.Size > 0 && pos.AvgPrice > 0 {
			total += pos.Size * pos.AvgPrice
		}
	}
	return total
}

// Orders returns the resting orders tracked for a token, or zero records.
func (s *State) Orders(tokenID string) types.TokenOrders {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[tokenID]
}

// SetOrder overwrites the tracked resting order for one (token, side).
func (s *State) SetOrder(tokenID, side string, price, size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.orders[tokenID]
	switch side {
	case types.SideBuy:
		orders.Buy = types.RestingOrder{Price: price, Size: size}
	case types.SideSell:
		orders.Sell = types.RestingOrder{Price: price, Size: size}
	}
	s.orders[tokenID] = orders
}

// ClearOrders zeroes the tracked resting orders for a token.
func (s *State) ClearOrders(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, tokenID)
}

// ReplaceOrders swaps in a full resting-order snapshot.
func (s *State) ReplaceOrders(orders map[string]types.TokenOrders) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]types.TokenOrders, len(orders))
	for tokenID, o := range orders {
		s.orders[tokenID] = o
	}
}

// OrderCount returns the number of tokens with tracked resting orders.
func (s *State) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// SetMarkets replaces the market catalog.
func (s *State) SetMarkets(markets []types.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets = append([]types.Market(nil), markets...)
}

// Markets returns a copy of the market catalog.
func (s *State) Markets() []types.Market {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Market(nil), s.markets...)
}

// Market looks up a market by condition id.
func (s *State) Market(conditionID string) (types.Market, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.markets {
		if m.ConditionID == conditionID {
			return m, true
		}
	}
	return types.Market{}, false
}

// MarketForToken looks up the market owning an outcome token.
func (s *State) MarketForToken(tokenID string) (types.Market, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.markets {
		if m.HasToken(tokenID) {
			return m, true
		}
	}
	return types.Market{}, false
}

// WatchedTokens returns every outcome token of the current catalog.
func (s *State) WatchedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make([]string, 0, len(s.markets)*2)
	for _, m := range s.markets {
		if m.Token1 != "" {
			tokens = append(tokens, m.Token1)
		}
		if m.Token2 != "" {
			tokens = append(tokens, m.Token2)
		}
	}
	return tokens
}

// SetParams replaces the parameter profiles.
func (s *State) SetParams(params map[string]types.ParamProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = make(map[string]types.ParamProfile, len(params))
	for name, p := range params {
		s.params[name] = p
	}
}

// Params looks up a parameter profile by name.
func (s *State) Params(name string) (types.ParamProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[name]
	return p, ok
}

// AddInFlight installs an in-flight marker for an operation.
func (s *State) AddInFlight(op, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.inflight[op]
	if !ok {
		set = make(map[string]time.Time)
		s.inflight[op] = set
	}
	set[id] = time.Now()
}

// RemoveInFlight removes an in-flight marker.
func (s *State) RemoveInFlight(op, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.inflight[op]; ok {
		delete(set, id)
	}
}

// IsInFlight reports whether an operation marker is currently held.
func (s *State) IsInFlight(op, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.inflight[op]
	if !ok {
		return false
	}
	_, held := set[id]
	return held
}

// SweptMarker identifies one stale in-flight entry removed by a sweep.
type SweptMarker struct {
	Op  string
	ID  string
	Age time.Duration
}

// SweepInFlight drops markers older than maxAge and returns what was
// removed. The periodic updater is the only caller; this is the recovery
// path for crashed or leaked REST calls.
func (s *State) SweepInFlight(maxAge time.Duration) []SweptMarker {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var swept []SweptMarker

	for op, set := range s.inflight {
		for id, attached := range set {
			age := now.Sub(attached)
			if age > maxAge {
				delete(set, id)
				swept = append(swept, SweptMarker{Op: op, ID: id, Age: age})
			}
		}
	}
	return swept
}

// SetMarketStreamUp records the public stream's health.
func (s *State) SetMarketStreamUp(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketStreamUp = up
}

// SetUserStreamUp records the private stream's health.
func (s *State) SetUserStreamUp(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userStreamUp = up
}

// StreamHealth returns (market, user) stream connection flags.
func (s *State) StreamHealth() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marketStreamUp, s.userStreamUp
}

// quantizePrice rounds half-up to the 4-decimal price grid.
func quantizePrice(p float64) float64 {
	const grid = 1e4
	if p < 0 {
		return 0
	}
	return float64(int64(p*grid+0.5)) / grid
}
