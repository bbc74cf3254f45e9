// Package testutil provides the in-memory fakes and fixtures shared by the
// engine's unit tests.
package testutil

import (
	"context"
	"sync"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

// PlacedOrder records one CreateOrder call on the fake exchange.
type PlacedOrder struct {
	TokenID string
	Side    string
	Price   float64
	Size    float64
	NegRisk bool
}

// MergeCall records one MergePositions call on the fake exchange.
type MergeCall struct {
	AmountBase  int64
	ConditionID string
	NegRisk     bool
}

// FakeExchange is an in-memory stand-in for the CLOB client. It satisfies
// both the order manager's and the position manager's exchange interfaces.
type FakeExchange struct {
	mu sync.Mutex

	Placed    []PlacedOrder
	Cancelled []string
	Merges    []MergeCall

	// Return values, settable per test.
	Open      []types.OpenOrder
	ChainPos  map[string]types.ChainPosition
	CreateErr error
	CancelErr error
	OpenErr   error
	PosErr    error
	MergeErr  error
	nextID    int
}

// NewFakeExchange returns an empty fake.
func NewFakeExchange() *FakeExchange {
	return &FakeExchange{ChainPos: make(map[string]types.ChainPosition)}
}

// CreateOrder records the call and returns a synthetic order id.
func (f *FakeExchange) CreateOrder(_ context.Context, tokenID, side string, price, size float64, negRisk bool) (*types.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.Placed = append(f.Placed, PlacedOrder{
		TokenID: tokenID,
		Side:    side,
		Price:   price,
		Size:    size,
		NegRisk: negRisk,
	})
	f.nextID++
	return &types.OrderResult{OrderID: "fake-order", Status: "live"}, nil
}

// CancelAsset records the cancelled token.
func (f *FakeExchange) CancelAsset(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CancelErr != nil {
		return f.CancelErr
	}
	f.Cancelled = append(f.Cancelled, tokenID)
	return nil
}

// OpenOrders returns the configured open-order set.
func (f *FakeExchange) OpenOrders(_ context.Context, _ string) ([]types.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return append([]types.OpenOrder(nil), f.Open...), nil
}

// Positions returns the configured on-chain snapshot.
func (f *FakeExchange) Positions(_ context.Context) (map[string]types.ChainPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PosErr != nil {
		return nil, f.PosErr
	}
	out := make(map[string]types.ChainPosition, len(f.ChainPos))
	for k, v := range f.ChainPos {
		out[k] = v
	}
	return out, nil
}

// MergePositions records the call.
func (f *FakeExchange) MergePositions(_ context.Context, amountBase int64, conditionID string, negRisk bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.MergeErr != nil {
		return f.MergeErr
	}
	f.Merges = append(f.Merges, MergeCall{
		AmountBase:  amountBase,
		ConditionID: conditionID,
		NegRisk:     negRisk,
	})
	return nil
}

// PlacedFor returns the recorded orders for one token.
func (f *FakeExchange) PlacedFor(tokenID string) []PlacedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []PlacedOrder
	for _, p := range f.Placed {
		if p.TokenID == tokenID {
			out = append(out, p)
		}
	}
	return out
}

// Reset clears all recorded calls.
func (f *FakeExchange) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Placed = nil
	f.Cancelled = nil
	f.Merges = nil
}
