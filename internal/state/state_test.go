package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

func TestUpdatePositionBuyWeightedAverage(t *testing.T) {
	s := New()

	s.UpdatePosition("tok", types.SideBuy, 100, 0.50)
	pos := s.UpdatePosition("tok", types.SideBuy, 50, 0.56)

	assert.Equal(t, 150.0, pos.Size)
	// (100*0.50 + 50*0.56) / 150 = 0.52
	assert.InDelta(t, 0.52, pos.AvgPrice, 1e-9)
}

func TestUpdatePositionSellKeepsAverage(t *testing.T) {
	s := New()

	s.UpdatePosition("tok", types.SideBuy, 100, 0.50)
	pos := s.UpdatePosition("tok", types.SideSell, 40, 0.60)

	assert.Equal(t, 60.0, pos.Size)
	assert.Equal(t, 0.50, pos.AvgPrice)
}

func TestUpdatePositionFullCloseResets(t *testing.T) {
	s := New()

	s.UpdatePosition("tok", types.SideBuy, 100, 0.50)
	pos := s.UpdatePosition("tok", types.SideSell, 100, 0.60)

	assert.Equal(t, 0.0, pos.Size)
	assert.Equal(t, 0.0, pos.AvgPrice)
}

func TestUpdatePositionOversellClampsToZero(t *testing.T) {
	s := New()

	s.UpdatePosition("tok", types.SideBuy, 50, 0.50)
	pos := s.UpdatePosition("tok", types.SideSell, 80, 0.60)

	assert.Equal(t, 0.0, pos.Size)
	assert.Equal(t, 0.0, pos.AvgPrice)
}

func TestUpdatePositionQuantizes(t *testing.T) {
	s := New()

	pos := s.UpdatePosition("tok", types.SideBuy, 10.5678, 0.123456)

	// Sizes truncate to 2 decimals, prices round to 4.
	assert.Equal(t, 10.56, pos.Size)
	assert.Equal(t, 0.1235, pos.AvgPrice)
}

func TestUpdateAvgPricesIgnoresUnknownTokens(t *testing.T) {
	s := New()
	s.SetPosition("known", types.Position{Size: 10, AvgPrice: 0.50})

	s.UpdateAvgPrices(map[string]float64{"known": 0.55, "unknown": 0.40})

	assert.Equal(t, types.Position{Size: 10, AvgPrice: 0.55}, s.Position("known"))
	assert.Equal(t, types.Position{}, s.Position("unknown"))
}

func TestTotalExposure(t *testing.T) {
	s := New()
	s.SetPosition("a", types.Position{Size: 100, AvgPrice: 0.50})
	s.SetPosition("b", types.Position{Size: 20, AvgPrice: 0.25})
	s.SetPosition("flat", types.Position{Size: 0, AvgPrice: 0.90})

	assert.InDelta(t, 55.0, s.TotalExposure(), 1e-9)
}

func TestOrdersLifecycle(t *testing.T) {
	s := New()

	s.SetOrder("tok", types.SideBuy, 0.50, 100)
	s.SetOrder("tok", types.SideSell, 0.60, 50)

	orders := s.Orders("tok")
	assert.Equal(t, types.RestingOrder{Price: 0.50, Size: 100}, orders.Buy)
	assert.Equal(t, types.RestingOrder{Price: 0.60, Size: 50}, orders.Sell)

	s.ClearOrders("tok")
	assert.Equal(t, types.TokenOrders{}, s.Orders("tok"))
	assert.Equal(t, 0, s.OrderCount())
}

func TestReplaceOrdersIsWholesale(t *testing.T) {
	s := New()
	s.SetOrder("old", types.SideBuy, 0.50, 100)

	s.ReplaceOrders(map[string]types.TokenOrders{
		"new": {Buy: types.RestingOrder{Price: 0.40, Size: 10}},
	})

	assert.Equal(t, types.TokenOrders{}, s.Orders("old"))
	assert.Equal(t, 10.0, s.Orders("new").Buy.Size)
}

func TestMarketLookups(t *testing.T) {
	s := New()
	s.SetMarkets([]types.Market{
		{ConditionID: "c1", Token1: "t1", Token2: "t2"},
		{ConditionID: "c2", Token1: "t3", Token2: "t4"},
	})

	m, ok := s.Market("c2")
	require.True(t, ok)
	assert.Equal(t, "t3", m.Token1)

	m, ok = s.MarketForToken("t2")
	require.True(t, ok)
	assert.Equal(t, "c1", m.ConditionID)

	_, ok = s.Market("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, s.WatchedTokens())
}

func TestInFlightMarkers(t *testing.T) {
	s := New()

	s.AddInFlight(types.OpBuy, "tok")
	assert.True(t, s.IsInFlight(types.OpBuy, "tok"))
	assert.False(t, s.IsInFlight(types.OpSell, "tok"))

	s.RemoveInFlight(types.OpBuy, "tok")
	assert.False(t, s.IsInFlight(types.OpBuy, "tok"))
}

func TestSweepInFlightDropsOnlyStaleMarkers(t *testing.T) {
	s := New()

	s.AddInFlight(types.OpBuy, "stale")
	time.Sleep(2 * time.Millisecond)

	swept := s.SweepInFlight(time.Hour)
	assert.Empty(t, swept)
	assert.True(t, s.IsInFlight(types.OpBuy, "stale"))

	swept = s.SweepInFlight(time.Millisecond)
	require.Len(t, swept, 1)
	assert.Equal(t, types.OpBuy, swept[0].Op)
	assert.Equal(t, "stale", swept[0].ID)
	assert.False(t, s.IsInFlight(types.OpBuy, "stale"))
}

func TestStreamHealth(t *testing.T) {
	s := New()

	market, user := s.StreamHealth()
	assert.False(t, market)
	assert.False(t, user)

	s.SetMarketStreamUp(true)
	s.SetUserStreamUp(true)
	market, user = s.StreamHealth()
	assert.True(t, market)
	assert.True(t, user)
}
