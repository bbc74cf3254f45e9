package marketdata

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

func newTestAggregator() (*Aggregator, *time.Time) {
	a := New(zap.NewNop())
	clock := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }
	return a, &clock
}

func wireLevels(levels ...[2]string) []types.PriceLevel {
	out := make([]types.PriceLevel, len(levels))
	for i, lvl := range levels {
		out[i] = types.PriceLevel{Price: lvl[0], Size: lvl[1]}
	}
	return out
}

func TestUpdateOrderBookSortsSides(t *testing.T) {
	a, _ := newTestAggregator()

	a.UpdateOrderBook("tok",
		wireLevels([2]string{"0.50", "100"}, [2]string{"0.52", "200"}, [2]string{"0.51", "50"}),
		wireLevels([2]string{"0.55", "100"}, [2]string{"0.53", "200"}, [2]string{"0.54", "50"}))

	book, ok := a.OrderBook("tok")
	require.True(t, ok)
	assert.Equal(t, []float64{0.52, 0.51, 0.50}, []float64{book.Bids[0].Price, book.Bids[1].Price, book.Bids[2].Price})
	assert.Equal(t, []float64{0.53, 0.54, 0.55}, []float64{book.Asks[0].Price, book.Asks[1].Price, book.Asks[2].Price})

	bid, ask, ok := a.BestBidAsk("tok")
	require.True(t, ok)
	assert.Equal(t, 0.52, bid)
	assert.Equal(t, 0.53, ask)
}

func TestUpdateOrderBookSkipsMalformedLevels(t *testing.T) {
	a, _ := newTestAggregator()

	a.UpdateOrderBook("tok",
		wireLevels([2]string{"not-a-price", "100"}, [2]string{"0.50", "100"}),
		wireLevels([2]string{"0.53", "oops"}, [2]string{"0.54", "100"}))

	book, ok := a.OrderBook("tok")
	require.True(t, ok)
	assert.Len(t, book.Bids, 1)
	assert.Len(t, book.Asks, 1)
}

func TestBestBidAskEmptySide(t *testing.T) {
	a, _ := newTestAggregator()

	a.UpdateOrderBook("tok", wireLevels([2]string{"0.50", "100"}), nil)

	_, _, ok := a.BestBidAsk("tok")
	assert.False(t, ok)
	_, _, ok = a.BestBidAsk("unknown")
	assert.False(t, ok)
}

func TestDepth(t *testing.T) {
	a, _ := newTestAggregator()

	a.UpdateOrderBook("tok",
		wireLevels([2]string{"0.50", "100"}, [2]string{"0.49", "200"}, [2]string{"0.40", "500"}),
		wireLevels([2]string{"0.52", "150"}, [2]string{"0.53", "100"}, [2]string{"0.60", "500"}))

	depth, ok := a.Depth("tok", 0, 0.10)
	require.True(t, ok)

	assert.Equal(t, 0.50, depth.BestBid)
	assert.Equal(t, 0.52, depth.BestAsk)
	assert.Equal(t, 100.0, depth.BestBidSize)
	assert.Equal(t, 150.0, depth.BestAskSize)
	assert.Equal(t, 0.49, depth.SecondBestBid)
	assert.Equal(t, 0.53, depth.SecondBestAsk)
	// 0.40 sits below 0.50*(1-0.10) and 0.60 above 0.52*1.10.
	assert.Equal(t, 300.0, depth.BidDepth)
	assert.Equal(t, 250.0, depth.AskDepth)
	assert.InDelta(t, 0.02, depth.Spread, 1e-9)
	assert.InDelta(t, 0.51, depth.MidPrice, 1e-9)
	assert.InDelta(t, 300.0/250.0, depth.LiquidityRatio, 1e-9)

	_, ok = a.Depth("unknown", 0, 0.10)
	assert.False(t, ok)
}

func TestDepthMinSizeFilter(t *testing.T) {
	a, _ := newTestAggregator()

	a.UpdateOrderBook("tok",
		wireLevels([2]string{"0.50", "100"}, [2]string{"0.49", "5"}),
		wireLevels([2]string{"0.52", "150"}))

	depth, ok := a.Depth("tok", 50, 0.10)
	require.True(t, ok)
	assert.Equal(t, 100.0, depth.BidDepth)
}

func TestVolatilityRequiresTenSamples(t *testing.T) {
	a, clock := newTestAggregator()

	for i := 0; i < 9; i++ {
		*clock = clock.Add(time.Minute)
		bid := fmt.Sprintf("%.2f", 0.50+float64(i%3)*0.01)
		a.UpdateOrderBook("tok", wireLevels([2]string{bid, "100"}), wireLevels([2]string{"0.60", "100"}))
	}
	_, ok := a.Volatility("tok", 3*time.Hour)
	assert.False(t, ok)

	*clock = clock.Add(time.Minute)
	a.UpdateOrderBook("tok", wireLevels([2]string{"0.51", "100"}), wireLevels([2]string{"0.60", "100"}))

	vol, ok := a.Volatility("tok", 3*time.Hour)
	require.True(t, ok)
	assert.Greater(t, vol, 0.0)
}

func TestVolatilityFlatSeriesIsZero(t *testing.T) {
	a, clock := newTestAggregator()

	for i := 0; i < 12; i++ {
		*clock = clock.Add(time.Minute)
		a.UpdateOrderBook("tok", wireLevels([2]string{"0.50", "100"}), wireLevels([2]string{"0.52", "100"}))
	}

	vol, ok := a.Volatility("tok", 3*time.Hour)
	require.True(t, ok)
	assert.Equal(t, 0.0, vol)
}

func TestVolatilityWindowExcludesOldSamples(t *testing.T) {
	a, clock := newTestAggregator()

	// Twelve samples, all older than the window once the clock advances.
	for i := 0; i < 12; i++ {
		*clock = clock.Add(time.Minute)
		a.UpdateOrderBook("tok", wireLevels([2]string{"0.50", "100"}), wireLevels([2]string{"0.52", "100"}))
	}
	*clock = clock.Add(4 * time.Hour)

	_, ok := a.Volatility("tok", 3*time.Hour)
	assert.False(t, ok)
}

func TestPriceChange(t *testing.T) {
	a, clock := newTestAggregator()

	a.UpdateOrderBook("tok", wireLevels([2]string{"0.49", "100"}), wireLevels([2]string{"0.51", "100"}))
	*clock = clock.Add(time.Minute)
	a.UpdateOrderBook("tok", wireLevels([2]string{"0.54", "100"}), wireLevels([2]string{"0.56", "100"}))

	change, ok := a.PriceChange("tok", time.Hour)
	require.True(t, ok)
	// Mid moved 0.50 -> 0.55.
	assert.InDelta(t, 10.0, change, 1e-9)
}

func TestTradesAndVWAP(t *testing.T) {
	a, clock := newTestAggregator()

	a.RecordTrade("tok", 0.50, 100, "BUY")
	*clock = clock.Add(time.Minute)
	a.RecordTrade("tok", 0.60, 300, "SELL")

	trades := a.RecentTrades("tok", time.Hour)
	require.Len(t, trades, 2)
	assert.Equal(t, 0.50, trades[0].Price)

	vwap, ok := a.VWAP("tok", time.Hour)
	require.True(t, ok)
	// (0.50*100 + 0.60*300) / 400
	assert.InDelta(t, 0.575, vwap, 1e-9)

	_, ok = a.VWAP("quiet", time.Hour)
	assert.False(t, ok)
}

func TestIsFreshAndClearStale(t *testing.T) {
	a, clock := newTestAggregator()

	a.UpdateOrderBook("tok", wireLevels([2]string{"0.50", "100"}), wireLevels([2]string{"0.52", "100"}))
	assert.True(t, a.IsFresh("tok", time.Minute))
	assert.False(t, a.IsFresh("unknown", time.Minute))

	*clock = clock.Add(10 * time.Minute)
	assert.False(t, a.IsFresh("tok", time.Minute))

	a.ClearStale(time.Minute)
	_, ok := a.OrderBook("tok")
	assert.False(t, ok)
}

func TestRingOverwritesOldest(t *testing.T) {
	r := newRing[int](3)

	for i := 1; i <= 5; i++ {
		r.push(i)
	}

	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{3, 4, 5}, r.items())
}
