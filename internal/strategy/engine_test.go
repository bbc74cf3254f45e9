package strategy

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/order"
	"github.com/mmaker/polymarket-mm/internal/position"
	"github.com/mmaker/polymarket-mm/internal/risk"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/internal/testutil"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

type testEnv struct {
	engine    *Engine
	state     *state.State
	data      *marketdata.Aggregator
	fake      *testutil.FakeExchange
	positions *position.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	st := state.New()
	data := marketdata.New(logger)
	fake := testutil.NewFakeExchange()

	positions, err := position.NewManager(&position.Config{
		State:        st,
		Exchange:     fake,
		PositionsDir: t.TempDir(),
		Logger:       logger,
	})
	require.NoError(t, err)

	orders := order.NewManager(st, fake, logger)
	riskManager := risk.NewManager(&risk.Config{
		Data:      data,
		Positions: positions,
		Logger:    logger,
	})

	engine := NewEngine(&Config{
		State:     st,
		Data:      data,
		Orders:    orders,
		Positions: positions,
		Risk:      riskManager,
		Logger:    logger,
	})

	st.SetMarkets([]types.Market{testutil.Market("c1")})
	st.SetParams(map[string]types.ParamProfile{"default": testutil.Profile()})

	return &testEnv{engine: engine, state: st, data: data, fake: fake, positions: positions}
}

func (env *testEnv) setBook(tokenID string, bid, ask, size float64) {
	env.data.UpdateOrderBook(tokenID,
		[]types.PriceLevel{{Price: floatStr(bid), Size: floatStr(size)}},
		[]types.PriceLevel{{Price: floatStr(ask), Size: floatStr(size)}})
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func TestPassPlacesEntryBuy(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)

	env.engine.Pass(context.Background(), "c1")

	placed := env.fake.PlacedFor("c1-yes")
	require.Len(t, placed, 1)
	assert.Equal(t, types.SideBuy, placed[0].Side)
	// One tick above the best bid, capped at mid; size is the full
	// remaining capacity toward max size.
	assert.InDelta(t, 0.51, placed[0].Price, 1e-9)
	assert.Equal(t, 250.0, placed[0].Size)
}

func TestPassQuotesBothSidesWithPosition(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)
	env.state.SetPosition("c1-yes", types.Position{Size: 100, AvgPrice: 0.50})

	env.engine.Pass(context.Background(), "c1")

	placed := env.fake.PlacedFor("c1-yes")
	require.Len(t, placed, 2)

	// Take-profit sell for the whole position at max(tp, bestAsk).
	assert.Equal(t, types.SideSell, placed[0].Side)
	assert.InDelta(t, 0.52, placed[0].Price, 1e-9)
	assert.Equal(t, 100.0, placed[0].Size)

	// Entry buy for the remaining capacity toward max size.
	assert.Equal(t, types.SideBuy, placed[1].Side)
	assert.Equal(t, 150.0, placed[1].Size)
}

func TestPassStopLoss(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.47, 0.48, 200)
	env.state.SetPosition("c1-yes", types.Position{Size: 100, AvgPrice: 0.50})

	env.engine.Pass(context.Background(), "c1")

	// Emergency sell at the best bid, bypassing everything else.
	placed := env.fake.PlacedFor("c1-yes")
	require.Len(t, placed, 1)
	assert.Equal(t, types.SideSell, placed[0].Side)
	assert.InDelta(t, 0.47, placed[0].Price, 1e-9)
	assert.Equal(t, 100.0, placed[0].Size)

	// The cool-down record is persisted for the market.
	event, ok := env.positions.LoadRiskEvent("c1")
	require.True(t, ok)
	assert.Equal(t, types.RiskEventStopLoss, event.EventType)
	assert.Equal(t, "c1-yes", event.TokenID)
	assert.InDelta(t, -5.0, event.PnLPct, 1e-9)
	assert.True(t, event.Cooling(time.Now()))

	// The opposite token's quotes are pulled; the emergency sell survives.
	assert.Contains(t, env.fake.Cancelled, "c1-no")
}

func TestPassCooldownBlocksReentry(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)

	require.NoError(t, env.positions.SaveRiskEvent("c1", types.RiskEvent{
		EventType: types.RiskEventStopLoss,
		SleepTill: time.Now().Add(time.Hour),
	}))

	env.engine.Pass(context.Background(), "c1")

	assert.Empty(t, env.fake.PlacedFor("c1-yes"))
	// Risk-off also pulls any open quotes on the token.
	assert.Contains(t, env.fake.Cancelled, "c1-yes")
}

func TestPassSkipsDisabledMarket(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)

	market := testutil.Market("c1")
	market.Enabled = false
	env.state.SetMarkets([]types.Market{market})

	env.engine.Pass(context.Background(), "c1")
	assert.Empty(t, env.fake.Placed)
}

func TestPassUnknownMarketIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.engine.Pass(context.Background(), "missing")
	assert.Empty(t, env.fake.Placed)
}

func TestPassFallsBackToDefaultProfile(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)

	market := testutil.Market("c1")
	market.ParamType = "exotic"
	env.state.SetMarkets([]types.Market{market})

	env.engine.Pass(context.Background(), "c1")
	assert.Len(t, env.fake.PlacedFor("c1-yes"), 1)
}

func TestPassSkipsWithoutAnyProfile(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)
	env.state.SetParams(map[string]types.ParamProfile{})

	env.engine.Pass(context.Background(), "c1")
	assert.Empty(t, env.fake.Placed)
}

func TestPassSkipsTokenWithoutBook(t *testing.T) {
	env := newTestEnv(t)

	env.engine.Pass(context.Background(), "c1")
	assert.Empty(t, env.fake.Placed)
}

func TestOnBookUpdateUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	env.engine.OnBookUpdate(context.Background(), "not-watched")

	env.engine.mu.Lock()
	defer env.engine.mu.Unlock()
	assert.Empty(t, env.engine.running)
}

func TestTriggerRunsPassAsynchronously(t *testing.T) {
	env := newTestEnv(t)
	env.setBook("c1-yes", 0.50, 0.52, 200)

	env.engine.Trigger(context.Background(), "c1")

	require.Eventually(t, func() bool {
		return len(env.fake.PlacedFor("c1-yes")) > 0
	}, time.Second, 5*time.Millisecond)

	// The running flag clears once the pass (and any queued follow-up)
	// drains.
	require.Eventually(t, func() bool {
		env.engine.mu.Lock()
		defer env.engine.mu.Unlock()
		return !env.engine.running["c1"]
	}, time.Second, 5*time.Millisecond)
}
