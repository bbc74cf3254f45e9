// Package strategy drives the per-market trading pass: merge check, then
// for each outcome token the sell side (stop-loss or take-profit) followed
// by the buy side behind the composite risk gate.
package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/order"
	"github.com/mmaker/polymarket-mm/internal/position"
	"github.com/mmaker/polymarket-mm/internal/risk"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/pkg/mathutil"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

const (
	// depthRange bounds the liquidity scan to levels within 10% of the
	// top of book.
	depthRange = 0.10

	defaultTickSize = 0.01
	defaultProfile  = "default"
)

// Engine runs trading passes. A market is never re-entered while its
// previous pass is outstanding; a trigger arriving mid-pass queues exactly
// one follow-up pass.
type Engine struct {
	st        *state.State
	data      *marketdata.Aggregator
	orders    *order.Manager
	positions *position.Manager
	risk      *risk.Manager
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]bool
	pending map[string]bool
}

// Config holds construction parameters for the Engine.
type Config struct {
	State     *state.State
	Data      *marketdata.Aggregator
	Orders    *order.Manager
	Positions *position.Manager
	Risk      *risk.Manager
	Logger    *zap.Logger
}

// NewEngine creates the strategy engine.
func NewEngine(cfg *Config) *Engine {
	return &Engine{
		st:        cfg.State,
		data:      cfg.Data,
		orders:    cfg.Orders,
		positions: cfg.Positions,
		risk:      cfg.Risk,
		logger:    cfg.Logger,
		running:   make(map[string]bool),
		pending:   make(map[string]bool),
	}
}

// OnBookUpdate is the market-stream trigger: resolve the token's market and
// schedule a pass.
func (e *Engine) OnBookUpdate(ctx context.Context, tokenID string) {
	market, ok := e.st.MarketForToken(tokenID)
	if !ok {
		return
	}
	e.Trigger(ctx, market.ConditionID)
}

// Trigger schedules a serialized pass for the market. If one is already
// running, a single follow-up is queued instead of stacking goroutines.
func (e *Engine) Trigger(ctx context.Context, conditionID string) {
	e.mu.Lock()
	if e.running[conditionID] {
		e.pending[conditionID] = true
		e.mu.Unlock()
		return
	}
	e.running[conditionID] = true
	e.mu.Unlock()

	go func() {
		for {
			e.Pass(ctx, conditionID)

			e.mu.Lock()
			if e.pending[conditionID] && ctx.Err() == nil {
				e.pending[conditionID] = false
				e.mu.Unlock()
				continue
			}
			e.running[conditionID] = false
			e.mu.Unlock()
			return
		}
	}()
}

// Pass runs one full trading pass for a market.
func (e *Engine) Pass(ctx context.Context, conditionID string) {
	started := time.Now()
	defer func() {
		PassDurationSeconds.Observe(time.Since(started).Seconds())
	}()
	PassesTotal.Inc()

	market, ok := e.st.Market(conditionID)
	if !ok {
		e.logger.Warn("pass-skipped-unknown-market", zap.String("condition_id", conditionID))
		return
	}
	if !market.Enabled {
		return
	}

	profile, ok := e.resolveProfile(market)
	if !ok {
		e.logger.Warn("pass-skipped-missing-profile",
			zap.String("condition_id", conditionID),
			zap.String("param_type", market.ParamType))
		return
	}

	if err := e.positions.Merge(ctx, conditionID, market.NegRisk); err != nil {
		e.logger.Error("merge-attempt-failed",
			zap.String("condition_id", conditionID),
			zap.Error(err))
	}

	knobs := risk.ResolveKnobs(market, profile)
	e.processToken(ctx, market, profile, knobs, market.Token1, market.Token2)
	e.processToken(ctx, market, profile, knobs, market.Token2, market.Token1)
}

func (e *Engine) resolveProfile(market types.Market) (types.ParamProfile, bool) {
	name := market.ParamType
	if name == "" {
		name = defaultProfile
	}
	if profile, ok := e.st.Params(name); ok {
		return profile, true
	}
	return e.st.Params(defaultProfile)
}

func (e *Engine) processToken(ctx context.Context, market types.Market, profile types.ParamProfile, knobs risk.Knobs, tokenID, otherTokenID string) {
	if tokenID == "" {
		return
	}

	depth, ok := e.data.Depth(tokenID, 0, depthRange)
	if !ok {
		return
	}

	pos := e.positions.Get(tokenID)
	otherPos := e.positions.Get(otherTokenID)

	buyAmount, sellAmount := e.risk.CalculateOrderSize(pos.Size, otherPos.Size, knobs)

	if sellAmount > 0 && pos.Size > 0 && pos.AvgPrice > 0 {
		if e.runSellSide(ctx, market, profile, tokenID, otherTokenID, pos, depth) {
			return
		}
	}

	if buyAmount > 0 {
		e.runBuySide(ctx, market, profile, knobs, tokenID, pos, depth, buyAmount)
	}
}

// runSellSide quotes the exit. Returns true when a stop-loss fired and the
// token is done for this pass.
func (e *Engine) runSellSide(ctx context.Context, market types.Market, profile types.ParamProfile, tokenID, otherTokenID string, pos types.Position, depth types.BookDepth) bool {
	spreadPct := mathutil.SpreadPct(depth.BestBid, depth.BestAsk)

	stopped, pnlPct := e.risk.CheckStopLoss(pos, depth.MidPrice, spreadPct, profile)
	if stopped {
		e.executeStopLoss(ctx, market, profile, tokenID, otherTokenID, pos, depth.BestBid, pnlPct)
		return true
	}

	tick := market.TickSize
	if tick <= 0 {
		tick = defaultTickSize
	}
	sellPrice := e.risk.TakeProfitPrice(pos.AvgPrice, depth.BestAsk, tick, profile)
	e.orders.PlaceSell(ctx, tokenID, sellPrice, pos.Size, market.NegRisk)
	return false
}

func (e *Engine) executeStopLoss(ctx context.Context, market types.Market, profile types.ParamProfile, tokenID, otherTokenID string, pos types.Position, exitPrice, pnlPct float64) {
	e.logger.Warn("stop-loss-exit",
		zap.String("condition_id", market.ConditionID),
		zap.String("token_id", tokenID),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl_pct", pnlPct))

	e.orders.EmergencySell(ctx, tokenID, exitPrice, pos.Size, market.NegRisk)

	outcome := market.Answer1
	if tokenID == market.Token2 {
		outcome = market.Answer2
	}

	sleepPeriod := time.Duration(profile.SleepPeriodHours * float64(time.Hour))
	event := types.RiskEvent{
		ID:        uuid.NewString(),
		Time:      time.Now().UTC(),
		EventType: types.RiskEventStopLoss,
		Question:  market.Question,
		TokenID:   tokenID,
		Outcome:   outcome,
		ExitPrice: exitPrice,
		PnLPct:    pnlPct,
		SleepTill: time.Now().UTC().Add(sleepPeriod),
	}
	if err := e.positions.SaveRiskEvent(market.ConditionID, event); err != nil {
		e.logger.Error("risk-event-persist-failed",
			zap.String("condition_id", market.ConditionID),
			zap.Error(err))
	}

	// The emergency sell must survive; only the opposite token's quotes
	// are pulled.
	if otherTokenID != "" {
		if err := e.orders.CancelAllForToken(ctx, otherTokenID); err != nil {
			e.logger.Error("stop-loss-cancel-failed",
				zap.String("token_id", otherTokenID),
				zap.Error(err))
		}
	}
}

func (e *Engine) runBuySide(ctx context.Context, market types.Market, profile types.ParamProfile, knobs risk.Knobs, tokenID string, pos types.Position, depth types.BookDepth, buyAmount float64) {
	if !e.risk.ShouldEnter(tokenID, market, profile, depth, knobs) {
		if err := e.orders.CancelAllForToken(ctx, tokenID); err != nil {
			e.logger.Error("risk-off-cancel-failed",
				zap.String("token_id", tokenID),
				zap.Error(err))
		}
		return
	}

	if !e.risk.CheckPositionLimit(pos.Size, buyAmount, knobs.MaxSize) {
		return
	}

	tick := market.TickSize
	if tick <= 0 {
		tick = defaultTickSize
	}
	entry, ok := e.risk.EntryPrice(depth.BestBid, depth.BestAsk, tick)
	if !ok {
		return
	}

	if !e.risk.CheckTotalExposure(entry * buyAmount) {
		return
	}
	if !e.risk.CheckPriceDeviation(tokenID, entry) {
		return
	}

	e.orders.PlaceBuy(ctx, tokenID, entry, buyAmount, market.NegRisk)
}
