// Package risk holds the guard rails: order sizing, stop-loss and
// take-profit arithmetic, entry pricing, liquidity and book-ratio checks,
// position and exposure limits, and the persisted cool-down lookup.
package risk

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/position"
	"github.com/mmaker/polymarket-mm/pkg/mathutil"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

const (
	// maxAbsolutePosition caps any single token position regardless of
	// sheet configuration.
	maxAbsolutePosition = 250.0

	// defaultMinLiquidity is the smallest acceptable top-of-book size.
	defaultMinLiquidity = 100.0

	// defaultMaxDeviation bounds how far an order price may sit from the
	// current mid, as a fraction.
	defaultMaxDeviation = 0.05

	volatilityWindow = 3 * time.Hour
)

// Manager evaluates every pre-trade check.
type Manager struct {
	data      *marketdata.Aggregator
	positions *position.Manager
	logger    *zap.Logger

	minLiquidity     float64
	minBookRatio     float64 // 0 disables the ratio check
	maxDeviation     float64
	maxTotalExposure float64
}

// Config holds construction parameters for the Manager.
type Config struct {
	Data             *marketdata.Aggregator
	Positions        *position.Manager
	Logger           *zap.Logger
	MinLiquidity     float64
	MinBookRatio     float64
	MaxDeviation     float64
	MaxTotalExposure float64
}

// NewManager creates the risk manager, filling zero knobs with defaults.
func NewManager(cfg *Config) *Manager {
	m := &Manager{
		data:             cfg.Data,
		positions:        cfg.Positions,
		logger:           cfg.Logger,
		minLiquidity:     cfg.MinLiquidity,
		minBookRatio:     cfg.MinBookRatio,
		maxDeviation:     cfg.MaxDeviation,
		maxTotalExposure: cfg.MaxTotalExposure,
	}
	if m.minLiquidity == 0 {
		m.minLiquidity = defaultMinLiquidity
	}
	if m.maxDeviation == 0 {
		m.maxDeviation = defaultMaxDeviation
	}
	return m
}

// Knobs are the effective per-market sizing parameters after overrides.
type Knobs struct {
	TradeSize float64
	MaxSize   float64
	MinSize   float64
	MaxSpread float64
}

// ResolveKnobs merges per-market overrides over the profile defaults.
// TradeSize backstops a missing MaxSize.
func ResolveKnobs(market types.Market, profile types.ParamProfile) Knobs {
	k := Knobs{
		TradeSize: profile.TradeSize,
		MaxSize:   profile.MaxSize,
		MinSize:   profile.MinSize,
		MaxSpread: profile.MaxSpread,
	}
	if market.TradeSize > 0 {
		k.TradeSize = market.TradeSize
	}
	if market.MaxSize > 0 {
		k.MaxSize = market.MaxSize
	}
	if market.MinSize > 0 {
		k.MinSize = market.MinSize
	}
	if market.MaxSpread > 0 {
		k.MaxSpread = market.MaxSpread
	}
	if k.MaxSize <= 0 {
		k.MaxSize = k.TradeSize
	}
	return k
}

// CalculateOrderSize returns how much to quote on each side. The buy side
// fills the whole remaining capacity toward maxSize, only while the opposite
// token's position stays under minSize; the sell side exits the whole
// current position.
func (m *Manager) CalculateOrderSize(myPos, otherPos float64, knobs Knobs) (buy, sell float64) {
	sell = myPos

	if myPos >= knobs.MaxSize || otherPos >= knobs.MinSize {
		return 0, sell
	}

	buy = knobs.MaxSize - myPos
	if buy < knobs.MinSize {
		buy = 0
	}
	return buy, sell
}

// CheckStopLoss reports whether the position breaches the stop-loss
// threshold. The spread gate keeps the bot from dumping into a wide book
// where the mark price is unreliable.
func (m *Manager) CheckStopLoss(pos types.Position, mid, spreadPct float64, profile types.ParamProfile) (bool, float64) {
	if pos.Size <= 0 || pos.AvgPrice <= 0 {
		return false, 0
	}

	pnlPct := mathutil.PnLPct(pos.AvgPrice, mid)
	triggered := pnlPct < profile.StopLossThreshold && spreadPct <= profile.SpreadThreshold
	if triggered {
		StopLossTriggersTotal.Inc()
		m.logger.Warn("stop-loss-triggered",
			zap.Float64("pnl_pct", pnlPct),
			zap.Float64("avg_price", pos.AvgPrice),
			zap.Float64("mid", mid),
			zap.Float64("spread_pct", spreadPct))
	}
	return triggered, pnlPct
}

// CheckVolatility reports whether the market is calm enough to enter. Live
// history is preferred; the sheet's 3-hour column backstops a cold start.
func (m *Manager) CheckVolatility(tokenID string, market types.Market, profile types.ParamProfile) bool {
	if profile.VolatilityThreshold <= 0 {
		return true
	}

	vol, ok := m.data.Volatility(tokenID, volatilityWindow)
	if !ok {
		vol = market.Volatility3h
	}

	if vol > profile.VolatilityThreshold {
		GuardRejectionsTotal.WithLabelValues("volatility").Inc()
		m.logger.Debug("entry-blocked-volatility",
			zap.String("token_id", tokenID),
			zap.Float64("volatility", vol),
			zap.Float64("threshold", profile.VolatilityThreshold))
		return false
	}
	return true
}

// TakeProfitPrice computes the sell price for a profitable exit: avg moved
// up by the threshold, never below the current best ask, rounded up to the
// tick grid.
func (m *Manager) TakeProfitPrice(avgPrice, bestAsk, tickSize float64, profile types.ParamProfile) float64 {
	decimals := mathutil.TickDecimals(tickSize)

	tp := avgPrice * (1 + profile.TakeProfitThreshold/100)
	tp, _ = mathutil.RoundUp(tp, decimals)

	if bestAsk > tp {
		tp = bestAsk
	}
	tp, _ = mathutil.RoundUp(tp, decimals)
	return tp
}

// EntryPrice computes the bid to quote: one tick above the best bid, capped
// at mid, on the tick grid. ok is false when the price leaves the
// [0.1, 0.9) entry band.
func (m *Manager) EntryPrice(bestBid, bestAsk, tickSize float64) (float64, bool) {
	decimals := mathutil.TickDecimals(tickSize)
	mid := mathutil.MidPrice(bestBid, bestAsk)

	bid := bestBid + tickSize
	if bid > mid {
		bid = mid
	}
	bid, _ = mathutil.RoundDown(bid, decimals)

	if bid < 0.1 || bid >= 0.9 {
		GuardRejectionsTotal.WithLabelValues("entry_band").Inc()
		return 0, false
	}
	return bid, true
}

// CheckLiquidity requires a tight spread and meaningful size on both best
// levels. maxSpread comes from the sheet in percent points.
func (m *Manager) CheckLiquidity(depth types.BookDepth, maxSpread float64) bool {
	if depth.Spread > maxSpread/100 {
		GuardRejectionsTotal.WithLabelValues("spread").Inc()
		return false
	}
	if depth.BestBidSize < m.minLiquidity || depth.BestAskSize < m.minLiquidity {
		GuardRejectionsTotal.WithLabelValues("liquidity").Inc()
		return false
	}
	return true
}

// CheckBookRatio requires bid depth to cover askDepth by the configured
// ratio. A zero ratio disables the check.
func (m *Manager) CheckBookRatio(depth types.BookDepth) bool {
	if m.minBookRatio <= 0 {
		return true
	}
	if depth.LiquidityRatio < m.minBookRatio {
		GuardRejectionsTotal.WithLabelValues("book_ratio").Inc()
		return false
	}
	return true
}

// CheckPositionLimit bounds the post-fill position by the configured and
// absolute caps.
func (m *Manager) CheckPositionLimit(currentPos, orderSize, maxSize float64) bool {
	next := currentPos + orderSize
	if next > maxSize || next > maxAbsolutePosition {
		GuardRejectionsTotal.WithLabelValues("position_limit").Inc()
		m.logger.Debug("entry-blocked-position-limit",
			zap.Float64("current", currentPos),
			zap.Float64("order_size", orderSize),
			zap.Float64("max_size", maxSize))
		return false
	}
	return true
}

// CheckCooldown reports whether the market is still sleeping off a risk
// event.
func (m *Manager) CheckCooldown(conditionID string) bool {
	event, ok := m.positions.LoadRiskEvent(conditionID)
	if !ok {
		return true
	}
	if event.Cooling(time.Now()) {
		GuardRejectionsTotal.WithLabelValues("cooldown").Inc()
		m.logger.Debug("entry-blocked-cooldown",
			zap.String("condition_id", conditionID),
			zap.Time("sleep_till", event.SleepTill))
		return false
	}
	return true
}

// CheckPriceDeviation rejects a quote that strays too far from the current
// mid; a stale or fat-fingered price must not reach the book.
func (m *Manager) CheckPriceDeviation(tokenID string, price float64) bool {
	bid, ask, ok := m.data.BestBidAsk(tokenID)
	if !ok {
		return true
	}
	mid := mathutil.MidPrice(bid, ask)
	if mid <= 0 {
		return true
	}
	if math.Abs(price-mid)/mid > m.maxDeviation {
		GuardRejectionsTotal.WithLabelValues("price_deviation").Inc()
		m.logger.Warn("quote-deviates-from-mid",
			zap.String("token_id", tokenID),
			zap.Float64("price", price),
			zap.Float64("mid", mid))
		return false
	}
	return true
}

// CheckTotalExposure bounds the account-wide long exposure. A zero limit
// disables the check.
func (m *Manager) CheckTotalExposure(orderNotional float64) bool {
	if m.maxTotalExposure <= 0 {
		return true
	}
	if m.positions.TotalExposure()+orderNotional > m.maxTotalExposure {
		GuardRejectionsTotal.WithLabelValues("total_exposure").Inc()
		return false
	}
	return true
}

// ShouldEnter is the composite entry gate: cool-down over, volatility calm,
// book liquid, depth ratio acceptable.
func (m *Manager) ShouldEnter(tokenID string, market types.Market, profile types.ParamProfile, depth types.BookDepth, knobs Knobs) bool {
	if !m.CheckCooldown(market.ConditionID) {
		return false
	}
	if !m.CheckVolatility(tokenID, market, profile) {
		return false
	}
	if !m.CheckLiquidity(depth, knobs.MaxSpread) {
		return false
	}
	return m.CheckBookRatio(depth)
}
