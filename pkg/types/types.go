// Package types holds the records shared across the trading engine:
// markets, parameter profiles, positions, resting orders and order books.
package types

import "time"

// Order sides as the CLOB API spells them.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// In-flight operation kinds tracked in shared state.
const (
	OpBuy    = "buy"
	OpSell   = "sell"
	OpCancel = "cancel"
)

// BaseUnits is the exchange's integer scaling factor: human units x 1e6.
const BaseUnits = 1_000_000

// Market is one binary market selected for trading. The two tokens are the
// complementary YES/NO outcomes sharing the condition id.
type Market struct {
	ConditionID string
	Token1      string
	Token2      string
	Question    string
	Answer1     string
	Answer2     string
	Enabled     bool
	ParamType   string
	NegRisk     bool
	MinSize     float64
	TradeSize   float64
	MaxSize     float64
	MaxSpread   float64
	TickSize    float64

	// Stat columns recomputed by the updater and written back to the sheet.
	Volatility3h float64
	BestBid      float64
	BestAsk      float64
}

// OppositeToken returns the other outcome token of the market, or "" when
// tokenID does not belong to it.
func (m *Market) OppositeToken(tokenID string) string {
	switch tokenID {
	case m.Token1:
		return m.Token2
	case m.Token2:
		return m.Token1
	default:
		return ""
	}
}

// HasToken reports whether tokenID is one of the market's outcome tokens.
func (m *Market) HasToken(tokenID string) bool {
	return tokenID == m.Token1 || tokenID == m.Token2
}

// ParamProfile is a named bundle of trading thresholds referenced by markets
// through their param_type column.
type ParamProfile struct {
	Name                string
	TradeSize           float64
	MaxSize             float64
	MinSize             float64
	MaxSpread           float64
	StopLossThreshold   float64 // negative percent, e.g. -2
	TakeProfitThreshold float64 // positive percent, e.g. +1
	VolatilityThreshold float64 // percent
	SpreadThreshold     float64 // percent
	SleepPeriodHours    float64 // cool-down after a stop-loss
}

// Position is the tracked holding for one token. Positions are long-only;
// size is quantized to 2 decimals and avg price to 4.
type Position struct {
	Size     float64
	AvgPrice float64
}

// RestingOrder is the locally tracked open order for one (token, side).
type RestingOrder struct {
	Size  float64
	Price float64
}

// TokenOrders holds the per-side resting orders for one token.
type TokenOrders struct {
	Buy  RestingOrder
	Sell RestingOrder
}

// Level is one parsed order-book price level.
type Level struct {
	Price float64
	Size  float64
}

// OrderBook is a point-in-time book snapshot: bids descending, asks
// ascending.
type OrderBook struct {
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// BestBid returns the top bid level, or false when the book side is empty.
func (b *OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, or false when the book side is empty.
func (b *OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// BookDepth is the aggregate liquidity picture within a price range around
// the top of book.
type BookDepth struct {
	BestBid        float64
	BestAsk        float64
	BestBidSize    float64
	BestAskSize    float64
	SecondBestBid  float64
	SecondBestAsk  float64
	BidDepth       float64
	AskDepth       float64
	Spread         float64
	MidPrice       float64
	LiquidityRatio float64 // bid depth / ask depth, 0 when ask depth is 0
}

// TradeRecord is one observed trade on the public stream.
type TradeRecord struct {
	Price     float64
	Size      float64
	Side      string
	Timestamp time.Time
}

// OpenOrder is one open order returned by the exchange, sizes already
// normalized to human units.
type OpenOrder struct {
	ID      string
	AssetID string
	Side    string
	Price   float64
	Size    float64
}

// ChainPosition is one position returned by the on-chain snapshot, size in
// human units; SizeBase preserves the raw base-unit amount for merges.
type ChainPosition struct {
	AssetID  string
	Size     float64
	SizeBase int64
	AvgPrice float64
}

// OrderResult is the exchange's descriptor for a successfully placed order.
type OrderResult struct {
	OrderID string
	Status  string
}
