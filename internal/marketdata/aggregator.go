// Package marketdata maintains the in-memory view of the markets we trade:
// per-token order books, bounded mid-price and trade histories, and the
// derived statistics (depth, volatility, price change, VWAP) the strategy
// and risk checks consume.
package marketdata

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/pkg/mathutil"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

const (
	priceHistorySize = 1000
	tradeHistorySize = 500

	// minVolatilitySamples is the minimum number of mid prices in the
	// window before a volatility figure is reported.
	minVolatilitySamples = 10
)

type pricePoint struct {
	price float64
	ts    time.Time
}

// Aggregator is the market-data store. All access is guarded by one mutex;
// queries copy values out.
type Aggregator struct {
	mu sync.Mutex

	books        map[string]types.OrderBook
	priceHistory map[string]*ring[pricePoint]
	tradeHistory map[string]*ring[types.TradeRecord]
	lastUpdate   map[string]time.Time

	logger *zap.Logger
	now    func() time.Time // injectable clock for tests
}

// New creates an empty aggregator.
func New(logger *zap.Logger) *Aggregator {
	return &Aggregator{
		books:        make(map[string]types.OrderBook),
		priceHistory: make(map[string]*ring[pricePoint]),
		tradeHistory: make(map[string]*ring[types.TradeRecord]),
		lastUpdate:   make(map[string]time.Time),
		logger:       logger,
		now:          time.Now,
	}
}

// UpdateOrderBook replaces the book for a token from wire-format levels.
// Bids are sorted descending and asks ascending; the mid price is appended
// to the bounded price history and the freshness stamp advances.
func (a *Aggregator) UpdateOrderBook(tokenID string, bids, asks []types.PriceLevel) {
	parsedBids := parseLevels(bids)
	parsedAsks := parseLevels(asks)

	sort.Slice(parsedBids, func(i, j int) bool { return parsedBids[i].Price > parsedBids[j].Price })
	sort.Slice(parsedAsks, func(i, j int) bool { return parsedAsks[i].Price < parsedAsks[j].Price })

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.books[tokenID] = types.OrderBook{Bids: parsedBids, Asks: parsedAsks, Timestamp: now}

	if len(parsedBids) > 0 && len(parsedAsks) > 0 {
		mid := mathutil.MidPrice(parsedBids[0].Price, parsedAsks[0].Price)
		hist, ok := a.priceHistory[tokenID]
		if !ok {
			hist = newRing[pricePoint](priceHistorySize)
			a.priceHistory[tokenID] = hist
		}
		hist.push(pricePoint{price: mid, ts: now})
	}

	a.lastUpdate[tokenID] = now

	BookUpdatesTotal.Inc()
	BooksTracked.Set(float64(len(a.books)))
}

// RecordTrade appends one observed trade to the token's bounded history.
func (a *Aggregator) RecordTrade(tokenID string, price, size float64, side string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hist, ok := a.tradeHistory[tokenID]
	if !ok {
		hist = newRing[types.TradeRecord](tradeHistorySize)
		a.tradeHistory[tokenID] = hist
	}
	hist.push(types.TradeRecord{Price: price, Size: size, Side: side, Timestamp: a.now()})

	TradesRecordedTotal.Inc()
}

// OrderBook returns a copy of the token's book, or false when none is held.
func (a *Aggregator) OrderBook(tokenID string) (types.OrderBook, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	book, ok := a.books[tokenID]
	if !ok {
		return types.OrderBook{}, false
	}

	out := types.OrderBook{
		Bids:      append([]types.Level(nil), book.Bids...),
		Asks:      append([]types.Level(nil), book.Asks...),
		Timestamp: book.Timestamp,
	}
	return out, true
}

// BestBidAsk returns the top-of-book prices; ok is false when either side
// is empty.
func (a *Aggregator) BestBidAsk(tokenID string) (bid, ask float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	book, exists := a.books[tokenID]
	if !exists || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0, 0, false
	}
	return book.Bids[0].Price, book.Asks[0].Price, true
}

// Depth analyzes liquidity within pctRange of the top of book, counting only
// levels of at least minSize. ok is false when either book side is empty.
func (a *Aggregator) Depth(tokenID string, minSize, pctRange float64) (types.BookDepth, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	book, exists := a.books[tokenID]
	if !exists || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return types.BookDepth{}, false
	}

	bestBid := book.Bids[0]
	bestAsk := book.Asks[0]

	bidThreshold := bestBid.Price * (1 - pctRange)
	askThreshold := bestAsk.Price * (1 + pctRange)

	var bidDepth, askDepth float64
	for _, lvl := range book.Bids {
		if lvl.Price >= bidThreshold && lvl.Size >= minSize {
			bidDepth += lvl.Size
		}
	}
	for _, lvl := range book.Asks {
		if lvl.Price <= askThreshold && lvl.Size >= minSize {
			askDepth += lvl.Size
		}
	}

	secondBid := bestBid.Price
	if len(book.Bids) > 1 {
		secondBid = book.Bids[1].Price
	}
	secondAsk := bestAsk.Price
	if len(book.Asks) > 1 {
		secondAsk = book.Asks[1].Price
	}

	depth := types.BookDepth{
		BestBid:        bestBid.Price,
		BestAsk:        bestAsk.Price,
		BestBidSize:    bestBid.Size,
		BestAskSize:    bestAsk.Size,
		SecondBestBid:  secondBid,
		SecondBestAsk:  secondAsk,
		BidDepth:       bidDepth,
		AskDepth:       askDepth,
		Spread:         bestAsk.Price - bestBid.Price,
		MidPrice:       mathutil.MidPrice(bestBid.Price, bestAsk.Price),
		LiquidityRatio: mathutil.SafeDivide(bidDepth, askDepth, 0),
	}
	return depth, true
}

// Volatility returns the standard deviation of simple returns over mids in
// the window, as a percent. ok is false with fewer than 10 samples.
func (a *Aggregator) Volatility(tokenID string, window time.Duration) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hist, exists := a.priceHistory[tokenID]
	if !exists || hist.len() < minVolatilitySamples {
		return 0, false
	}

	cutoff := a.now().Add(-window)
	var prices []float64
	for _, p := range hist.items() {
		if p.ts.After(cutoff) {
			prices = append(prices, p.price)
		}
	}

	if len(prices) < minVolatilitySamples {
		return 0, false
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0, false
	}

	return stddev(returns) * 100, true
}

// PriceChange returns the percent move between the first and last mid in the
// window. ok is false with fewer than 2 samples.
func (a *Aggregator) PriceChange(tokenID string, window time.Duration) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hist, exists := a.priceHistory[tokenID]
	if !exists || hist.len() < 2 {
		return 0, false
	}

	cutoff := a.now().Add(-window)
	var recent []float64
	for _, p := range hist.items() {
		if p.ts.After(cutoff) {
			recent = append(recent, p.price)
		}
	}

	if len(recent) < 2 || recent[0] == 0 {
		return 0, false
	}

	return (recent[len(recent)-1] - recent[0]) / recent[0] * 100, true
}

// RecentTrades returns trades newer than the window cutoff, oldest first.
func (a *Aggregator) RecentTrades(tokenID string, window time.Duration) []types.TradeRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	hist, exists := a.tradeHistory[tokenID]
	if !exists {
		return nil
	}

	cutoff := a.now().Add(-window)
	var out []types.TradeRecord
	for _, t := range hist.items() {
		if t.Timestamp.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// VWAP returns the volume-weighted average trade price over the window.
// ok is false when there is no volume.
func (a *Aggregator) VWAP(tokenID string, window time.Duration) (float64, bool) {
	trades := a.RecentTrades(tokenID, window)

	var notional, volume float64
	for _, t := range trades {
		notional += t.Price * t.Size
		volume += t.Size
	}
	if volume == 0 {
		return 0, false
	}
	return notional / volume, true
}

// IsFresh reports whether the token's book was updated within maxAge.
func (a *Aggregator) IsFresh(tokenID string, maxAge time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	last, ok := a.lastUpdate[tokenID]
	if !ok {
		return false
	}
	return a.now().Sub(last) <= maxAge
}

// ClearStale drops order books and freshness stamps older than maxAge.
// Histories are left alone; the rings bound their own memory.
func (a *Aggregator) ClearStale(maxAge time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-maxAge)
	var cleared int
	for tokenID, ts := range a.lastUpdate {
		if ts.Before(cutoff) {
			delete(a.books, tokenID)
			delete(a.lastUpdate, tokenID)
			cleared++
		}
	}

	if cleared > 0 {
		StaleBooksClearedTotal.Add(float64(cleared))
		BooksTracked.Set(float64(len(a.books)))
		a.logger.Debug("cleared-stale-books", zap.Int("count", cleared))
	}
}

func parseLevels(levels []types.PriceLevel) []types.Level {
	out := make([]types.Level, 0, len(levels))
	for _, lvl := range levels {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(lvl.Size, 64)
		if err != nil {
			continue
		}
		out = append(out, types.Level{Price: price, Size: size})
	}
	return out
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))

	return math.Sqrt(variance)
}
