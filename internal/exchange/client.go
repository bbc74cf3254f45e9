package exchange

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/circuitbreaker"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/pkg/cache"
	"github.com/mmaker/polymarket-mm/pkg/retry"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

const (
	// Hard bounds for any price placed on the book.
	minOrderPrice = 0.01
	maxOrderPrice = 0.99
	minOrderSize  = 1.0

	defaultTickSize = 0.01
	tickSizeTTL     = time.Hour

	restTimeout = 10 * time.Second
)

// Config holds construction parameters for the Client.
type Config struct {
	BaseURL    string // CLOB REST base
	DataAPIURL string // data API base (positions)
	Signer     *Signer
	Merger     Merger
	State      *state.State
	Breaker    *circuitbreaker.Breaker // optional; nil disables the guard
	Logger     *zap.Logger
}

// Client is the unit-normalized CLOB wrapper. Failed calls are absorbed by
// the retry schedule and surface as neutral results; no call panics.
type Client struct {
	rest    *resty.Client
	data    *resty.Client
	signer  *Signer
	merger  Merger
	st      *state.State
	ticks   cache.Cache
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
	retry   retry.Config
}

// New creates the CLOB client. Tick sizes are cached for an hour.
func New(cfg *Config) (*Client, error) {
	ticks, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create tick-size cache: %w", err)
	}

	return &Client{
		rest:    resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(restTimeout),
		data:    resty.New().SetBaseURL(cfg.DataAPIURL).SetTimeout(restTimeout),
		signer:  cfg.Signer,
		merger:  cfg.Merger,
		st:      cfg.State,
		ticks:   ticks,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
		retry:   retry.DefaultConfig(cfg.Logger),
	}, nil
}

type orderRequest struct {
	Order     *SignedOrder `json:"order"`
	Owner     string       `json:"owner"`
	OrderType string       `json:"orderType"`
}

type orderResponse struct {
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Error   string `json:"errorMsg"`
}

// CreateOrder validates, quantizes, signs and submits one limit order.
// Invalid inputs warn and return a nil result without touching the network.
func (c *Client) CreateOrder(ctx context.Context, tokenID, side string, price, size float64, negRisk bool) (*types.OrderResult, error) {
	if side != types.SideBuy && side != types.SideSell {
		c.logger.Warn("order-rejected-bad-side",
			zap.String("token_id", tokenID),
			zap.String("side", side))
		return nil, nil
	}
	if price < minOrderPrice || price > maxOrderPrice {
		c.logger.Warn("order-rejected-price-out-of-range",
			zap.String("token_id", tokenID),
			zap.Float64("price", price))
		return nil, nil
	}
	if size < minOrderSize {
		c.logger.Warn("order-rejected-size-too-small",
			zap.String("token_id", tokenID),
			zap.Float64("size", size))
		return nil, nil
	}
	if c.breaker != nil && !c.breaker.Allow() {
		c.logger.Warn("order-blocked-breaker-open",
			zap.String("token_id", tokenID),
			zap.String("side", side))
		return nil, nil
	}

	price, _ = decimal.NewFromFloat(price).Round(4).Float64()
	size, _ = decimal.NewFromFloat(size).RoundFloor(2).Float64()

	// The marker is held for the whole REST round trip; the periodic
	// updater sweeps markers orphaned by a crashed call.
	op := types.OpBuy
	if side == types.SideSell {
		op = types.OpSell
	}
	c.st.AddInFlight(op, tokenID)
	defer c.st.RemoveInFlight(op, tokenID)

	signed, err := c.signer.SignOrder(tokenID, side, price, size, negRisk)
	if err != nil {
		c.logger.Error("order-sign-failed",
			zap.String("token_id", tokenID),
			zap.Error(err))
		return nil, err
	}

	body, err := json.Marshal(orderRequest{
		Order:     signed,
		Owner:     c.signer.APIKey(),
		OrderType: "GTC",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	resp, err := retry.DoValue(ctx, c.retry, "create-order", func() (*orderResponse, error) {
		return c.authedJSON(ctx, http.MethodPost, "/order", body)
	})
	if err != nil {
		OrderFailuresTotal.WithLabelValues(side).Inc()
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		return nil, err
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	OrdersPlacedTotal.WithLabelValues(side).Inc()
	c.logger.Info("order-placed",
		zap.String("token_id", tokenID),
		zap.String("side", side),
		zap.Float64("price", price),
		zap.Float64("size", size),
		zap.String("order_id", resp.OrderID))

	return &types.OrderResult{OrderID: resp.OrderID, Status: resp.Status}, nil
}

// CancelOrder cancels one order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("marshal cancel: %w", err)
	}

	err = retry.Do(ctx, c.retry, "cancel-order", func() error {
		_, callErr := c.authedJSON(ctx, http.MethodDelete, "/order", body)
		return callErr
	})
	if err != nil {
		return err
	}

	OrdersCancelledTotal.Inc()
	c.logger.Info("order-cancelled", zap.String("order_id", orderID))
	return nil
}

// CancelAsset lists the open orders for a token and cancels each one. The
// cancel in-flight marker covers the whole pass.
func (c *Client) CancelAsset(ctx context.Context, tokenID string) error {
	c.st.AddInFlight(types.OpCancel, tokenID)
	defer c.st.RemoveInFlight(types.OpCancel, tokenID)

	orders, err := c.OpenOrders(ctx, tokenID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range orders {
		if err := c.CancelOrder(ctx, order.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type wireOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
}

// OpenOrders returns the open orders on the account, filtered by token when
// tokenID is non-empty. Sizes are the unmatched remainders.
func (c *Client) OpenOrders(ctx context.Context, tokenID string) ([]types.OpenOrder, error) {
	path := "/data/orders"
	if tokenID != "" {
		path += "?asset_id=" + tokenID
	}

	wire, err := retry.DoValue(ctx, c.retry, "open-orders", func() ([]wireOrder, error) {
		headers, err := c.signer.AuthHeaders(http.MethodGet, "/data/orders", nil)
		if err != nil {
			return nil, err
		}

		var out []wireOrder
		resp, err := c.rest.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetResult(&out).
			Get(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("open orders: status %d: %s", resp.StatusCode(), resp.String())
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	orders := make([]types.OpenOrder, 0, len(wire))
	for _, w := range wire {
		price, err := strconv.ParseFloat(w.Price, 64)
		if err != nil {
			continue
		}
		original, err := strconv.ParseFloat(w.OriginalSize, 64)
		if err != nil {
			continue
		}
		matched, _ := strconv.ParseFloat(w.SizeMatched, 64)

		remaining := original - matched
		if remaining <= 0 {
			continue
		}

		orders = append(orders, types.OpenOrder{
			ID:      w.ID,
			AssetID: w.AssetID,
			Side:    w.Side,
			Price:   price,
			Size:    remaining,
		})
	}
	return orders, nil
}

type wireBook struct {
	Bids []types.PriceLevel `json:"bids"`
	Asks []types.PriceLevel `json:"asks"`
}

// OrderBook fetches the REST book snapshot for a token. Failures log and
// return an empty book; the caller cannot distinguish an empty market from
// an outage and must not need to.
func (c *Client) OrderBook(ctx context.Context, tokenID string) types.OrderBook {
	wire, err := retry.DoValue(ctx, c.retry, "order-book", func() (wireBook, error) {
		var out wireBook
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&out).
			Get("/book")
		if err != nil {
			return out, err
		}
		if resp.IsError() {
			return out, fmt.Errorf("order book: status %d", resp.StatusCode())
		}
		return out, nil
	})
	if err != nil {
		return types.OrderBook{Timestamp: time.Now()}
	}

	book := types.OrderBook{
		Bids:      parseWireLevels(wire.Bids),
		Asks:      parseWireLevels(wire.Asks),
		Timestamp: time.Now(),
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book
}

type wirePosition struct {
	Asset    string  `json:"asset"`
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avgPrice"`
}

// Positions fetches the on-chain position snapshot for the funder wallet,
// keyed by token id.
func (c *Client) Positions(ctx context.Context) (map[string]types.ChainPosition, error) {
	wire, err := retry.DoValue(ctx, c.retry, "positions", func() ([]wirePosition, error) {
		var out []wirePosition
		resp, err := c.data.R().
			SetContext(ctx).
			SetQueryParam("user", c.signer.funder).
			SetResult(&out).
			Get("/positions")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("positions: status %d", resp.StatusCode())
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	positions := make(map[string]types.ChainPosition, len(wire))
	for _, w := range wire {
		sizeBase := decimal.NewFromFloat(w.Size).
			Mul(decimal.NewFromInt(types.BaseUnits)).Round(0).IntPart()
		positions[w.Asset] = types.ChainPosition{
			AssetID:  w.Asset,
			Size:     w.Size,
			SizeBase: sizeBase,
			AvgPrice: w.AvgPrice,
		}
	}
	return positions, nil
}

// MergePositions burns offsetting YES/NO holdings back into collateral.
// amountBase is in base units.
func (c *Client) MergePositions(ctx context.Context, amountBase int64, conditionID string, negRisk bool) error {
	return c.merger.MergePositions(ctx, amountBase, conditionID, negRisk)
}

// TickSize returns the token's minimum tick, cached for an hour. Lookup
// failures fall back to the common 0.01 grid.
func (c *Client) TickSize(ctx context.Context, tokenID string) float64 {
	if v, ok := c.ticks.Get(tokenID); ok {
		if tick, ok := v.(float64); ok {
			return tick
		}
	}

	var out struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&out).
		Get("/tick-size")
	if err != nil || resp.IsError() || out.MinimumTickSize <= 0 {
		c.logger.Warn("tick-size-lookup-failed",
			zap.String("token_id", tokenID),
			zap.Error(err))
		return defaultTickSize
	}

	c.ticks.Set(tokenID, out.MinimumTickSize, tickSizeTTL)
	return out.MinimumTickSize
}

// authedJSON sends one signed JSON request to the CLOB and decodes the
// order-endpoint response shape.
func (c *Client) authedJSON(ctx context.Context, method, path string, body []byte) (*orderResponse, error) {
	headers, err := c.signer.AuthHeaders(method, path, body)
	if err != nil {
		return nil, err
	}

	var out orderResponse
	req := c.rest.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out)

	var resp *resty.Response
	switch method {
	case http.MethodPost:
		resp, err = req.Post(path)
	case http.MethodDelete:
		resp, err = req.Delete(path)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return nil, &types.OrderError{
			Code:    out.Status,
			Message: out.Error,
			OrderID: out.OrderID,
		}
	}
	return &out, nil
}

func parseWireLevels(levels []types.PriceLevel) []types.Level {
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
