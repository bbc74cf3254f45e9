package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/circuitbreaker"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/pkg/retry"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *state.State) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	st := state.New()
	client, err := New(&Config{
		BaseURL:    server.URL,
		DataAPIURL: server.URL,
		Signer:     newTestSigner(t, ""),
		Merger:     &LogMerger{Logger: zap.NewNop()},
		State:      st,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)

	// No sleeping between attempts in tests.
	client.retry = retry.Config{MaxAttempts: 2, Delay: time.Millisecond, Backoff: 1}
	return client, st
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	ctx := context.Background()
	tests := []struct {
		name  string
		side  string
		price float64
		size  float64
	}{
		{"bad side", "HOLD", 0.50, 100},
		{"price below minimum", "BUY", 0.005, 100},
		{"price above maximum", "BUY", 0.995, 100},
		{"size below minimum", "BUY", 0.50, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.CreateOrder(ctx, "tok", tt.side, tt.price, tt.size, false)
			assert.NoError(t, err)
			assert.Nil(t, result)
		})
	}

	// Rejections never touch the network.
	assert.Equal(t, int64(0), calls.Load())
}

func TestCreateOrderSubmitsSignedOrder(t *testing.T) {
	type captured struct {
		headers  http.Header
		body     map[string]json.RawMessage
		inFlight bool
	}
	got := make(chan captured, 1)

	var client *Client
	var st *state.State
	client, st = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)

		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got <- captured{
			headers:  r.Header,
			body:     body,
			inFlight: st.IsInFlight(types.OpBuy, "123456"),
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"orderID": "o-1", "status": "live", "success": true,
		})
	}))

	result, err := client.CreateOrder(context.Background(), "123456", types.SideBuy, 0.52111119, 100.129, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "o-1", result.OrderID)
	assert.Equal(t, "live", result.Status)

	// Underscored header names bypass canonicalization on both ends.
	req := <-got
	assert.NotEmpty(t, req.headers.Get("POLY_SIGNATURE"))
	assert.Equal(t, "api-key", req.headers.Get("POLY_API_KEY"))
	assert.Equal(t, testAddress, req.headers.Get("POLY_ADDRESS"))

	var owner string
	require.NoError(t, json.Unmarshal(req.body["owner"], &owner))
	assert.Equal(t, "api-key", owner)

	var orderType string
	require.NoError(t, json.Unmarshal(req.body["orderType"], &orderType))
	assert.Equal(t, "GTC", orderType)

	var order SignedOrder
	require.NoError(t, json.Unmarshal(req.body["order"], &order))
	// Price quantizes to 4 decimals and size floors to 2 before signing:
	// 0.5211 * 100.12 * 1e6 and 100.12 * 1e6.
	assert.Equal(t, "52172532", order.MakerAmount)
	assert.Equal(t, "100120000", order.TakerAmount)

	// The buy op marker was held for the round trip and removed after.
	assert.True(t, req.inFlight)
	assert.False(t, st.IsInFlight(types.OpBuy, "123456"))
}

func TestCreateOrderSurfacesExchangeError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errorMsg": "not enough balance / allowance",
			"status":   types.ErrNotEnoughBalance,
		})
	}))

	_, err := client.CreateOrder(context.Background(), "123456", types.SideBuy, 0.50, 100, false)
	require.Error(t, err)

	var orderErr *types.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, types.ErrNotEnoughBalance, orderErr.Code)
}

func TestCreateOrderBreakerBlocksSubmission(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		MaxFailures: 1,
		Cooldown:    time.Hour,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)

	client, err := New(&Config{
		BaseURL:    server.URL,
		DataAPIURL: server.URL,
		Signer:     newTestSigner(t, ""),
		Merger:     &LogMerger{Logger: zap.NewNop()},
		State:      state.New(),
		Breaker:    breaker,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	client.retry = retry.Config{MaxAttempts: 1}

	_, err = client.CreateOrder(context.Background(), "123456", types.SideBuy, 0.50, 100, false)
	require.Error(t, err)
	before := calls.Load()

	// The breaker is open now; the next order never reaches the wire.
	result, err := client.CreateOrder(context.Background(), "123456", types.SideBuy, 0.50, 100, false)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, before, calls.Load())
}

func TestOpenOrdersNormalizesRemainders(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/orders", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("asset_id"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "1", "asset_id": "tok", "side": "BUY", "price": "0.50", "original_size": "100", "size_matched": "30"},
			{"id": "2", "asset_id": "tok", "side": "SELL", "price": "0.60", "original_size": "50", "size_matched": "50"},
			{"id": "3", "asset_id": "tok", "side": "BUY", "price": "bad", "original_size": "10", "size_matched": "0"},
		})
	}))

	orders, err := client.OpenOrders(context.Background(), "tok")
	require.NoError(t, err)

	// Fully matched and unparseable rows drop out.
	require.Len(t, orders, 1)
	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, 70.0, orders[0].Size)
	assert.Equal(t, 0.50, orders[0].Price)
}

func TestCancelAssetCancelsEachOpenOrder(t *testing.T) {
	var cancelled atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/data/orders":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"id": "1", "asset_id": "tok", "side": "BUY", "price": "0.50", "original_size": "100", "size_matched": "0"},
				{"id": "2", "asset_id": "tok", "side": "SELL", "price": "0.60", "original_size": "50", "size_matched": "0"},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/order":
			cancelled.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))

	require.NoError(t, client.CancelAsset(context.Background(), "tok"))
	assert.Equal(t, int64(2), cancelled.Load())
}

func TestOrderBookSortsAndFallsBackEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bids": []map[string]string{{"price": "0.48", "size": "10"}, {"price": "0.50", "size": "20"}},
			"asks": []map[string]string{{"price": "0.54", "size": "10"}, {"price": "0.52", "size": "20"}},
		})
	}))

	book := client.OrderBook(context.Background(), "tok")
	require.Len(t, book.Bids, 2)
	assert.Equal(t, 0.50, book.Bids[0].Price)
	assert.Equal(t, 0.52, book.Asks[0].Price)
	assert.False(t, book.Timestamp.IsZero())

	broken, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	book = broken.OrderBook(context.Background(), "tok")
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
	assert.False(t, book.Timestamp.IsZero())
}

func TestPositionsConvertsBaseUnits(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, testAddress, r.URL.Query().Get("user"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"asset": "tok", "size": 120.5, "avgPrice": 0.55},
		})
	}))

	positions, err := client.Positions(context.Background())
	require.NoError(t, err)

	pos := positions["tok"]
	assert.Equal(t, 120.5, pos.Size)
	assert.Equal(t, int64(120_500_000), pos.SizeBase)
	assert.Equal(t, 0.55, pos.AvgPrice)
}

func TestTickSizeFallsBackOnFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	assert.Equal(t, 0.01, client.TickSize(context.Background(), "tok"))
}

func TestTickSizeReadsMinimum(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tick-size", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"minimum_tick_size": 0.001})
	}))

	assert.Equal(t, 0.001, client.TickSize(context.Background(), "tok"))
}
