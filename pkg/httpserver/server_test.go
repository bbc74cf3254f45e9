package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/internal/testutil"
	"github.com/mmaker/polymarket-mm/pkg/healthprobe"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *state.State, *marketdata.Aggregator) {
	t.Helper()

	st := state.New()
	data := marketdata.New(zap.NewNop())

	srv := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		State:         st,
		Data:          data,
	})

	server := httptest.NewServer(srv.server.Handler)
	t.Cleanup(server.Close)
	return server, st, data
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestPositionsEndpoint(t *testing.T) {
	server, st, _ := newTestServer(t)

	st.SetMarkets([]types.Market{testutil.Market("c1")})
	st.SetPosition("c1-yes", types.Position{Size: 100, AvgPrice: 0.50})
	st.SetPosition("c1-no", types.Position{Size: 0, AvgPrice: 0.40})

	var body PositionsResponse
	status := getJSON(t, server.URL+"/api/positions", &body)
	require.Equal(t, http.StatusOK, status)

	// Flat positions are omitted.
	require.Len(t, body.Positions, 1)
	pos := body.Positions[0]
	assert.Equal(t, "c1-yes", pos.TokenID)
	assert.Equal(t, "Yes", pos.Outcome)
	assert.Equal(t, "Test market c1", pos.Question)
	assert.Equal(t, 50.0, pos.Exposure)
	assert.Equal(t, 50.0, body.TotalExposure)
}

func TestOrderBookEndpoint(t *testing.T) {
	server, _, data := newTestServer(t)

	data.UpdateOrderBook("tok",
		[]types.PriceLevel{{Price: "0.48", Size: "100"}},
		[]types.PriceLevel{{Price: "0.52", Size: "150"}})

	var body OrderBookResponse
	status := getJSON(t, server.URL+"/api/orderbook?token_id=tok", &body)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "tok", body.TokenID)
	require.Len(t, body.Bids, 1)
	assert.Equal(t, 0.48, body.Bids[0].Price)
	assert.Equal(t, 150.0, body.Asks[0].Size)
}

func TestOrderBookEndpointErrors(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, server.URL+"/api/orderbook", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "token_id")

	status = getJSON(t, server.URL+"/api/orderbook?token_id=unknown", &body)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthRoutesWired(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
