package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/state"
)

// inspectHandler serves the read-only JSON views of bot state.
type inspectHandler struct {
	st     *state.State
	data   *marketdata.Aggregator
	logger *zap.Logger
}

func newInspectHandler(st *state.State, data *marketdata.Aggregator, logger *zap.Logger) *inspectHandler {
	return &inspectHandler{st: st, data: data, logger: logger}
}

// PositionView is one entry of the positions response.
type PositionView struct {
	TokenID  string  `json:"token_id"`
	Question string  `json:"question,omitempty"`
	Outcome  string  `json:"outcome,omitempty"`
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avg_price"`
	Exposure float64 `json:"exposure"`
}

// PositionsResponse is the body of GET /api/positions.
type PositionsResponse struct {
	Positions     []PositionView `json:"positions"`
	TotalExposure float64        `json:"total_exposure"`
}

// handlePositions serves GET /api/positions.
func (h *inspectHandler) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := h.st.Positions()

	views := make([]PositionView, 0, len(positions))
	var total float64
	for tokenID, pos := range positions {
		if pos.Size == 0 {
			continue
		}

		view := PositionView{
			TokenID:  tokenID,
			Size:     pos.Size,
			AvgPrice: pos.AvgPrice,
			Exposure: pos.Size * pos.AvgPrice,
		}
		if market, ok := h.st.MarketForToken(tokenID); ok {
			view.Question = market.Question
			view.Outcome = market.Answer1
			if tokenID == market.Token2 {
				view.Outcome = market.Answer2
			}
		}
		total += view.Exposure
		views = append(views, view)
	}

	h.writeJSON(w, http.StatusOK, PositionsResponse{Positions: views, TotalExposure: total})
}

// LevelView is one order book level in the response.
type LevelView struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookResponse is the body of GET /api/orderbook.
type OrderBookResponse struct {
	TokenID string      `json:"token_id"`
	Bids    []LevelView `json:"bids"`
	Asks    []LevelView `json:"asks"`
}

// handleOrderBook serves GET /api/orderbook?token_id=<id>.
func (h *inspectHandler) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		h.writeError(w, "missing required query parameter: token_id", http.StatusBadRequest)
		return
	}

	book, ok := h.data.OrderBook(tokenID)
	if !ok {
		h.writeError(w, "no order book for token", http.StatusNotFound)
		return
	}

	resp := OrderBookResponse{
		TokenID: tokenID,
		Bids:    make([]LevelView, 0, len(book.Bids)),
		Asks:    make([]LevelView, 0, len(book.Asks)),
	}
	for _, lvl := range book.Bids {
		resp.Bids = append(resp.Bids, LevelView{Price: lvl.Price, Size: lvl.Size})
	}
	for _, lvl := range book.Asks {
		resp.Asks = append(resp.Asks, LevelView{Price: lvl.Price, Size: lvl.Size})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *inspectHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response-encode-failed", zap.Error(err))
	}
}

func (h *inspectHandler) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
