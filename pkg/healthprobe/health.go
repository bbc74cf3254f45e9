// Package healthprobe backs the /health and /ready endpoints.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker provides health and readiness checks. Readiness combines
// the bootstrap flag with live stream health.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	// Streams reports (market, user) stream connectivity; nil means
	// streams do not gate readiness.
	Streams func() (bool, bool)
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse is the body of both probe endpoints.
type HealthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	MarketStream *bool  `json:"market_stream,omitempty"`
	UserStream   *bool  `json:"user_stream,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Health returns the liveness handler; it reports 200 whenever the process
// is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns the readiness handler: 200 once bootstrap finished and both
// streams are connected, 503 otherwise.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Uptime: time.Since(h.startTime).String()}

		if !h.ready.Load() {
			resp.Status = "not_ready"
			resp.Message = "application is starting"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		if h.Streams != nil {
			market, user := h.Streams()
			resp.MarketStream = &market
			resp.UserStream = &user
			if !market || !user {
				resp.Status = "not_ready"
				resp.Message = "stream disconnected"
				writeJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}

		resp.Status = "ready"
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
