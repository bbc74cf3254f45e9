package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesReceivedTotal counts inbound frames per stream.
	FramesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_ws_frames_received_total",
		Help: "Total number of websocket frames received",
	}, []string{"stream"})

	// ReconnectsTotal counts connection drops per stream.
	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_ws_reconnects_total",
		Help: "Total number of websocket reconnect attempts",
	}, []string{"stream"})

	// MalformedFramesTotal counts frames dropped because they failed to parse.
	MalformedFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_ws_malformed_frames_total",
		Help: "Total number of websocket frames dropped as malformed",
	}, []string{"stream"})
)
