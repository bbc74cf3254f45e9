package websocket

import (
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

// AccountSink receives decoded private account events.
type AccountSink interface {
	HandleFill(tokenID, side string, size, price float64)
	HandleOrder(tokenID, side string, size, price float64)
	HandleCancel(tokenID, orderID string)
}

// UserStreamConfig carries the construction parameters for the private
// account stream.
type UserStreamConfig struct {
	URL      string // ws base + /user
	APIKey   string
	Sink     AccountSink
	Logger   *zap.Logger
	Backoff  *Backoff
	OnStatus func(up bool)
}

// NewUserStream builds the private stream. The API key rides as a query
// parameter; the subscribe frame selects the user channel.
func NewUserStream(cfg UserStreamConfig) *Stream {
	logger := cfg.Logger.With(zap.String("stream", "user"))

	streamURL := cfg.URL + "?token=" + url.QueryEscape(cfg.APIKey)

	return NewStream(StreamConfig{
		Name:    "user",
		URL:     streamURL,
		Backoff: cfg.Backoff,
		Logger:  cfg.Logger,
		OnStatus: func(up bool) {
			if cfg.OnStatus != nil {
				cfg.OnStatus(up)
			}
		},
		OnConnect: func(conn *gws.Conn) error {
			return conn.WriteJSON(types.SubscribeFrame{Type: "subscribe", Channel: "user"})
		},
		OnMessage: func(data []byte) {
			var frame types.UserFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				MalformedFramesTotal.WithLabelValues("user").Inc()
				logger.Warn("malformed-user-frame", zap.Error(err))
				return
			}

			switch frame.Type {
			case "fill", "order":
				price, err := strconv.ParseFloat(frame.Price, 64)
				if err != nil {
					MalformedFramesTotal.WithLabelValues("user").Inc()
					logger.Warn("malformed-user-frame", zap.Error(err))
					return
				}
				size, err := strconv.ParseFloat(frame.Size, 64)
				if err != nil {
					MalformedFramesTotal.WithLabelValues("user").Inc()
					logger.Warn("malformed-user-frame", zap.Error(err))
					return
				}
				if frame.Type == "fill" {
					logger.Info("fill-received",
						zap.String("token_id", frame.Market),
						zap.String("side", frame.Side),
						zap.Float64("size", size),
						zap.Float64("price", price))
					cfg.Sink.HandleFill(frame.Market, frame.Side, size, price)
				} else {
					cfg.Sink.HandleOrder(frame.Market, frame.Side, size, price)
				}
			case "cancel":
				cfg.Sink.HandleCancel(frame.Market, frame.OrderID)
			}
		},
	})
}
