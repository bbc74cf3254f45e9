package websocket

import (
	"strconv"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

// BookSink receives decoded public market events.
type BookSink interface {
	UpdateOrderBook(tokenID string, bids, asks []types.PriceLevel)
	RecordTrade(tokenID string, price, size float64, side string)
}

// MarketStreamConfig carries the construction parameters for the public
// book/trades stream.
type MarketStreamConfig struct {
	URL     string // ws base + /market
	Tokens  func() []string
	Sink    BookSink
	Logger  *zap.Logger
	Backoff *Backoff

	// OnBook fires after a book update is applied, with the updated token.
	// The strategy engine hangs its trading trigger here.
	OnBook func(tokenID string)
	// OnStatus mirrors the connection state into shared state.
	OnStatus func(up bool)
}

// NewMarketStream builds the public stream: one subscribe frame per watched
// token on every (re)connect, then book and trade frames forever.
func NewMarketStream(cfg MarketStreamConfig) *Stream {
	logger := cfg.Logger.With(zap.String("stream", "market"))

	return NewStream(StreamConfig{
		Name:    "market",
		URL:     cfg.URL,
		Backoff: cfg.Backoff,
		Logger:  cfg.Logger,
		OnStatus: func(up bool) {
			if cfg.OnStatus != nil {
				cfg.OnStatus(up)
			}
		},
		OnConnect: func(conn *gws.Conn) error {
			tokens := cfg.Tokens()
			for _, tokenID := range tokens {
				frame := types.SubscribeFrame{Type: "subscribe", Channel: "book", Market: tokenID}
				if err := conn.WriteJSON(frame); err != nil {
					return err
				}
			}
			logger.Info("market-subscribed", zap.Int("tokens", len(tokens)))
			return nil
		},
		OnMessage: func(data []byte) {
			var frame types.MarketFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				MalformedFramesTotal.WithLabelValues("market").Inc()
				logger.Warn("malformed-market-frame", zap.Error(err))
				return
			}

			switch frame.Type {
			case "book":
				cfg.Sink.UpdateOrderBook(frame.Market, frame.Bids, frame.Asks)
				if cfg.OnBook != nil {
					cfg.OnBook(frame.Market)
				}
			case "trade":
				price, err := strconv.ParseFloat(frame.Price, 64)
				if err != nil {
					MalformedFramesTotal.WithLabelValues("market").Inc()
					logger.Warn("malformed-trade-frame", zap.Error(err))
					return
				}
				size, err := strconv.ParseFloat(frame.Size, 64)
				if err != nil {
					MalformedFramesTotal.WithLabelValues("market").Inc()
					logger.Warn("malformed-trade-frame", zap.Error(err))
					return
				}
				logger.Debug("trade-observed",
					zap.String("token_id", frame.Market),
					zap.String("side", frame.Side),
					zap.Float64("price", price),
					zap.Float64("size", size))
				cfg.Sink.RecordTrade(frame.Market, price, size, frame.Side)
			}
		},
	})
}
