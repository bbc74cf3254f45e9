// Package websocket provides the resilient stream clients for the CLOB
// market and user channels. Each stream owns one connection, resubscribes
// after every reconnect, and backs off exponentially while the endpoint is
// unreachable.
package websocket

import (
	"context"
	"time"

	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout = 10 * time.Second
	pingInterval       = 10 * time.Second
)

// StreamConfig carries the construction parameters for a Stream.
type StreamConfig struct {
	// Name labels the stream in logs and metrics ("market" or "user").
	Name string
	// URL is the full websocket endpoint to dial.
	URL string
	// Backoff paces reconnect attempts.
	Backoff *Backoff
	Logger  *zap.Logger

	// OnConnect runs once per established connection, before any reads.
	// Subscription frames are sent here.
	OnConnect func(conn *gws.Conn) error
	// OnMessage receives every raw frame. Parse failures are the handler's
	// to log; a bad frame never tears the connection down.
	OnMessage func(data []byte)
	// OnStatus is invoked with true when a connection is established and
	// false when it drops.
	OnStatus func(up bool)
}

// Stream maintains one websocket connection for the lifetime of Run,
// reconnecting with exponential backoff whenever it drops.
type Stream struct {
	cfg    StreamConfig
	logger *zap.Logger
}

// NewStream creates a stream from its config.
func NewStream(cfg StreamConfig) *Stream {
	return &Stream{
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("stream", cfg.Name)),
	}
}

// Run connects and consumes frames until ctx is cancelled. Each drop flips
// the status to down, waits out the current backoff delay and redials; the
// backoff resets only after the new connection delivers a message.
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.connectAndConsume(ctx)
		if s.cfg.OnStatus != nil {
			s.cfg.OnStatus(false)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := s.cfg.Backoff.Next()
		s.logger.Warn("stream-disconnected",
			zap.Error(err),
			zap.Duration("retry_in", delay))
		ReconnectsTotal.WithLabelValues(s.cfg.Name).Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Stream) connectAndConsume(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	conn, _, err := gws.DefaultDialer.DialContext(dialCtx, s.cfg.URL, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	if s.cfg.OnConnect != nil {
		if err := s.cfg.OnConnect(conn); err != nil {
			return err
		}
	}

	s.logger.Info("stream-connected", zap.String("url", s.cfg.URL))
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(true)
	}

	// Close the connection when ctx is cancelled so the blocked read
	// returns promptly. Keepalive pings ride the same goroutine.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(gws.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	first := true
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if first {
			// A delivered message proves the endpoint is healthy again.
			s.cfg.Backoff.Reset()
			first = false
		}
		FramesReceivedTotal.WithLabelValues(s.cfg.Name).Inc()
		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(data)
		}
	}
}
