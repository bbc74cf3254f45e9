// Package app wires the bot together and owns its lifecycle.
package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/exchange"
	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/order"
	"github.com/mmaker/polymarket-mm/internal/position"
	"github.com/mmaker/polymarket-mm/internal/risk"
	"github.com/mmaker/polymarket-mm/internal/sheets"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/internal/strategy"
	"github.com/mmaker/polymarket-mm/internal/updater"
	"github.com/mmaker/polymarket-mm/pkg/config"
	"github.com/mmaker/polymarket-mm/pkg/healthprobe"
	"github.com/mmaker/polymarket-mm/pkg/httpserver"
	"github.com/mmaker/polymarket-mm/pkg/websocket"
)

// App is the application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	st   *state.State
	data *marketdata.Aggregator

	exchange  *exchange.Client
	source    *sheets.Source
	positions *position.Manager
	orders    *order.Manager
	risk      *risk.Manager
	engine    *strategy.Engine
	updater   *updater.Updater

	marketStream *websocket.Stream
	userStream   *websocket.Stream

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	ctx    context.Context
	cancel context.CancelFunc
}
