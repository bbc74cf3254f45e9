package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/circuitbreaker"
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
	"github.com/mmaker/polymarket-mm/pkg/wallet"
	"github.com/mmaker/polymarket-mm/pkg/websocket"
)

// New creates the application instance and all its components.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	st := state.New()
	data := marketdata.New(logger)

	signer, err := exchange.NewSigner(&exchange.SignerConfig{
		APIKey:        cfg.APIKey,
		Secret:        cfg.APISecret,
		Passphrase:    cfg.APIPassphrase,
		PrivateKey:    cfg.PrivateKey,
		FunderAddress: cfg.WalletAddress,
		ChainID:       cfg.ChainID,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup signer: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		MaxFailures: 5,
		Cooldown:    time.Minute,
		Logger:      logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup breaker: %w", err)
	}

	exchangeClient, err := exchange.New(&exchange.Config{
		BaseURL:    cfg.APIBaseURL,
		DataAPIURL: cfg.DataAPIURL,
		Signer:     signer,
		Merger:     setupMerger(cfg, logger),
		State:      st,
		Breaker:    breaker,
		Logger:     logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup exchange client: %w", err)
	}

	source, err := setupSheets(cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	positions, err := position.NewManager(&position.Config{
		State:        st,
		Exchange:     exchangeClient,
		PositionsDir: cfg.PositionsDir,
		MinMergeSize: cfg.MinMergeSize,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup position manager: %w", err)
	}

	orders := order.NewManager(st, exchangeClient, logger)

	riskManager := risk.NewManager(&risk.Config{
		Data:             data,
		Positions:        positions,
		Logger:           logger,
		MaxTotalExposure: cfg.MaxTotalExposure,
	})

	engine := strategy.NewEngine(&strategy.Config{
		State:     st,
		Data:      data,
		Orders:    orders,
		Positions: positions,
		Risk:      riskManager,
		Logger:    logger,
	})

	upd := updater.New(&updater.Config{
		State:        st,
		Source:       source,
		Positions:    positions,
		Orders:       orders,
		Data:         data,
		Logger:       logger,
		Interval:     cfg.UpdateInterval,
		RefreshEvery: cfg.MarketRefreshEvery,
	})
	upd.OnCycle = engine.Trigger

	app := &App{
		cfg:       cfg,
		logger:    logger,
		st:        st,
		data:      data,
		exchange:  exchangeClient,
		source:    source,
		positions: positions,
		orders:    orders,
		risk:      riskManager,
		engine:    engine,
		updater:   upd,
		ctx:       ctx,
		cancel:    cancel,
	}

	app.setupStreams(signer.APIKey())
	app.setupHTTPServer()

	return app, nil
}

// setupMerger returns an on-chain merge executor when an RPC endpoint is
// configured, otherwise a logger that records merge intents without acting.
func setupMerger(cfg *config.Config, logger *zap.Logger) exchange.Merger {
	if cfg.RPCURL == "" {
		return &exchange.LogMerger{Logger: logger}
	}

	merger, err := wallet.NewChainMerger(cfg.RPCURL, cfg.PrivateKey, cfg.ChainID, logger)
	if err != nil {
		logger.Warn("chain-merger-setup-failed, falling back to log-only merges",
			zap.Error(err))
		return &exchange.LogMerger{Logger: logger}
	}
	return merger
}

func setupSheets(cfg *config.Config, logger *zap.Logger) (*sheets.Source, error) {
	client, err := sheets.NewClient(&sheets.ClientConfig{
		SpreadsheetURL:  cfg.SpreadsheetURL,
		CredentialsFile: cfg.CredentialsFile,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup sheets client: %w", err)
	}
	return sheets.NewSource(client, logger), nil
}

func (a *App) setupStreams(apiKey string) {
	wsBase := strings.TrimSuffix(a.cfg.WSBaseURL, "/")

	a.marketStream = websocket.NewMarketStream(websocket.MarketStreamConfig{
		URL:     wsBase + "/market",
		Tokens:  a.st.WatchedTokens,
		Sink:    a.data,
		Logger:  a.logger,
		Backoff: websocket.NewBackoff(a.cfg.ReconnectInitialDelay, a.cfg.ReconnectMaxDelay),
		OnBook: func(tokenID string) {
			a.engine.OnBookUpdate(a.ctx, tokenID)
		},
		OnStatus: a.st.SetMarketStreamUp,
	})

	a.userStream = websocket.NewUserStream(websocket.UserStreamConfig{
		URL:      wsBase + "/user",
		APIKey:   apiKey,
		Sink:     &accountSink{positions: a.positions, orders: a.orders},
		Logger:   a.logger,
		Backoff:  websocket.NewBackoff(a.cfg.ReconnectInitialDelay, a.cfg.ReconnectMaxDelay),
		OnStatus: a.st.SetUserStreamUp,
	})
}

func (a *App) setupHTTPServer() {
	a.healthChecker = healthprobe.New()
	a.healthChecker.Streams = a.st.StreamHealth

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
		State:         a.st,
		Data:          a.data,
	})
}
