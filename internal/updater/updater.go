// Package updater runs the periodic reconcile loop: in-flight marker
// sweeps, REST snapshots of positions and orders, and the slower market
// catalog refresh with its stats write-back.
package updater

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/marketdata"
	"github.com/mmaker/polymarket-mm/internal/order"
	"github.com/mmaker/polymarket-mm/internal/position"
	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

const (
	// inFlightMaxAge is how long an in-flight marker may live before the
	// sweep declares its operation lost.
	inFlightMaxAge = 15 * time.Second

	volatilityWindow = 3 * time.Hour
)

// ConfigSource supplies the market catalog and parameter profiles.
type ConfigSource interface {
	SelectedMarkets(ctx context.Context) ([]types.Market, error)
	Hyperparameters(ctx context.Context) (map[string]types.ParamProfile, error)
	UpdateMarketStats(ctx context.Context, markets []types.Market) error
}

// Updater drives the reconcile cadence.
type Updater struct {
	st        *state.State
	source    ConfigSource
	positions *position.Manager
	orders    *order.Manager
	data      *marketdata.Aggregator
	logger    *zap.Logger

	interval     time.Duration
	refreshEvery int // catalog refresh once per this many ticks

	// OnCycle, when set, is invoked with each market after a cycle's
	// reconciles; the strategy engine hangs its periodic trigger here.
	OnCycle func(ctx context.Context, conditionID string)
}

// Config holds construction parameters for the Updater.
type Config struct {
	State        *state.State
	Source       ConfigSource
	Positions    *position.Manager
	Orders       *order.Manager
	Data         *marketdata.Aggregator
	Logger       *zap.Logger
	Interval     time.Duration
	RefreshEvery int
}

// New creates the updater.
func New(cfg *Config) *Updater {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	refreshEvery := cfg.RefreshEvery
	if refreshEvery <= 0 {
		refreshEvery = 6
	}
	return &Updater{
		st:           cfg.State,
		source:       cfg.Source,
		positions:    cfg.Positions,
		orders:       cfg.Orders,
		data:         cfg.Data,
		logger:       cfg.Logger,
		interval:     interval,
		refreshEvery: refreshEvery,
	}
}

// Bootstrap is the blocking startup one-shot: catalog, profiles and a full
// position/order reconcile before any trading starts.
func (u *Updater) Bootstrap(ctx context.Context) error {
	if err := u.refreshCatalog(ctx, false); err != nil {
		return err
	}
	if err := u.positions.Reconcile(ctx, false); err != nil {
		return err
	}
	return u.orders.Reconcile(ctx)
}

// Run loops until ctx is cancelled. A failed cycle logs and waits for the
// next tick; no error escapes.
func (u *Updater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		tick++
		u.cycle(ctx, tick%u.refreshEvery == 0)
	}
}

func (u *Updater) cycle(ctx context.Context, refresh bool) {
	CyclesTotal.Inc()

	for _, swept := range u.st.SweepInFlight(inFlightMaxAge) {
		SweptMarkersTotal.WithLabelValues(swept.Op).Inc()
		u.logger.Warn("in-flight-marker-swept",
			zap.String("op", swept.Op),
			zap.String("id", swept.ID),
			zap.Duration("age", swept.Age))
	}

	if err := u.positions.Reconcile(ctx, true); err != nil {
		CycleFailuresTotal.Inc()
	}
	if err := u.orders.Reconcile(ctx); err != nil {
		CycleFailuresTotal.Inc()
	}

	if refresh {
		if err := u.refreshCatalog(ctx, true); err != nil {
			CycleFailuresTotal.Inc()
			u.logger.Error("catalog-refresh-failed", zap.Error(err))
		}
	}

	if u.OnCycle != nil {
		for _, market := range u.st.Markets() {
			u.OnCycle(ctx, market.ConditionID)
		}
	}
}

// refreshCatalog reloads markets and profiles from the config source. With
// writeStats the recomputed volatility and top-of-book columns go back to
// the sheet.
func (u *Updater) refreshCatalog(ctx context.Context, writeStats bool) error {
	markets, err := u.source.SelectedMarkets(ctx)
	if err != nil {
		return err
	}
	params, err := u.source.Hyperparameters(ctx)
	if err != nil {
		return err
	}

	for i := range markets {
		u.fillStats(&markets[i])
	}

	// An empty read is indistinguishable from a swallowed sheets outage;
	// keep the working catalog and profiles rather than going dark.
	if len(markets) > 0 {
		u.st.SetMarkets(markets)
	}
	if len(params) > 0 {
		u.st.SetParams(params)
	}

	u.logger.Info("catalog-refreshed",
		zap.Int("markets", len(markets)),
		zap.Int("profiles", len(params)))

	if writeStats && len(markets) > 0 {
		if err := u.source.UpdateMarketStats(ctx, markets); err != nil {
			return err
		}
	}
	return nil
}

// fillStats overwrites a market's stat columns from live history where
// available.
func (u *Updater) fillStats(market *types.Market) {
	if bid, ask, ok := u.data.BestBidAsk(market.Token1); ok {
		market.BestBid = bid
		market.BestAsk = ask
	}
	if vol, ok := u.data.Volatility(market.Token1, volatilityWindow); ok {
		market.Volatility3h = vol
	}
}
