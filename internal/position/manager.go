// Package position tracks holdings: execution-driven updates, REST
// reconciliation, YES/NO merge detection and the persisted risk-event
// files that drive per-market cool-downs.
package position

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/internal/state"
	"github.com/mmaker/polymarket-mm/pkg/types"
)

// defaultMinMergeSize is the smallest offsetting pair worth merging, in
// human units.
const defaultMinMergeSize = 1.0

// Exchange is the slice of the CLOB client the position manager needs.
type Exchange interface {
	Positions(ctx context.Context) (map[string]types.ChainPosition, error)
	MergePositions(ctx context.Context, amountBase int64, conditionID string, negRisk bool) error
}

// Manager owns position tracking and risk-event persistence.
type Manager struct {
	st       *state.State
	exchange Exchange
	dir      string // risk-event files live here, one per market
	minMerge float64
	logger   *zap.Logger
}

// Config holds construction parameters for the Manager.
type Config struct {
	State        *state.State
	Exchange     Exchange
	PositionsDir string
	MinMergeSize float64 // zero means the default
	Logger       *zap.Logger
}

// NewManager creates the manager and its risk-event directory.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.PositionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create positions dir: %w", err)
	}
	minMerge := cfg.MinMergeSize
	if minMerge <= 0 {
		minMerge = defaultMinMergeSize
	}
	return &Manager{
		st:       cfg.State,
		exchange: cfg.Exchange,
		dir:      cfg.PositionsDir,
		minMerge: minMerge,
		logger:   cfg.Logger,
	}, nil
}

// Get returns the tracked position for a token, or a zero record.
func (m *Manager) Get(tokenID string) types.Position {
	return m.st.Position(tokenID)
}

// Update applies one execution to the tracked position. source labels the
// origin of the update in logs ("fill", "merge", "reconcile").
func (m *Manager) Update(tokenID, side string, size, price float64, source string) types.Position {
	next := m.st.UpdatePosition(tokenID, side, size, price)

	m.logger.Info("position-updated",
		zap.String("token_id", tokenID),
		zap.String("side", side),
		zap.Float64("size", size),
		zap.Float64("price", price),
		zap.String("source", source),
		zap.Float64("new_size", next.Size),
		zap.Float64("new_avg", next.AvgPrice))
	return next
}

// Reconcile pulls the exchange's position snapshot. With avgOnly the sizes
// built from stream fills are trusted and only average prices are
// refreshed; otherwise the snapshot replaces local state wholesale.
func (m *Manager) Reconcile(ctx context.Context, avgOnly bool) error {
	chain, err := m.exchange.Positions(ctx)
	if err != nil {
		m.logger.Error("position-reconcile-failed", zap.Error(err))
		return err
	}

	if avgOnly {
		avgs := make(map[string]float64, len(chain))
		for tokenID, pos := range chain {
			avgs[tokenID] = pos.AvgPrice
		}
		m.st.UpdateAvgPrices(avgs)
		return nil
	}

	positions := make(map[string]types.Position, len(chain))
	for tokenID, pos := range chain {
		positions[tokenID] = types.Position{Size: pos.Size, AvgPrice: pos.AvgPrice}
	}
	m.st.ReplacePositions(positions)

	m.logger.Info("positions-reconciled", zap.Int("count", len(positions)))
	return nil
}

// TotalExposure returns the summed long exposure across tracked positions.
func (m *Manager) TotalExposure() float64 {
	return m.st.TotalExposure()
}

// MergeCandidate is a detected offsetting YES/NO pair.
type MergeCandidate struct {
	Token1 string
	Token2 string
	Amount float64 // human units, min of the two sizes
}

// CheckMergeOpportunity reports the mergeable amount for a market, if any.
// Only pairs above the minimum merge size are worth the gas.
func (m *Manager) CheckMergeOpportunity(conditionID string) (MergeCandidate, bool) {
	market, ok := m.st.Market(conditionID)
	if !ok {
		return MergeCandidate{}, false
	}

	pos1 := m.st.Position(market.Token1)
	pos2 := m.st.Position(market.Token2)

	amount := pos1.Size
	if pos2.Size < amount {
		amount = pos2.Size
	}
	if amount <= m.minMerge {
		return MergeCandidate{}, false
	}

	return MergeCandidate{Token1: market.Token1, Token2: market.Token2, Amount: amount}, true
}

// Merge burns offsetting YES/NO holdings back into collateral. The amount
// is recomputed from a fresh on-chain snapshot before execution; local
// state may be ahead of the chain.
func (m *Manager) Merge(ctx context.Context, conditionID string, negRisk bool) error {
	candidate, ok := m.CheckMergeOpportunity(conditionID)
	if !ok {
		return nil
	}

	chain, err := m.exchange.Positions(ctx)
	if err != nil {
		m.logger.Error("merge-snapshot-failed",
			zap.String("condition_id", conditionID),
			zap.Error(err))
		return err
	}

	base1 := chain[candidate.Token1].SizeBase
	base2 := chain[candidate.Token2].SizeBase
	amountBase := base1
	if base2 < amountBase {
		amountBase = base2
	}
	if amountBase < int64(m.minMerge*types.BaseUnits) {
		m.logger.Debug("merge-skipped-below-minimum",
			zap.String("condition_id", conditionID),
			zap.Int64("amount_base", amountBase))
		return nil
	}

	if err := m.exchange.MergePositions(ctx, amountBase, conditionID, negRisk); err != nil {
		m.logger.Error("merge-failed",
			zap.String("condition_id", conditionID),
			zap.Error(err))
		return err
	}

	amount := float64(amountBase) / types.BaseUnits
	m.Update(candidate.Token1, types.SideSell, amount, 0, "merge")
	m.Update(candidate.Token2, types.SideSell, amount, 0, "merge")

	MergesTotal.Inc()
	m.logger.Info("positions-merged",
		zap.String("condition_id", conditionID),
		zap.Float64("amount", amount))
	return nil
}

// SaveRiskEvent persists the market's risk event; the file is the ground
// truth for the cool-down check.
func (m *Manager) SaveRiskEvent(conditionID string, event types.RiskEvent) error {
	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal risk event: %w", err)
	}

	path := m.riskEventPath(conditionID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.logger.Error("risk-event-save-failed",
			zap.String("condition_id", conditionID),
			zap.Error(err))
		return err
	}

	RiskEventsSavedTotal.WithLabelValues(event.EventType).Inc()
	m.logger.Warn("risk-event-saved",
		zap.String("condition_id", conditionID),
		zap.String("event_type", event.EventType),
		zap.Time("sleep_till", event.SleepTill))
	return nil
}

// LoadRiskEvent reads the market's persisted risk event; ok is false when
// none exists.
func (m *Manager) LoadRiskEvent(conditionID string) (types.RiskEvent, bool) {
	data, err := os.ReadFile(m.riskEventPath(conditionID))
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Error("risk-event-load-failed",
				zap.String("condition_id", conditionID),
				zap.Error(err))
		}
		return types.RiskEvent{}, false
	}

	var event types.RiskEvent
	if err := json.Unmarshal(data, &event); err != nil {
		m.logger.Error("risk-event-parse-failed",
			zap.String("condition_id", conditionID),
			zap.Error(err))
		return types.RiskEvent{}, false
	}
	return event, true
}

// ClearRiskEvent removes the market's persisted risk event, ending its
// cool-down early.
func (m *Manager) ClearRiskEvent(conditionID string) error {
	err := os.Remove(m.riskEventPath(conditionID))
	if err != nil && !os.IsNotExist(err) {
		m.logger.Error("risk-event-clear-failed",
			zap.String("condition_id", conditionID),
			zap.Error(err))
		return err
	}
	m.logger.Info("risk-event-cleared", zap.String("condition_id", conditionID))
	return nil
}

func (m *Manager) riskEventPath(conditionID string) string {
	return filepath.Join(m.dir, conditionID+".json")
}
