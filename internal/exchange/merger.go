package exchange

import (
	"context"

	"go.uber.org/zap"
)

// Merger executes the on-chain merge of offsetting YES/NO holdings into
// collateral. The CLOB has no REST endpoint for this; execution requires a
// transaction against the conditional-token contract, so the adapter is
// injected.
type Merger interface {
	MergePositions(ctx context.Context, amountBase int64, conditionID string, negRisk bool) error
}

// LogMerger records merge intents without executing them. It is the default
// adapter when no on-chain executor is wired in.
type LogMerger struct {
	Logger *zap.Logger
}

// MergePositions logs the intent and reports success so the position
// manager's follow-up reconcile reflects reality either way.
func (m *LogMerger) MergePositions(_ context.Context, amountBase int64, conditionID string, negRisk bool) error {
	m.Logger.Info("merge-intent",
		zap.Int64("amount_base", amountBase),
		zap.String("condition_id", conditionID),
		zap.Bool("neg_risk", negRisk))
	return nil
}
