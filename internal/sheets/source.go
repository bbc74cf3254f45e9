package sheets

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmaker/polymarket-mm/pkg/types"
)

// Worksheet names in the configuration document.
const (
	WorksheetSelected = "Selected Markets"
	WorksheetParams   = "Hyperparameters"
	WorksheetAll      = "All Markets"
)

var selectedHeader = []string{
	"question", "answer1", "answer2", "token1", "token2", "condition_id",
	"param_type", "neg_risk", "tick_size", "min_size", "trade_size",
	"max_size", "max_spread", "enabled", "3_hour", "best_bid", "best_ask",
}

var paramsHeader = []string{
	"param_type", "trade_size", "max_size", "min_size", "max_spread",
	"stop_loss_threshold", "take_profit_threshold", "volatility_threshold",
	"spread_threshold", "sleep_period",
}

// API is the slice of the sheets client the source needs.
type API interface {
	Values(ctx context.Context, worksheet string) ([][]string, error)
	Overwrite(ctx context.Context, worksheet string, values [][]any) error
	AddWorksheet(ctx context.Context, title string) error
}

// Source reads and writes the bot's configuration worksheets. A missing
// worksheet is logged and yields an empty result; configuration problems
// never take the bot down mid-run.
type Source struct {
	client API
	logger *zap.Logger
}

// NewSource wraps a sheets client.
func NewSource(client API, logger *zap.Logger) *Source {
	return &Source{client: client, logger: logger}
}

// SelectedMarkets loads the markets the bot trades. Rows without both token
// ids are dropped; a missing enabled column means enabled.
func (s *Source) SelectedMarkets(ctx context.Context) ([]types.Market, error) {
	rows, err := s.table(ctx, WorksheetSelected)
	if err != nil {
		s.logger.Error("selected-markets-read-failed", zap.Error(err))
		return nil, nil
	}

	markets := make([]types.Market, 0, len(rows))
	for _, row := range rows {
		m := types.Market{
			Question:     row["question"],
			Answer1:      row["answer1"],
			Answer2:      row["answer2"],
			Token1:       row["token1"],
			Token2:       row["token2"],
			ConditionID:  row["condition_id"],
			ParamType:    row["param_type"],
			NegRisk:      parseBool(row["neg_risk"]),
			TickSize:     parseFloat(row["tick_size"]),
			MinSize:      parseFloat(row["min_size"]),
			TradeSize:    parseFloat(row["trade_size"]),
			MaxSize:      parseFloat(row["max_size"]),
			MaxSpread:    parseFloat(row["max_spread"]),
			Volatility3h: parseFloat(row["3_hour"]),
			BestBid:      parseFloat(row["best_bid"]),
			BestAsk:      parseFloat(row["best_ask"]),
		}

		if enabled, present := row["enabled"]; present && enabled != "" {
			m.Enabled = parseBool(enabled)
		} else {
			m.Enabled = true
		}

		if m.Token1 == "" || m.Token2 == "" {
			s.logger.Warn("market-row-missing-tokens", zap.String("question", m.Question))
			continue
		}
		markets = append(markets, m)
	}

	s.logger.Info("selected-markets-loaded", zap.Int("count", len(markets)))
	return markets, nil
}

// Hyperparameters loads the parameter profiles keyed by profile name.
func (s *Source) Hyperparameters(ctx context.Context) (map[string]types.ParamProfile, error) {
	rows, err := s.table(ctx, WorksheetParams)
	if err != nil {
		s.logger.Error("hyperparameters-read-failed", zap.Error(err))
		return map[string]types.ParamProfile{}, nil
	}

	params := make(map[string]types.ParamProfile, len(rows))
	for _, row := range rows {
		name := row["param_type"]
		if name == "" {
			continue
		}
		params[name] = types.ParamProfile{
			Name:                name,
			TradeSize:           parseFloat(row["trade_size"]),
			MaxSize:             parseFloat(row["max_size"]),
			MinSize:             parseFloat(row["min_size"]),
			MaxSpread:           parseFloat(row["max_spread"]),
			StopLossThreshold:   parseFloat(row["stop_loss_threshold"]),
			TakeProfitThreshold: parseFloat(row["take_profit_threshold"]),
			VolatilityThreshold: parseFloat(row["volatility_threshold"]),
			SpreadThreshold:     parseFloat(row["spread_threshold"]),
			SleepPeriodHours:    parseFloat(row["sleep_period"]),
		}
	}

	s.logger.Info("hyperparameters-loaded", zap.Int("profiles", len(params)))
	return params, nil
}

// UpdateMarketStats writes the full selected-markets table back, carrying
// the recomputed volatility and top-of-book columns. The write is a
// whole-sheet overwrite.
func (s *Source) UpdateMarketStats(ctx context.Context, markets []types.Market) error {
	values := make([][]any, 0, len(markets)+1)

	header := make([]any, len(selectedHeader))
	for i, col := range selectedHeader {
		header[i] = col
	}
	values = append(values, header)

	for _, m := range markets {
		values = append(values, []any{
			m.Question, m.Answer1, m.Answer2, m.Token1, m.Token2, m.ConditionID,
			m.ParamType, formatBool(m.NegRisk), m.TickSize, m.MinSize, m.TradeSize,
			m.MaxSize, m.MaxSpread, formatBool(m.Enabled),
			m.Volatility3h, m.BestBid, m.BestAsk,
		})
	}

	if err := s.client.Overwrite(ctx, WorksheetSelected, values); err != nil {
		s.logger.Error("market-stats-writeback-failed", zap.Error(err))
		return err
	}

	s.logger.Debug("market-stats-written", zap.Int("rows", len(markets)))
	return nil
}

// WriteAllMarkets overwrites the catalog worksheet with the full market
// universe the bot knows about.
func (s *Source) WriteAllMarkets(ctx context.Context, markets []types.Market) error {
	values := [][]any{{"question", "condition_id", "token1", "token2", "best_bid", "best_ask", "3_hour"}}
	for _, m := range markets {
		values = append(values, []any{
			m.Question, m.ConditionID, m.Token1, m.Token2, m.BestBid, m.BestAsk, m.Volatility3h,
		})
	}
	return s.client.Overwrite(ctx, WorksheetAll, values)
}

// CreateTemplate bootstraps the three worksheets with headers and one
// default parameter profile. Existing tabs are left alone.
func (s *Source) CreateTemplate(ctx context.Context) error {
	for _, name := range []string{WorksheetSelected, WorksheetParams, WorksheetAll} {
		if err := s.client.AddWorksheet(ctx, name); err != nil {
			s.logger.Warn("worksheet-create-skipped",
				zap.String("worksheet", name),
				zap.Error(err))
		}
	}

	header := make([]any, len(selectedHeader))
	for i, col := range selectedHeader {
		header[i] = col
	}
	if err := s.client.Overwrite(ctx, WorksheetSelected, [][]any{header}); err != nil {
		return err
	}

	paramsRows := [][]any{make([]any, len(paramsHeader))}
	for i, col := range paramsHeader {
		paramsRows[0][i] = col
	}
	paramsRows = append(paramsRows, []any{"default", 100, 250, 10, 5, -2, 1, 10, 3, 1})
	if err := s.client.Overwrite(ctx, WorksheetParams, paramsRows); err != nil {
		return err
	}

	if err := s.client.Overwrite(ctx, WorksheetAll,
		[][]any{{"question", "condition_id", "token1", "token2", "best_bid", "best_ask", "3_hour"}}); err != nil {
		return err
	}

	s.logger.Info("template-created")
	return nil
}

// table reads a worksheet into header-keyed rows. Unnamed columns are
// dropped and fully empty rows are skipped; header names are normalized to
// lower snake case.
func (s *Source) table(ctx context.Context, worksheet string) ([]rowMap, error) {
	rows, err := s.client.Values(ctx, worksheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = normalizeColumn(name)
	}

	var out []rowMap
	for _, row := range rows[1:] {
		mapped := make(rowMap, len(header))
		empty := true
		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			mapped[name] = cell
			if cell != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, mapped)
		}
	}
	return out, nil
}

type rowMap map[string]string

func normalizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.ReplaceAll(name, " ", "_")
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "yes", "1", "y":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
