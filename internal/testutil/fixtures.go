package testutil

import "github.com/mmaker/polymarket-mm/pkg/types"

// Market returns an enabled binary test market keyed by conditionID, with
// tokens "<conditionID>-yes" and "<conditionID>-no".
func Market(conditionID string) types.Market {
	return types.Market{
		ConditionID: conditionID,
		Token1:      conditionID + "-yes",
		Token2:      conditionID + "-no",
		Question:    "Test market " + conditionID,
		Answer1:     "Yes",
		Answer2:     "No",
		Enabled:     true,
		ParamType:   "default",
		TickSize:    0.01,
	}
}

// Profile returns the default parameter profile used across tests.
func Profile() types.ParamProfile {
	return types.ParamProfile{
		Name:                "default",
		TradeSize:           100,
		MaxSize:             250,
		MinSize:             10,
		MaxSpread:           5,
		StopLossThreshold:   -2,
		TakeProfitThreshold: 1,
		VolatilityThreshold: 10,
		SpreadThreshold:     3,
		SleepPeriodHours:    1,
	}
}

// Book returns a snapshot with a single level on each side.
func Book(bid, bidSize, ask, askSize float64) types.OrderBook {
	return types.OrderBook{
		Bids: []types.Level{{Price: bid, Size: bidSize}},
		Asks: []types.Level{{Price: ask, Size: askSize}},
	}
}
