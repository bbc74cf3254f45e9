// Package mathutil provides the small numeric helpers the trading engine
// relies on: directional rounding, safe division and price/spread math.
package mathutil

import (
	"fmt"
	"math"
)

// RoundDown truncates value to the given number of decimal places.
func RoundDown(value float64, decimals int) (float64, error) {
	if decimals < 0 {
		return 0, fmt.Errorf("decimals must be non-negative, got %d", decimals)
	}

	multiplier := math.Pow(10, float64(decimals))
	return math.Floor(value*multiplier) / multiplier, nil
}

// RoundUp rounds value up to the given number of decimal places.
func RoundUp(value float64, decimals int) (float64, error) {
	if decimals < 0 {
		return 0, fmt.Errorf("decimals must be non-negative, got %d", decimals)
	}

	multiplier := math.Pow(10, float64(decimals))
	return math.Ceil(value*multiplier) / multiplier, nil
}

// SafeDivide divides numerator by denominator, returning fallback when the
// denominator is zero.
func SafeDivide(numerator, denominator, fallback float64) float64 {
	if denominator == 0 {
		return fallback
	}
	return numerator / denominator
}

// Clamp bounds value to [minValue, maxValue].
func Clamp(value, minValue, maxValue float64) float64 {
	return math.Max(minValue, math.Min(maxValue, value))
}

// MidPrice returns the midpoint of bid and ask.
func MidPrice(bid, ask float64) float64 {
	return (bid + ask) / 2
}

// Spread returns the absolute distance between ask and bid.
func Spread(bid, ask float64) float64 {
	return math.Abs(ask - bid)
}

// SpreadPct returns the spread as a percentage of the mid price.
// A zero mid yields 0.
func SpreadPct(bid, ask float64) float64 {
	mid := MidPrice(bid, ask)
	if mid == 0 {
		return 0
	}
	return Spread(bid, ask) / mid * 100
}

// PnLPct returns the percentage gain or loss of currentPrice relative to
// entryPrice. A zero entry yields 0.
func PnLPct(entryPrice, currentPrice float64) float64 {
	if entryPrice == 0 {
		return 0
	}
	return (currentPrice - entryPrice) / entryPrice * 100
}

// TickDecimals returns the number of decimal places implied by a tick size,
// e.g. 0.01 -> 2. Tick sizes of 1 or larger imply zero decimals.
func TickDecimals(tickSize float64) int {
	if tickSize <= 0 || tickSize >= 1 {
		return 0
	}
	return int(math.Round(-math.Log10(tickSize)))
}
