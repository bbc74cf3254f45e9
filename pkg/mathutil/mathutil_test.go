package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundDown(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     float64
	}{
		{"truncates size to cents", 12.3456, 2, 12.34},
		{"already on grid", 0.55, 2, 0.55},
		{"price grid", 0.123456, 4, 0.1234},
		{"zero decimals", 7.9, 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoundDown(tt.value, tt.decimals)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := RoundDown(1.0, -1)
	assert.Error(t, err)
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     float64
	}{
		{"rounds sell price up", 0.5211, 2, 0.53},
		{"already on grid", 0.53, 2, 0.53},
		{"zero decimals", 7.1, 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoundUp(tt.value, tt.decimals)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := RoundUp(1.0, -1)
	assert.Error(t, err)
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 2.0, SafeDivide(10, 5, 0))
	assert.Equal(t, 99.0, SafeDivide(10, 0, 99))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, 0.0, Clamp(-3, 0, 1))
	assert.Equal(t, 1.0, Clamp(7, 0, 1))
}

func TestSpreadMath(t *testing.T) {
	assert.InDelta(t, 0.525, MidPrice(0.52, 0.53), 1e-9)
	assert.InDelta(t, 0.01, Spread(0.52, 0.53), 1e-9)
	assert.InDelta(t, 0.01/0.525*100, SpreadPct(0.52, 0.53), 1e-9)
	assert.Equal(t, 0.0, SpreadPct(0, 0))
}

func TestPnLPct(t *testing.T) {
	// A mid below the entry is a loss.
	assert.InDelta(t, -10, PnLPct(0.50, 0.45), 1e-9)
	assert.InDelta(t, 10, PnLPct(0.50, 0.55), 1e-9)
	assert.Equal(t, 0.0, PnLPct(0, 0.55))
}

func TestTickDecimals(t *testing.T) {
	assert.Equal(t, 2, TickDecimals(0.01))
	assert.Equal(t, 3, TickDecimals(0.001))
	assert.Equal(t, 1, TickDecimals(0.1))
	assert.Equal(t, 0, TickDecimals(1))
	assert.Equal(t, 0, TickDecimals(0))
}
