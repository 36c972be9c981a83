package trend

import (
	"testing"
	"time"

	"bhavlab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zigzag(t *testing.T, symbol string, closes ...float64) *market.Series {
	t.Helper()
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		}
	}
	s, err := market.NewSeries(symbol, candles)
	require.NoError(t, err)
	return s
}

func TestDetectUptrend(t *testing.T) {
	d := NewDetector(1)
	// Higher swing highs and higher swing lows.
	s := zigzag(t, "UP", 10, 12, 11, 14, 13, 16, 15, 18, 17)
	assert.Equal(t, Uptrend, d.Detect(s))
}

func TestDetectDowntrend(t *testing.T) {
	d := NewDetector(1)
	s := zigzag(t, "DOWN", 18, 17, 15, 16, 13, 14, 11, 12, 9)
	assert.Equal(t, Downtrend, d.Detect(s))
}

func TestDetectSideways(t *testing.T) {
	d := NewDetector(1)
	// Equal swing highs and equal swing lows.
	s := zigzag(t, "FLAT", 10, 14, 10, 14, 10, 14, 10)
	assert.Equal(t, Sideways, d.Detect(s))
}

func TestDetectUnknownOnShortHistory(t *testing.T) {
	d := NewDetector(2)
	s := zigzag(t, "TINY", 10, 11, 12)
	assert.Equal(t, Unknown, d.Detect(s))
	assert.Equal(t, Unknown, d.Detect(nil))
}

func TestSwingPivots(t *testing.T) {
	d := NewDetector(1)
	s := zigzag(t, "X", 10, 12, 11, 14, 13)

	highs := d.SwingHighs(s)
	require.Len(t, highs, 2)
	assert.Equal(t, 1, highs[0].Index)
	assert.Equal(t, 13.0, highs[0].Price)
	assert.Equal(t, 3, highs[1].Index)

	lows := d.SwingLows(s)
	require.Len(t, lows, 1)
	assert.Equal(t, 2, lows[0].Index)
	assert.Equal(t, 10.0, lows[0].Price)
}

func TestFilterUniverse(t *testing.T) {
	d := NewDetector(1)
	universe := map[string]*market.Series{
		"BULL":  zigzag(t, "BULL", 10, 12, 11, 14, 13, 16, 15, 18, 17),
		"BEAR":  zigzag(t, "BEAR", 18, 17, 15, 16, 13, 14, 11, 12, 9),
		"BULL2": zigzag(t, "BULL2", 20, 24, 22, 28, 26, 32, 30, 36, 34),
	}
	assert.Equal(t, []string{"BULL", "BULL2"}, d.FilterUniverse(universe, Uptrend))
	assert.Equal(t, []string{"BEAR"}, d.FilterUniverse(universe, Downtrend))
}
