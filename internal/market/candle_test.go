package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(day int) time.Time {
	return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
}

func candlesOn(days ...int) []Candle {
	out := make([]Candle, len(days))
	for i, n := range days {
		c := float64(100 + n)
		out[i] = Candle{Date: d(n), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return out
}

func TestNewSeriesRejectsUnorderedDates(t *testing.T) {
	_, err := NewSeries("X", []Candle{
		{Date: d(5), Close: 1},
		{Date: d(3), Close: 1},
	})
	assert.Error(t, err)

	_, err = NewSeries("X", []Candle{
		{Date: d(5), Close: 1},
		{Date: d(5), Close: 2},
	})
	assert.Error(t, err, "duplicate dates rejected")

	_, err = NewSeries("", candlesOn(1))
	assert.Error(t, err, "symbol required")
}

func TestSeriesLookups(t *testing.T) {
	s, err := NewSeries("TCS", candlesOn(1, 2, 5, 8))
	require.NoError(t, err)

	c, ok := s.On(d(5))
	require.True(t, ok)
	assert.Equal(t, 105.0, c.Close)

	_, ok = s.On(d(4))
	assert.False(t, ok)

	close, ok := s.CloseOn(d(2))
	require.True(t, ok)
	assert.Equal(t, 102.0, close)
}

func TestLastCloseAt(t *testing.T) {
	s, err := NewSeries("TCS", candlesOn(1, 2, 5))
	require.NoError(t, err)

	// Exact hit.
	v, on, ok := s.LastCloseAt(d(2))
	require.True(t, ok)
	assert.Equal(t, 102.0, v)
	assert.Equal(t, d(2), on)

	// Gap day falls back to the previous bar.
	v, on, ok = s.LastCloseAt(d(4))
	require.True(t, ok)
	assert.Equal(t, 102.0, v)
	assert.Equal(t, d(2), on)

	// Before the first bar there is nothing.
	_, _, ok = s.LastCloseAt(d(0))
	assert.False(t, ok)
}

func TestUntilAndCloses(t *testing.T) {
	s, err := NewSeries("TCS", candlesOn(1, 2, 5, 8))
	require.NoError(t, err)

	prefix := s.Until(d(5))
	require.Len(t, prefix, 3)
	assert.Equal(t, d(5), prefix[2].Date)

	assert.Equal(t, []float64{101, 102, 105, 108}, s.Closes())
}

func TestCalendarIsSortedUnion(t *testing.T) {
	a, err := NewSeries("A", candlesOn(1, 3, 5))
	require.NoError(t, err)
	b, err := NewSeries("B", candlesOn(2, 3, 6))
	require.NoError(t, err)

	cal := Calendar(map[string]*Series{"A": a, "B": b, "NIL": nil})
	require.Len(t, cal, 5)
	assert.Equal(t, []time.Time{d(1), d(2), d(3), d(5), d(6)}, cal)
}

func TestValidateSignals(t *testing.T) {
	good := []Signal{
		{Date: d(1), Symbol: "TCS", Action: Buy, Price: 100},
		{Date: d(1), Symbol: "TCS", Action: Sell, Price: 101},
		{Date: d(4), Symbol: "TCS", Action: Buy, Price: 99},
	}
	assert.NoError(t, ValidateSignals("TCS", good))

	assert.Error(t, ValidateSignals("TCS", []Signal{
		{Date: d(1), Symbol: "INFY", Action: Buy, Price: 100},
	}), "symbol mismatch")

	assert.Error(t, ValidateSignals("TCS", []Signal{
		{Date: d(1), Symbol: "TCS", Action: "HOLD", Price: 100},
	}), "unknown action")

	assert.Error(t, ValidateSignals("TCS", []Signal{
		{Date: d(1), Symbol: "TCS", Action: Buy, Price: 0},
	}), "non-positive price")

	assert.Error(t, ValidateSignals("TCS", []Signal{
		{Date: d(4), Symbol: "TCS", Action: Buy, Price: 100},
		{Date: d(1), Symbol: "TCS", Action: Sell, Price: 100},
	}), "descending dates")
}
