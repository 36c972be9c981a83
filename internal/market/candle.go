// Package market holds the daily OHLCV data model shared by the data store,
// the signal generators and the portfolio engine.
package market

import (
	"fmt"
	"sort"
	"time"
)

// Candle is one daily OHLCV bar. Date carries only the trade date
// (midnight UTC); intraday resolution is out of scope.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is the validated price history of a single symbol: dates are unique
// and strictly ascending. Build one through NewSeries so every consumer can
// rely on that invariant.
type Series struct {
	Symbol  string
	Candles []Candle

	byDate map[int64]int
}

// NewSeries validates the candle ordering and returns an indexed series.
func NewSeries(symbol string, candles []Candle) (*Series, error) {
	if symbol == "" {
		return nil, fmt.Errorf("series requires a symbol")
	}
	byDate := make(map[int64]int, len(candles))
	var prev time.Time
	for i, c := range candles {
		if c.Date.IsZero() {
			return nil, fmt.Errorf("%s: candle #%d has no date", symbol, i)
		}
		if i > 0 && !c.Date.After(prev) {
			return nil, fmt.Errorf("%s: dates must be unique and ascending (#%d %s after %s)",
				symbol, i, c.Date.Format(DateLayout), prev.Format(DateLayout))
		}
		prev = c.Date
		byDate[dayKey(c.Date)] = i
	}
	return &Series{Symbol: symbol, Candles: candles, byDate: byDate}, nil
}

// DateLayout is the canonical date format used across the repo.
const DateLayout = "2006-01-02"

func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

// On returns the candle traded on the given date.
func (s *Series) On(date time.Time) (Candle, bool) {
	idx, ok := s.byDate[dayKey(date)]
	if !ok {
		return Candle{}, false
	}
	return s.Candles[idx], true
}

// CloseOn returns the closing price on the given date.
func (s *Series) CloseOn(date time.Time) (float64, bool) {
	c, ok := s.On(date)
	if !ok {
		return 0, false
	}
	return c.Close, true
}

// LastCloseAt returns the most recent close at or before the given date.
// Used for marking positions when a symbol did not trade that day.
func (s *Series) LastCloseAt(date time.Time) (float64, time.Time, bool) {
	key := dayKey(date)
	// Candles are ascending, binary search for the last date <= key.
	i := sort.Search(len(s.Candles), func(i int) bool {
		return dayKey(s.Candles[i].Date) > key
	})
	if i == 0 {
		return 0, time.Time{}, false
	}
	c := s.Candles[i-1]
	return c.Close, c.Date, true
}

// Len reports the number of bars.
func (s *Series) Len() int { return len(s.Candles) }

// First returns the earliest candle.
func (s *Series) First() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[0], true
}

// Last returns the latest candle.
func (s *Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Until returns the prefix of the series up to and including date.
func (s *Series) Until(date time.Time) []Candle {
	key := dayKey(date)
	i := sort.Search(len(s.Candles), func(i int) bool {
		return dayKey(s.Candles[i].Date) > key
	})
	return s.Candles[:i]
}

// Closes extracts the close column, oldest first.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Calendar returns the sorted union of trade dates across all series.
// The backtester walks this to keep multi-symbol runs deterministic.
func Calendar(series map[string]*Series) []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range series {
		if s == nil {
			continue
		}
		for _, c := range s.Candles {
			seen[dayKey(c.Date)] = c.Date
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
