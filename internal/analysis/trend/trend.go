// Package trend classifies a symbol's price structure from swing highs and
// lows, for filtering the universe before a backtest.
package trend

import (
	"sort"

	"bhavlab/internal/market"
)

// Direction is the detected price structure of a series.
type Direction string

const (
	Uptrend   Direction = "UPTREND"
	Downtrend Direction = "DOWNTREND"
	Sideways  Direction = "SIDEWAYS"
	Unknown   Direction = "UNKNOWN"
)

// Swing is one pivot point in the series.
type Swing struct {
	Index int
	Price float64
}

// Detector finds swing pivots within a lookback window on each side and
// reads the trend from the last two swing highs and lows: higher highs with
// higher lows is an uptrend, lower highs with lower lows a downtrend,
// anything mixed is sideways.
type Detector struct {
	window int
}

// NewDetector builds a detector with the given pivot window. Values below 1
// fall back to 2 bars, the smallest window that filters single-day noise.
func NewDetector(window int) *Detector {
	if window < 1 {
		window = 2
	}
	return &Detector{window: window}
}

// Detect classifies the series. A series without at least two swing highs
// and two swing lows is Unknown.
func (d *Detector) Detect(series *market.Series) Direction {
	if series == nil {
		return Unknown
	}
	highs := d.SwingHighs(series)
	lows := d.SwingLows(series)
	if len(highs) < 2 || len(lows) < 2 {
		return Unknown
	}
	h1, h2 := highs[len(highs)-2], highs[len(highs)-1]
	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]

	switch {
	case h2.Price > h1.Price && l2.Price > l1.Price:
		return Uptrend
	case h2.Price < h1.Price && l2.Price < l1.Price:
		return Downtrend
	default:
		return Sideways
	}
}

// SwingHighs returns the pivots whose high is the strict maximum of the
// surrounding window.
func (d *Detector) SwingHighs(series *market.Series) []Swing {
	return d.pivots(series, func(c market.Candle) float64 { return c.High }, func(v, other float64) bool {
		return v > other
	})
}

// SwingLows returns the pivots whose low is the strict minimum of the
// surrounding window.
func (d *Detector) SwingLows(series *market.Series) []Swing {
	return d.pivots(series, func(c market.Candle) float64 { return c.Low }, func(v, other float64) bool {
		return v < other
	})
}

func (d *Detector) pivots(series *market.Series, value func(market.Candle) float64, beats func(v, other float64) bool) []Swing {
	candles := series.Candles
	var out []Swing
	for i := d.window; i < len(candles)-d.window; i++ {
		v := value(candles[i])
		isPivot := true
		for j := i - d.window; j <= i+d.window; j++ {
			if j == i {
				continue
			}
			if !beats(v, value(candles[j])) {
				isPivot = false
				break
			}
		}
		if isPivot {
			out = append(out, Swing{Index: i, Price: v})
		}
	}
	return out
}

// FilterUniverse returns the sorted symbols whose series match the wanted
// direction.
func (d *Detector) FilterUniverse(series map[string]*market.Series, want Direction) []string {
	var out []string
	for sym, s := range series {
		if d.Detect(s) == want {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
