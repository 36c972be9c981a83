package strategy

import (
	"fmt"

	"bhavlab/internal/market"

	talib "github.com/markcheno/go-talib"
)

// RSI signals mean reversion on the relative strength index: BUY when RSI
// drops to the oversold line, SELL when it recovers to the overbought line.
// A position latch keeps the stream strictly alternating BUY/SELL.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
}

func newRSI(params map[string]any) (Strategy, error) {
	s := &RSI{
		period:     intParam(params, "period", 14),
		oversold:   floatParam(params, "oversold", 30),
		overbought: floatParam(params, "overbought", 70),
	}
	if s.period <= 0 {
		return nil, fmt.Errorf("rsi: period must be > 0")
	}
	if s.oversold >= s.overbought {
		return nil, fmt.Errorf("rsi: oversold %.1f must be below overbought %.1f", s.oversold, s.overbought)
	}
	return s, nil
}

func (s *RSI) Name() string {
	return fmt.Sprintf("rsi(%d,%.0f/%.0f)", s.period, s.oversold, s.overbought)
}

func (s *RSI) GenerateSignals(series *market.Series) ([]market.Signal, error) {
	closes := series.Closes()
	if len(closes) < s.period+1 {
		return nil, nil
	}
	values := talib.Rsi(closes, s.period)

	var signals []market.Signal
	inPosition := false
	for i := s.period; i < len(values); i++ {
		v := values[i]
		c := series.Candles[i]
		switch {
		case !inPosition && v <= s.oversold:
			signals = append(signals, market.Signal{
				Date:   c.Date,
				Symbol: series.Symbol,
				Action: market.Buy,
				Price:  c.Close,
				Reason: fmt.Sprintf("rsi(%d) %.1f at or below %.0f", s.period, v, s.oversold),
			})
			inPosition = true
		case inPosition && v >= s.overbought:
			signals = append(signals, market.Signal{
				Date:   c.Date,
				Symbol: series.Symbol,
				Action: market.Sell,
				Price:  c.Close,
				Reason: fmt.Sprintf("rsi(%d) %.1f at or above %.0f", s.period, v, s.overbought),
			})
			inPosition = false
		}
	}
	return signals, nil
}
