package strategy

import (
	"fmt"

	"bhavlab/internal/market"

	talib "github.com/markcheno/go-talib"
)

// MACrossover signals on simple moving average crossovers: BUY when the
// short average crosses above the long one, SELL when it crosses back
// below while a position is held.
type MACrossover struct {
	short int
	long  int
}

func newMACrossover(params map[string]any) (Strategy, error) {
	s := &MACrossover{
		short: intParam(params, "short_period", 20),
		long:  intParam(params, "long_period", 50),
	}
	if s.short <= 0 || s.long <= 0 {
		return nil, fmt.Errorf("ma_crossover: periods must be > 0")
	}
	if s.short >= s.long {
		return nil, fmt.Errorf("ma_crossover: short_period %d must be below long_period %d", s.short, s.long)
	}
	return s, nil
}

func (s *MACrossover) Name() string {
	return fmt.Sprintf("ma_crossover(%d,%d)", s.short, s.long)
}

func (s *MACrossover) GenerateSignals(series *market.Series) ([]market.Signal, error) {
	closes := series.Closes()
	// The long average needs a full window plus one prior bar to compare.
	if len(closes) < s.long+1 {
		return nil, nil
	}
	shortMA := talib.Sma(closes, s.short)
	longMA := talib.Sma(closes, s.long)

	var signals []market.Signal
	inPosition := false
	for i := s.long; i < len(closes); i++ {
		crossedUp := shortMA[i-1] <= longMA[i-1] && shortMA[i] > longMA[i]
		crossedDown := shortMA[i-1] >= longMA[i-1] && shortMA[i] < longMA[i]
		c := series.Candles[i]
		switch {
		case crossedUp && !inPosition:
			signals = append(signals, market.Signal{
				Date:   c.Date,
				Symbol: series.Symbol,
				Action: market.Buy,
				Price:  c.Close,
				Reason: fmt.Sprintf("sma %d/%d bullish crossover", s.short, s.long),
			})
			inPosition = true
		case crossedDown && inPosition:
			signals = append(signals, market.Signal{
				Date:   c.Date,
				Symbol: series.Symbol,
				Action: market.Sell,
				Price:  c.Close,
				Reason: fmt.Sprintf("sma %d/%d bearish crossover", s.short, s.long),
			})
			inPosition = false
		}
	}
	return signals, nil
}
