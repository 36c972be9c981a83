package market

import (
	"fmt"
	"time"
)

// Action is the direction of a trading signal.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Signal is one buy/sell recommendation for a symbol on a trade date.
// Signals are immutable once produced; a symbol's signal list must be
// monotonically increasing in date.
type Signal struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Action Action    `json:"action"`
	Price  float64   `json:"price"`
	Reason string    `json:"reason,omitempty"`
}

// ValidateSignals checks the per-symbol ordering contract the portfolio
// engine relies on: ascending dates, matching symbol, known actions.
func ValidateSignals(symbol string, signals []Signal) error {
	var prev time.Time
	for i, sig := range signals {
		if sig.Symbol != symbol {
			return fmt.Errorf("signal #%d carries symbol %s, want %s", i, sig.Symbol, symbol)
		}
		if sig.Action != Buy && sig.Action != Sell {
			return fmt.Errorf("signal #%d has unknown action %q", i, sig.Action)
		}
		if sig.Price <= 0 {
			return fmt.Errorf("signal #%d has non-positive price %.4f", i, sig.Price)
		}
		if i > 0 && sig.Date.Before(prev) {
			return fmt.Errorf("signal #%d dated %s precedes #%d (%s)",
				i, sig.Date.Format(DateLayout), i-1, prev.Format(DateLayout))
		}
		prev = sig.Date
	}
	return nil
}
