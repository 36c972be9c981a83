// Package portfolio implements the deterministic multi-symbol backtesting
// engine: a shared capital pool replayed against precomputed signal streams
// under position sizing, trade frequency and cost constraints.
package portfolio

import "fmt"

// SizingMethod selects how much capital a new position receives.
type SizingMethod string

const (
	// FixedAmount targets a constant rupee amount per position.
	FixedAmount SizingMethod = "fixed_amount"
	// EqualWeight splits available cash across the remaining position slots.
	EqualWeight SizingMethod = "equal_weight"
	// Percentage targets a percentage of current total equity per position.
	Percentage SizingMethod = "percentage"
)

// Config is the full parameter set of one backtest run. It is immutable for
// the duration of the run; callers must supply it fully populated.
type Config struct {
	InitialCapital  float64      `json:"initial_capital" mapstructure:"initial_capital"`
	SizingMethod    SizingMethod `json:"position_size_method" mapstructure:"position_size_method"`
	SizingValue     float64      `json:"position_size_value" mapstructure:"position_size_value"`
	MaxPositions    int          `json:"max_positions" mapstructure:"max_positions"`
	MaxPositionPct  float64      `json:"max_position_size_pct" mapstructure:"max_position_size_pct"`
	ReserveCashPct  float64      `json:"reserve_cash_pct" mapstructure:"reserve_cash_pct"`
	MaxTradesWeek   int          `json:"max_trades_per_week" mapstructure:"max_trades_per_week"`
	MaxTradesMonth  int          `json:"max_trades_per_month" mapstructure:"max_trades_per_month"`
	BrokeragePct    float64      `json:"brokerage_pct" mapstructure:"brokerage_pct"`
	TxnChargesPct   float64      `json:"transaction_charges_pct" mapstructure:"transaction_charges_pct"`
	STTPct          float64      `json:"stt_pct" mapstructure:"stt_pct"`
	SlippagePct     float64      `json:"slippage_pct" mapstructure:"slippage_pct"`
}

// Validate checks the config before a run. MaxPositions == 0 is legal (it
// blocks all entries and yields a flat equity curve); negative limits are
// not. A weekly/monthly cap of 0 means unlimited.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return &ConfigError{Field: "initial_capital", Reason: "must be > 0"}
	}
	if c.MaxPositions < 0 {
		return &ConfigError{Field: "max_positions", Reason: "must be >= 0"}
	}
	switch c.SizingMethod {
	case FixedAmount:
		if c.SizingValue <= 0 {
			return &ConfigError{Field: "position_size_value", Reason: "must be > 0 for fixed_amount"}
		}
	case EqualWeight:
		// Sizing value unused.
	case Percentage:
		if c.SizingValue <= 0 || c.SizingValue > 100 {
			return &ConfigError{Field: "position_size_value", Reason: "must be in (0,100] for percentage"}
		}
	default:
		return &ConfigError{Field: "position_size_method", Reason: fmt.Sprintf("unknown method %q", c.SizingMethod)}
	}
	if c.MaxPositionPct < 0 || c.MaxPositionPct > 1 {
		return &ConfigError{Field: "max_position_size_pct", Reason: "must be in [0,1]"}
	}
	if c.ReserveCashPct < 0 || c.ReserveCashPct >= 1 {
		return &ConfigError{Field: "reserve_cash_pct", Reason: "must be in [0,1)"}
	}
	if c.MaxTradesWeek < 0 {
		return &ConfigError{Field: "max_trades_per_week", Reason: "must be >= 0"}
	}
	if c.MaxTradesMonth < 0 {
		return &ConfigError{Field: "max_trades_per_month", Reason: "must be >= 0"}
	}
	for _, pct := range []struct {
		name string
		v    float64
	}{
		{"brokerage_pct", c.BrokeragePct},
		{"transaction_charges_pct", c.TxnChargesPct},
		{"stt_pct", c.STTPct},
		{"slippage_pct", c.SlippagePct},
	} {
		if pct.v < 0 {
			return &ConfigError{Field: pct.name, Reason: "must be >= 0"}
		}
	}
	return nil
}

// DefaultConfig mirrors typical Indian retail brokerage terms: 10L capital,
// 1L per position, 0.03% brokerage and charges, 0.1% STT on sell, 0.1%
// slippage, 10% cash reserve.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 1_000_000,
		SizingMethod:   FixedAmount,
		SizingValue:    100_000,
		MaxPositions:   10,
		MaxPositionPct: 0.20,
		ReserveCashPct: 0.10,
		MaxTradesWeek:  5,
		MaxTradesMonth: 20,
		BrokeragePct:   0.0003,
		TxnChargesPct:  0.0003,
		STTPct:         0.001,
		SlippagePct:    0.001,
	}
}
