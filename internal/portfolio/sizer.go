package portfolio

import "math"

// Sizer converts the configured sizing policy into a whole-share quantity.
// It never returns a quantity the ledger cannot notionally afford; a return
// of 0 means "skip this trade".
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) Sizer {
	return Sizer{cfg: cfg}
}

// Size computes the share quantity for a new entry at the given price.
//
//	cash          current ledger cash
//	openCount     number of currently open positions
//	totalEquity   cash + mark-to-market value of open positions
//
// All methods are capped by max_position_size_pct of equity and by the
// reserve-cash floor (reserve_cash_pct of initial capital stays untouched).
func (s Sizer) Size(cash float64, openCount int, totalEquity, price float64) int {
	if price <= 0 {
		return 0
	}
	var target float64
	switch s.cfg.SizingMethod {
	case FixedAmount:
		target = s.cfg.SizingValue
	case EqualWeight:
		slots := s.cfg.MaxPositions - openCount
		if slots <= 0 {
			return 0
		}
		target = cash / float64(slots)
	case Percentage:
		target = totalEquity * s.cfg.SizingValue / 100
	default:
		return 0
	}

	if s.cfg.MaxPositionPct > 0 {
		if cap := s.cfg.MaxPositionPct * totalEquity; target > cap {
			target = cap
		}
	}
	// Keep the reserve intact: never invest past cash minus the floor.
	available := cash - s.cfg.ReserveCashPct*s.cfg.InitialCapital
	if target > available {
		target = available
	}
	if target > cash {
		target = cash
	}
	if target < price {
		return 0
	}
	return int(math.Floor(target / price))
}
