package portfolio

import "time"

// Gate enforces trade-frequency and concurrency limits. Entry counts are
// tracked in rolling 7-day and 30-day windows ending at the current date
// (inclusive). Exits are never blocked: once a position exists it must
// always be closable.
type Gate struct {
	maxWeek      int
	maxMonth     int
	maxPositions int

	entries []time.Time
}

func NewGate(cfg Config) *Gate {
	return &Gate{
		maxWeek:      cfg.MaxTradesWeek,
		maxMonth:     cfg.MaxTradesMonth,
		maxPositions: cfg.MaxPositions,
	}
}

// AllowEntry reports whether a new BUY may execute on date given the number
// of currently open positions. The second return value names the limit that
// blocked the trade, for the audit log.
func (g *Gate) AllowEntry(date time.Time, openCount int) (bool, string) {
	if openCount >= g.maxPositions {
		return false, "max concurrent positions reached"
	}
	if g.maxWeek > 0 && g.countSince(date.AddDate(0, 0, -6)) >= g.maxWeek {
		return false, "weekly trade limit reached"
	}
	if g.maxMonth > 0 && g.countSince(date.AddDate(0, 0, -29)) >= g.maxMonth {
		return false, "monthly trade limit reached"
	}
	return true, ""
}

// RecordEntry registers an executed BUY. Dates arrive in simulation order,
// so the entry list stays sorted.
func (g *Gate) RecordEntry(date time.Time) {
	g.entries = append(g.entries, date)
}

func (g *Gate) countSince(cutoff time.Time) int {
	// Entries are appended in ascending date order; walk back from the end.
	n := 0
	for i := len(g.entries) - 1; i >= 0; i-- {
		if g.entries[i].Before(cutoff) {
			break
		}
		n++
	}
	return n
}
