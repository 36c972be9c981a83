package portfolio

import (
	"fmt"
	"sort"
	"time"

	"bhavlab/internal/market"
)

// Position is an open holding. It is owned exclusively by the ledger; on
// close it becomes a Trade and leaves the open set.
type Position struct {
	Symbol         string    `json:"symbol"`
	EntryDate      time.Time `json:"entry_date"`
	EntryPrice     float64   `json:"entry_price"`
	Quantity       int       `json:"quantity"`
	InvestedAmount float64   `json:"invested_amount"`
	EntryCosts     float64   `json:"entry_costs"`
	EntryReason    string    `json:"entry_reason,omitempty"`
}

// Trade is a closed round trip. Append-only and immutable once created.
type Trade struct {
	Symbol         string    `json:"symbol"`
	EntryDate      time.Time `json:"entry_date"`
	EntryPrice     float64   `json:"entry_price"`
	ExitDate       time.Time `json:"exit_date"`
	ExitPrice      float64   `json:"exit_price"`
	Quantity       int       `json:"quantity"`
	InvestedAmount float64   `json:"invested_amount"`
	ExitAmount     float64   `json:"exit_amount"`
	GrossPnL       float64   `json:"gross_pnl"`
	NetPnL         float64   `json:"net_pnl"`
	PnLPct         float64   `json:"pnl_pct"`
	HoldingDays    int       `json:"holding_days"`
	EntryCosts     float64   `json:"entry_costs"`
	ExitCosts      float64   `json:"exit_costs"`
	EntryReason    string    `json:"entry_reason,omitempty"`
	ExitReason     string    `json:"exit_reason,omitempty"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// AuditEntry records a signal that was evaluated but not executed, with the
// reason it was skipped. Skips are expected behaviour, not errors.
type AuditEntry struct {
	Date   time.Time     `json:"date"`
	Symbol string        `json:"symbol"`
	Action market.Action `json:"action"`
	Reason string        `json:"reason"`
}

// Ledger tracks cash, open positions and realized history for one run.
// Invariants: cash >= 0 at all times; at most one open position per symbol;
// equity snapshots satisfy cash + market value == total.
type Ledger struct {
	cash      float64
	positions map[string]*Position
	trades    []Trade
	equity    []EquityPoint
	audit     []AuditEntry
}

func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		cash:      initialCapital,
		positions: make(map[string]*Position),
	}
}

func (l *Ledger) Cash() float64 { return l.cash }

func (l *Ledger) OpenCount() int { return len(l.positions) }

// HasPosition reports whether symbol has an open position.
func (l *Ledger) HasPosition(symbol string) bool {
	_, ok := l.positions[symbol]
	return ok
}

// OpenSymbols returns the symbols with open positions in lexicographic
// order, so iteration stays deterministic.
func (l *Ledger) OpenSymbols() []string {
	out := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// PositionFor returns a copy of the open position for symbol.
func (l *Ledger) PositionFor(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// OpenPosition enters a new holding. The full outflow (quantity*price +
// costs) must be covered by cash or the entry is rejected whole with
// ErrInsufficientCash.
func (l *Ledger) OpenPosition(symbol string, date time.Time, price float64, quantity int, costs float64, reason string) (Position, error) {
	if _, exists := l.positions[symbol]; exists {
		return Position{}, &InvariantError{Detail: fmt.Sprintf("second open position for %s", symbol)}
	}
	if quantity <= 0 {
		return Position{}, fmt.Errorf("quantity must be > 0, got %d", quantity)
	}
	outflow := float64(quantity)*price + costs
	if outflow > l.cash {
		return Position{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, outflow, l.cash)
	}
	l.cash -= outflow
	if l.cash < 0 {
		return Position{}, &InvariantError{Detail: fmt.Sprintf("cash went negative (%.2f) opening %s", l.cash, symbol)}
	}
	pos := &Position{
		Symbol:         symbol,
		EntryDate:      date,
		EntryPrice:     price,
		Quantity:       quantity,
		InvestedAmount: outflow,
		EntryCosts:     costs,
		EntryReason:    reason,
	}
	l.positions[symbol] = pos
	return *pos, nil
}

// ClosePosition exits the open holding for symbol, converts it to a Trade
// and credits the net proceeds to cash.
func (l *Ledger) ClosePosition(symbol string, date time.Time, price float64, costs float64, reason string) (Trade, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %s", ErrNoOpenPosition, symbol)
	}
	gross := float64(pos.Quantity) * price
	net := gross - costs
	entryGross := float64(pos.Quantity) * pos.EntryPrice
	trade := Trade{
		Symbol:         symbol,
		EntryDate:      pos.EntryDate,
		EntryPrice:     pos.EntryPrice,
		ExitDate:       date,
		ExitPrice:      price,
		Quantity:       pos.Quantity,
		InvestedAmount: pos.InvestedAmount,
		ExitAmount:     net,
		GrossPnL:       gross - entryGross,
		NetPnL:         net - pos.InvestedAmount,
		HoldingDays:    int(date.Sub(pos.EntryDate).Hours() / 24),
		EntryCosts:     pos.EntryCosts,
		ExitCosts:      costs,
		EntryReason:    pos.EntryReason,
		ExitReason:     reason,
	}
	if pos.InvestedAmount > 0 {
		trade.PnLPct = trade.NetPnL / pos.InvestedAmount * 100
	}
	l.cash += net
	delete(l.positions, symbol)
	l.trades = append(l.trades, trade)
	return trade, nil
}

// SnapshotEquity appends one equity sample for date. Open positions are
// marked with the supplied prices; a symbol absent from marks is valued at
// its entry price (stale mark). Call once per simulated day.
func (l *Ledger) SnapshotEquity(date time.Time, marks map[string]float64) float64 {
	total := l.MarkToMarket(marks)
	l.equity = append(l.equity, EquityPoint{Date: date, Value: total})
	return total
}

// MarkToMarket values the whole book: cash plus open positions at the given
// mark prices (entry price when absent).
func (l *Ledger) MarkToMarket(marks map[string]float64) float64 {
	total := l.cash
	for sym, pos := range l.positions {
		mark, ok := marks[sym]
		if !ok {
			mark = pos.EntryPrice
		}
		total += float64(pos.Quantity) * mark
	}
	return total
}

// Skip records a skipped-signal audit entry.
func (l *Ledger) Skip(date time.Time, symbol string, action market.Action, reason string) {
	l.audit = append(l.audit, AuditEntry{Date: date, Symbol: symbol, Action: action, Reason: reason})
}

func (l *Ledger) Trades() []Trade       { return l.trades }
func (l *Ledger) Equity() []EquityPoint { return l.equity }
func (l *Ledger) Audit() []AuditEntry   { return l.audit }

// CheckInvariants verifies the ledger is internally consistent. A failure
// here is a bug in the orchestration, not bad input.
func (l *Ledger) CheckInvariants() error {
	if l.cash < 0 {
		return &InvariantError{Detail: fmt.Sprintf("cash is negative: %.2f", l.cash)}
	}
	return nil
}
