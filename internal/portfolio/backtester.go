package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"bhavlab/internal/logger"
	"bhavlab/internal/market"
)

// LiquidationReason tags the synthetic SELL that force-closes positions still
// open after the last simulated day.
const LiquidationReason = "end-of-period liquidation"

// Backtester replays precomputed signal streams against daily price history
// under one shared capital pool. One Backtester serves one run; it is not
// safe for concurrent use, but independent runs share nothing.
type Backtester struct {
	cfg    Config
	costs  CostModel
	sizer  Sizer
	gate   *Gate
	ledger *Ledger
}

func NewBacktester(cfg Config) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backtester{
		cfg:    cfg,
		costs:  NewCostModel(cfg),
		sizer:  NewSizer(cfg),
		gate:   NewGate(cfg),
		ledger: NewLedger(cfg.InitialCapital),
	}, nil
}

// Run walks the union trading calendar of all series day by day. Each day it
// executes that day's signals, exits before entries and symbols in
// lexicographic order, then snapshots equity. After the last day any open
// position is liquidated at its last available close. Identical inputs
// always produce identical trade and equity sequences.
func (b *Backtester) Run(series map[string]*market.Series, signals map[string][]market.Signal) (*Result, error) {
	for sym, sigs := range signals {
		if err := market.ValidateSignals(sym, sigs); err != nil {
			return nil, &ConfigError{Field: "signals", Reason: err.Error()}
		}
	}

	calendar := market.Calendar(series)
	symbols := sortedSymbols(signals)
	cursors := make(map[string]int, len(symbols))

	logger.Infof("backtest start: %d symbols, %d trading days, capital %.2f",
		len(symbols), len(calendar), b.cfg.InitialCapital)

	for _, day := range calendar {
		todays := b.collect(day, symbols, signals, cursors)
		// Exits release cash and position slots that the same day's
		// entries may then use.
		for _, sig := range todays {
			if sig.Action != market.Sell {
				continue
			}
			if err := b.execSell(day, sig, series); err != nil {
				return nil, err
			}
		}
		for _, sig := range todays {
			if sig.Action != market.Buy {
				continue
			}
			if err := b.execBuy(day, sig, series); err != nil {
				return nil, err
			}
		}
		b.ledger.SnapshotEquity(day, b.marks(day, series))
		if err := b.ledger.CheckInvariants(); err != nil {
			return nil, err
		}
	}

	if len(calendar) > 0 {
		if err := b.liquidate(calendar[len(calendar)-1], series); err != nil {
			return nil, err
		}
	}

	res := NewResult(b.cfg, b.ledger)
	logger.Infof("backtest done: %d trades, final value %.2f (%.2f%%)",
		res.TotalTrades, res.FinalValue, res.TotalReturnPct)
	return res, nil
}

// collect drains every signal dated at or before day from each symbol's
// cursor. Signals dated before day fall on non-trading dates for their own
// symbol; they are consumed as data gaps so the cursor stays monotone.
func (b *Backtester) collect(day time.Time, symbols []string, signals map[string][]market.Signal, cursors map[string]int) []market.Signal {
	var out []market.Signal
	for _, sym := range symbols {
		list := signals[sym]
		i := cursors[sym]
		for i < len(list) && !list[i].Date.After(day) {
			sig := list[i]
			i++
			if sig.Date.Before(day) {
				b.ledger.Skip(sig.Date, sym, sig.Action, ErrDataGap.Error())
				continue
			}
			out = append(out, sig)
		}
		cursors[sym] = i
	}
	return out
}

func (b *Backtester) execSell(day time.Time, sig market.Signal, series map[string]*market.Series) error {
	price, ok := b.priceOn(day, sig.Symbol, series)
	if !ok {
		b.ledger.Skip(day, sig.Symbol, sig.Action, ErrDataGap.Error())
		return nil
	}
	pos, ok := b.ledger.PositionFor(sig.Symbol)
	if !ok {
		b.ledger.Skip(day, sig.Symbol, sig.Action, ErrNoOpenPosition.Error())
		return nil
	}
	costs := b.costs.SellCost(float64(pos.Quantity) * price)
	trade, err := b.ledger.ClosePosition(sig.Symbol, day, price, costs, sig.Reason)
	if err != nil {
		return err
	}
	logger.Debugf("%s SELL %s %d @ %.2f, net pnl %.2f",
		day.Format(market.DateLayout), trade.Symbol, trade.Quantity, price, trade.NetPnL)
	return nil
}

func (b *Backtester) execBuy(day time.Time, sig market.Signal, series map[string]*market.Series) error {
	price, ok := b.priceOn(day, sig.Symbol, series)
	if !ok {
		b.ledger.Skip(day, sig.Symbol, sig.Action, ErrDataGap.Error())
		return nil
	}
	if b.ledger.HasPosition(sig.Symbol) {
		b.ledger.Skip(day, sig.Symbol, sig.Action, "position already open")
		return nil
	}
	if allowed, reason := b.gate.AllowEntry(day, b.ledger.OpenCount()); !allowed {
		b.ledger.Skip(day, sig.Symbol, sig.Action, reason)
		return nil
	}
	equity := b.ledger.MarkToMarket(b.marks(day, series))
	qty := b.sizer.Size(b.ledger.Cash(), b.ledger.OpenCount(), equity, price)
	if qty <= 0 {
		b.ledger.Skip(day, sig.Symbol, sig.Action, "sized to zero shares")
		return nil
	}
	costs := b.costs.BuyCost(float64(qty) * price)
	if _, err := b.ledger.OpenPosition(sig.Symbol, day, price, qty, costs, sig.Reason); err != nil {
		if errors.Is(err, ErrInsufficientCash) {
			b.ledger.Skip(day, sig.Symbol, sig.Action, ErrInsufficientCash.Error())
			return nil
		}
		return err
	}
	b.gate.RecordEntry(day)
	logger.Debugf("%s BUY %s %d @ %.2f", day.Format(market.DateLayout), sig.Symbol, qty, price)
	return nil
}

// liquidate force-closes anything still open at the last available close of
// each symbol, falling back to the entry price when the series has no bar.
func (b *Backtester) liquidate(lastDay time.Time, series map[string]*market.Series) error {
	for _, sym := range b.ledger.OpenSymbols() {
		pos, _ := b.ledger.PositionFor(sym)
		price := pos.EntryPrice
		if s, ok := series[sym]; ok {
			if close, _, found := s.LastCloseAt(lastDay); found {
				price = close
			}
		}
		costs := b.costs.SellCost(float64(pos.Quantity) * price)
		trade, err := b.ledger.ClosePosition(sym, lastDay, price, costs, LiquidationReason)
		if err != nil {
			return err
		}
		logger.Infof("liquidated %s %d @ %.2f, net pnl %.2f", sym, trade.Quantity, price, trade.NetPnL)
	}
	return nil
}

func (b *Backtester) priceOn(day time.Time, symbol string, series map[string]*market.Series) (float64, bool) {
	s, ok := series[symbol]
	if !ok || s == nil {
		return 0, false
	}
	return s.CloseOn(day)
}

// marks builds the mark-price map for open positions as of day, using each
// symbol's last close at or before day. Symbols left out fall back to their
// entry price inside the ledger.
func (b *Backtester) marks(day time.Time, series map[string]*market.Series) map[string]float64 {
	marks := make(map[string]float64)
	for _, sym := range b.ledger.OpenSymbols() {
		s, ok := series[sym]
		if !ok || s == nil {
			continue
		}
		if close, _, found := s.LastCloseAt(day); found {
			marks[sym] = close
		}
	}
	return marks
}

func sortedSymbols(signals map[string][]market.Signal) []string {
	out := make([]string, 0, len(signals))
	for sym := range signals {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Describe summarizes the run parameters for logs and persisted metadata.
func (b *Backtester) Describe() string {
	return fmt.Sprintf("capital=%.0f sizing=%s/%.2f max_positions=%d",
		b.cfg.InitialCapital, b.cfg.SizingMethod, b.cfg.SizingValue, b.cfg.MaxPositions)
}
