package portfolio

// Result is the complete output of one backtest run. Trades and the equity
// curve come straight from the ledger; the aggregate fields are derived here
// once, so downstream consumers never recompute them differently.
type Result struct {
	InitialValue   float64  `json:"initial_value"`
	FinalValue     float64  `json:"final_value"`
	TotalReturnPct float64  `json:"total_return_pct"`
	TotalTrades    int      `json:"total_trades"`
	WinRate        float64  `json:"win_rate"`
	// ProfitFactor is nil when the run has no losing trades (including
	// zero-trade runs); gross wins divided by zero has no meaningful value.
	ProfitFactor   *float64 `json:"profit_factor"`
	AvgHoldingDays float64  `json:"avg_holding_days"`

	Metrics Metrics `json:"metrics"`

	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Audit       []AuditEntry  `json:"audit,omitempty"`
}

// NewResult derives the aggregate statistics from a finished ledger.
func NewResult(cfg Config, l *Ledger) *Result {
	trades := l.Trades()
	equity := l.Equity()

	res := &Result{
		InitialValue: cfg.InitialCapital,
		FinalValue:   cfg.InitialCapital,
		TotalTrades:  len(trades),
		Trades:       trades,
		EquityCurve:  equity,
		Audit:        l.Audit(),
	}
	if len(equity) > 0 {
		res.FinalValue = equity[len(equity)-1].Value
	}
	// The final snapshot predates terminal liquidation; once every position
	// is closed the cash balance is the true final value.
	if l.OpenCount() == 0 {
		res.FinalValue = l.Cash()
	}
	if res.InitialValue > 0 {
		res.TotalReturnPct = (res.FinalValue - res.InitialValue) / res.InitialValue * 100
	}

	var wins, grossWin, grossLoss, holdingDays float64
	for _, t := range trades {
		if t.NetPnL > 0 {
			wins++
			grossWin += t.NetPnL
		} else if t.NetPnL < 0 {
			grossLoss += -t.NetPnL
		}
		holdingDays += float64(t.HoldingDays)
	}
	if len(trades) > 0 {
		res.WinRate = wins / float64(len(trades))
		res.AvgHoldingDays = holdingDays / float64(len(trades))
	}
	if grossLoss > 0 {
		pf := grossWin / grossLoss
		res.ProfitFactor = &pf
	}

	res.Metrics = ComputeMetrics(cfg, trades, equity)
	return res
}
