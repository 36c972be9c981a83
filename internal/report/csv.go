// Package report turns completed backtest results into artifacts: a trades
// CSV for tabular analysis and an HTML chart page for eyeballing the run.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"bhavlab/internal/market"
	"bhavlab/internal/portfolio"
)

var tradeHeader = []string{
	"symbol", "entry_date", "entry_price", "exit_date", "exit_price",
	"quantity", "invested_amount", "exit_amount", "gross_pnl", "net_pnl",
	"pnl_pct", "holding_days", "entry_costs", "exit_costs",
	"entry_reason", "exit_reason",
}

// WriteTradesCSV streams the trade list as CSV, one row per closed trade in
// execution order.
func WriteTradesCSV(w io.Writer, trades []portfolio.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Symbol,
			t.EntryDate.Format(market.DateLayout),
			money(t.EntryPrice),
			t.ExitDate.Format(market.DateLayout),
			money(t.ExitPrice),
			strconv.Itoa(t.Quantity),
			money(t.InvestedAmount),
			money(t.ExitAmount),
			money(t.GrossPnL),
			money(t.NetPnL),
			money(t.PnLPct),
			strconv.Itoa(t.HoldingDays),
			money(t.EntryCosts),
			money(t.ExitCosts),
			t.EntryReason,
			t.ExitReason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveTradesCSV writes the trade list to a file on disk.
func SaveTradesCSV(path string, trades []portfolio.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
