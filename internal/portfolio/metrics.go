package portfolio

import (
	"math"
)

// tradingDaysPerYear annualizes daily return statistics (NSE calendar).
const tradingDaysPerYear = 252

// Metrics carries the extended risk and quality statistics of a run, beyond
// the headline return figures on Result.
type Metrics struct {
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	MaxDrawdownDays    int     `json:"max_drawdown_days"`
	CAGRPct            float64 `json:"cagr_pct"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	LargestWin         float64 `json:"largest_win"`
	LargestLoss        float64 `json:"largest_loss"`
	TotalCosts         float64 `json:"total_costs"`
	ExposurePct        float64 `json:"exposure_pct"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
}

// ComputeMetrics derives the extended statistics from the trade list and the
// daily equity curve. All ratios are 0 when the underlying sample is empty.
func ComputeMetrics(cfg Config, trades []Trade, equity []EquityPoint) Metrics {
	var m Metrics

	var winSum, lossSum float64
	for _, t := range trades {
		m.TotalCosts += t.EntryCosts + t.ExitCosts
		switch {
		case t.NetPnL > 0:
			m.WinningTrades++
			winSum += t.NetPnL
			if t.NetPnL > m.LargestWin {
				m.LargestWin = t.NetPnL
			}
		case t.NetPnL < 0:
			m.LosingTrades++
			lossSum += t.NetPnL
			if t.NetPnL < m.LargestLoss {
				m.LargestLoss = t.NetPnL
			}
		}
	}
	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
	}

	if len(equity) == 0 {
		return m
	}

	m.MaxDrawdownPct, m.MaxDrawdownDays = maxDrawdown(equity)
	m.CAGRPct = cagr(equity)
	m.SharpeRatio, m.SortinoRatio = riskRatios(dailyReturns(equity))
	m.ExposurePct = exposure(trades, equity)
	return m
}

// maxDrawdown returns the deepest peak-to-trough fall in percent and the
// longest run of days spent below a prior peak.
func maxDrawdown(equity []EquityPoint) (float64, int) {
	peak := equity[0].Value
	peakIdx := 0
	var worst float64
	var longest int
	for i, p := range equity {
		if p.Value >= peak {
			peak = p.Value
			peakIdx = i
			continue
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak * 100; dd > worst {
				worst = dd
			}
		}
		if days := i - peakIdx; days > longest {
			longest = days
		}
	}
	return worst, longest
}

func cagr(equity []EquityPoint) float64 {
	first, last := equity[0], equity[len(equity)-1]
	if first.Value <= 0 || last.Value <= 0 {
		return 0
	}
	years := last.Date.Sub(first.Date).Hours() / 24 / 365.25
	if years <= 0 {
		return 0
	}
	return (math.Pow(last.Value/first.Value, 1/years) - 1) * 100
}

func dailyReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}
	return out
}

// riskRatios computes annualized Sharpe and Sortino over daily returns with a
// zero risk-free rate. Sortino penalizes only downside deviation.
func riskRatios(returns []float64) (sharpe, sortino float64) {
	if len(returns) < 2 {
		return 0, 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance, downVariance float64
	var downN int
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downVariance += r * r
			downN++
		}
	}
	variance /= float64(len(returns) - 1)
	ann := math.Sqrt(tradingDaysPerYear)
	if sd := math.Sqrt(variance); sd > 0 {
		sharpe = mean / sd * ann
	}
	if downN > 0 {
		if dd := math.Sqrt(downVariance / float64(len(returns))); dd > 0 {
			sortino = mean / dd * ann
		}
	}
	return sharpe, sortino
}

// exposure is the percentage of calendar days with at least one open
// position, using trade entry/exit spans against the equity curve dates.
func exposure(trades []Trade, equity []EquityPoint) float64 {
	if len(equity) == 0 || len(trades) == 0 {
		return 0
	}
	open := 0
	for _, p := range equity {
		for _, t := range trades {
			if !p.Date.Before(t.EntryDate) && p.Date.Before(t.ExitDate) {
				open++
				break
			}
		}
	}
	return float64(open) / float64(len(equity)) * 100
}
