package portfolio

import (
	"testing"
	"time"

	"bhavlab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

// mkSeries builds a series with one close per consecutive day starting at
// startDay. Open/high/low mirror the close; volume is a constant.
func mkSeries(t *testing.T, symbol string, startDay int, closes ...float64) *market.Series {
	t.Helper()
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			Date: day(startDay + i), Open: c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	s, err := market.NewSeries(symbol, candles)
	require.NoError(t, err)
	return s
}

// freeConfig is a frictionless baseline: no costs, no reserve, no caps.
func freeConfig() Config {
	return Config{
		InitialCapital: 100_000,
		SizingMethod:   FixedAmount,
		SizingValue:    100_000,
		MaxPositions:   10,
	}
}

func run(t *testing.T, cfg Config, series map[string]*market.Series, signals map[string][]market.Signal) *Result {
	t.Helper()
	bt, err := NewBacktester(cfg)
	require.NoError(t, err)
	res, err := bt.Run(series, signals)
	require.NoError(t, err)
	return res
}

func TestSingleRoundTrip(t *testing.T) {
	series := map[string]*market.Series{
		"RELIANCE": mkSeries(t, "RELIANCE", 1, 100, 102, 104, 106, 110),
	}
	signals := map[string][]market.Signal{
		"RELIANCE": {
			{Date: day(1), Symbol: "RELIANCE", Action: market.Buy, Price: 100},
			{Date: day(5), Symbol: "RELIANCE", Action: market.Sell, Price: 110},
		},
	}

	res := run(t, freeConfig(), series, signals)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, 1000, trade.Quantity)
	assert.InDelta(t, 10_000, trade.NetPnL, 1e-9)
	assert.Equal(t, 4, trade.HoldingDays)
	assert.InDelta(t, 110_000, res.FinalValue, 1e-9)
	assert.InDelta(t, 10, res.TotalReturnPct, 1e-9)
	assert.Equal(t, 1.0, res.WinRate)
	assert.Nil(t, res.ProfitFactor, "no losing trades, profit factor is undefined")
	assert.Len(t, res.EquityCurve, 5)
}

func TestSecondBuyIsNoOp(t *testing.T) {
	series := map[string]*market.Series{
		"TCS": mkSeries(t, "TCS", 1, 100, 101, 102),
	}
	signals := map[string][]market.Signal{
		"TCS": {
			{Date: day(1), Symbol: "TCS", Action: market.Buy, Price: 100},
			{Date: day(2), Symbol: "TCS", Action: market.Buy, Price: 101},
		},
	}

	res := run(t, freeConfig(), series, signals)

	// One real entry; the duplicate shows up only in the audit log. The
	// single position is then force-closed at end of run.
	require.Len(t, res.Trades, 1)
	assert.Equal(t, LiquidationReason, res.Trades[0].ExitReason)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, "position already open", res.Audit[0].Reason)
	assert.Equal(t, day(2), res.Audit[0].Date)
}

func TestWeeklyTradeLimitSkipsSecondEntry(t *testing.T) {
	series := map[string]*market.Series{
		"INFY": mkSeries(t, "INFY", 1, 100, 100, 100, 100, 100),
		"HDFC": mkSeries(t, "HDFC", 1, 200, 200, 200, 200, 200),
	}
	signals := map[string][]market.Signal{
		"HDFC": {{Date: day(1), Symbol: "HDFC", Action: market.Buy, Price: 200}},
		"INFY": {{Date: day(3), Symbol: "INFY", Action: market.Buy, Price: 100}},
	}

	cfg := freeConfig()
	cfg.SizingValue = 10_000
	cfg.MaxTradesWeek = 1
	res := run(t, cfg, series, signals)

	// HDFC wins the only weekly slot; INFY is skipped once and never retried.
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "HDFC", res.Trades[0].Symbol)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, "INFY", res.Audit[0].Symbol)
	assert.Equal(t, "weekly trade limit reached", res.Audit[0].Reason)
}

func TestReserveCashBlocksEntry(t *testing.T) {
	series := map[string]*market.Series{
		"MRF": mkSeries(t, "MRF", 1, 90_000, 90_000),
	}
	signals := map[string][]market.Signal{
		"MRF": {{Date: day(1), Symbol: "MRF", Action: market.Buy, Price: 90_000}},
	}

	cfg := freeConfig()
	cfg.ReserveCashPct = 0.20 // only 80k investable, below one share
	res := run(t, cfg, series, signals)

	assert.Empty(t, res.Trades)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, "sized to zero shares", res.Audit[0].Reason)
	assert.InDelta(t, 100_000, res.FinalValue, 1e-9, "cash unchanged")
}

func TestCostsPushOutflowOverCash(t *testing.T) {
	series := map[string]*market.Series{
		"SBIN": mkSeries(t, "SBIN", 1, 100, 100),
	}
	signals := map[string][]market.Signal{
		"SBIN": {{Date: day(1), Symbol: "SBIN", Action: market.Buy, Price: 100}},
	}

	// Sizer targets the full cash balance; brokerage then tips the total
	// outflow past it. The ledger must reject whole, not shrink the order.
	cfg := freeConfig()
	cfg.BrokeragePct = 0.0003
	res := run(t, cfg, series, signals)

	assert.Empty(t, res.Trades)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, ErrInsufficientCash.Error(), res.Audit[0].Reason)
	assert.InDelta(t, 100_000, res.FinalValue, 1e-9)
}

func TestTerminalLiquidation(t *testing.T) {
	series := map[string]*market.Series{
		"WIPRO": mkSeries(t, "WIPRO", 1, 100, 105, 110),
	}
	signals := map[string][]market.Signal{
		"WIPRO": {{Date: day(1), Symbol: "WIPRO", Action: market.Buy, Price: 100}},
	}

	res := run(t, freeConfig(), series, signals)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, LiquidationReason, trade.ExitReason)
	assert.Equal(t, day(3), trade.ExitDate)
	assert.InDelta(t, 110, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 110_000, res.FinalValue, 1e-9)
}

func TestMaxPositionsZeroYieldsFlatCurve(t *testing.T) {
	series := map[string]*market.Series{
		"ITC": mkSeries(t, "ITC", 1, 100, 101, 102, 103),
	}
	signals := map[string][]market.Signal{
		"ITC": {{Date: day(1), Symbol: "ITC", Action: market.Buy, Price: 100}},
	}

	cfg := freeConfig()
	cfg.MaxPositions = 0
	res := run(t, cfg, series, signals)

	assert.Empty(t, res.Trades)
	require.Len(t, res.EquityCurve, 4)
	for _, p := range res.EquityCurve {
		assert.InDelta(t, 100_000, p.Value, 1e-9)
	}
}

func TestSymbolWithoutSignalsNeverTrades(t *testing.T) {
	series := map[string]*market.Series{
		"TRADED": mkSeries(t, "TRADED", 1, 50, 55),
		"QUIET":  mkSeries(t, "QUIET", 1, 10, 11),
	}
	signals := map[string][]market.Signal{
		"TRADED": {
			{Date: day(1), Symbol: "TRADED", Action: market.Buy, Price: 50},
			{Date: day(2), Symbol: "TRADED", Action: market.Sell, Price: 55},
		},
		"QUIET": {},
	}

	res := run(t, freeConfig(), series, signals)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "TRADED", res.Trades[0].Symbol)
}

func TestSellWithoutPositionIsSkipped(t *testing.T) {
	series := map[string]*market.Series{
		"LT": mkSeries(t, "LT", 1, 100, 100),
	}
	signals := map[string][]market.Signal{
		"LT": {{Date: day(1), Symbol: "LT", Action: market.Sell, Price: 100}},
	}

	res := run(t, freeConfig(), series, signals)

	assert.Empty(t, res.Trades)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, ErrNoOpenPosition.Error(), res.Audit[0].Reason)
}

func TestDataGapSkipsSymbolForTheDay(t *testing.T) {
	// ONGC does not trade on day 2, but the calendar includes it because
	// NTPC does. The BUY lands on a gap and is skipped, not deferred.
	ongc, err := market.NewSeries("ONGC", []market.Candle{
		{Date: day(1), Close: 50, Open: 50, High: 50, Low: 50, Volume: 1},
		{Date: day(3), Close: 52, Open: 52, High: 52, Low: 52, Volume: 1},
	})
	require.NoError(t, err)
	series := map[string]*market.Series{
		"NTPC": mkSeries(t, "NTPC", 1, 100, 100, 100),
		"ONGC": ongc,
	}

	signals := map[string][]market.Signal{
		"ONGC": {{Date: day(2), Symbol: "ONGC", Action: market.Buy, Price: 51}},
	}

	res := run(t, freeConfig(), series, signals)

	assert.Empty(t, res.Trades)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, ErrDataGap.Error(), res.Audit[0].Reason)
}

func TestRunIsDeterministic(t *testing.T) {
	series := map[string]*market.Series{
		"AAA": mkSeries(t, "AAA", 1, 100, 102, 98, 105, 103, 107),
		"BBB": mkSeries(t, "BBB", 1, 50, 51, 49, 52, 54, 53),
		"CCC": mkSeries(t, "CCC", 2, 200, 210, 190, 205, 215),
	}
	signals := map[string][]market.Signal{
		"AAA": {
			{Date: day(1), Symbol: "AAA", Action: market.Buy, Price: 100},
			{Date: day(4), Symbol: "AAA", Action: market.Sell, Price: 105},
		},
		"BBB": {
			{Date: day(2), Symbol: "BBB", Action: market.Buy, Price: 51},
			{Date: day(6), Symbol: "BBB", Action: market.Sell, Price: 53},
		},
		"CCC": {{Date: day(3), Symbol: "CCC", Action: market.Buy, Price: 210}},
	}

	cfg := DefaultConfig()
	cfg.InitialCapital = 500_000
	first := run(t, cfg, series, signals)
	second := run(t, cfg, series, signals)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.Audit, second.Audit)
}

func TestEquityCurveIsDenselySampled(t *testing.T) {
	series := map[string]*market.Series{
		"X": mkSeries(t, "X", 1, 10, 11, 12, 13, 14, 15, 16),
	}
	res := run(t, freeConfig(), series, map[string][]market.Signal{"X": nil})

	require.Len(t, res.EquityCurve, 7)
	for i := 1; i < len(res.EquityCurve); i++ {
		assert.True(t, res.EquityCurve[i].Date.After(res.EquityCurve[i-1].Date))
	}
}

func TestInvalidConfigRejectedUpFront(t *testing.T) {
	cfg := freeConfig()
	cfg.InitialCapital = 0
	_, err := NewBacktester(cfg)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "initial_capital", cfgErr.Field)
}

func TestExitsFreeSlotsForSameDayEntries(t *testing.T) {
	series := map[string]*market.Series{
		"OLD": mkSeries(t, "OLD", 1, 100, 100, 100),
		"NEW": mkSeries(t, "NEW", 1, 100, 100, 100),
	}
	signals := map[string][]market.Signal{
		"OLD": {
			{Date: day(1), Symbol: "OLD", Action: market.Buy, Price: 100},
			{Date: day(2), Symbol: "OLD", Action: market.Sell, Price: 100},
		},
		"NEW": {{Date: day(2), Symbol: "NEW", Action: market.Buy, Price: 100}},
	}

	cfg := freeConfig()
	cfg.SizingValue = 50_000
	cfg.MaxPositions = 1
	res := run(t, cfg, series, signals)

	// The day-2 exit of OLD runs before the day-2 entry of NEW, so the single
	// position slot is free when NEW is evaluated.
	require.Len(t, res.Trades, 2)
	assert.Equal(t, "OLD", res.Trades[0].Symbol)
	assert.Equal(t, "NEW", res.Trades[1].Symbol)
	assert.Empty(t, res.Audit)
}
