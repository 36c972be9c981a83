package backtest

import (
	"context"
	"testing"

	"bhavlab/internal/market"
	"bhavlab/internal/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRunsAllCasesIsolated(t *testing.T) {
	series := simSeries(t)
	signals := map[string][]market.Signal{
		"TCS": {
			{Date: series["TCS"].Candles[0].Date, Symbol: "TCS", Action: market.Buy, Price: 100},
			{Date: series["TCS"].Candles[8].Date, Symbol: "TCS", Action: market.Sell, Price: 100},
		},
	}

	base := portfolio.Config{
		InitialCapital: 100_000,
		SizingMethod:   portfolio.FixedAmount,
		SizingValue:    50_000,
		MaxPositions:   5,
	}
	small := base
	small.SizingValue = 10_000

	cases := []SweepCase{
		{Label: "size-50k", Portfolio: base},
		{Label: "size-10k", Portfolio: small},
	}
	results, err := Sweep(context.Background(), series, signals, cases, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Order matches the case list, not completion order.
	assert.Equal(t, "size-50k", results[0].Label)
	assert.Equal(t, "size-10k", results[1].Label)

	// Same signals, different sizing: the bigger allocation trades more stock.
	require.Len(t, results[0].Result.Trades, 1)
	require.Len(t, results[1].Result.Trades, 1)
	assert.Greater(t, results[0].Result.Trades[0].Quantity, results[1].Result.Trades[0].Quantity)
}

func TestSweepPropagatesConfigErrors(t *testing.T) {
	series := simSeries(t)
	bad := portfolio.Config{InitialCapital: 0}
	_, err := Sweep(context.Background(), series, nil, []SweepCase{{Label: "bad", Portfolio: bad}}, 1)
	assert.Error(t, err)
}

func TestSweepDeterministicAcrossParallelism(t *testing.T) {
	series := simSeries(t)
	signals := map[string][]market.Signal{
		"TCS": {{Date: series["TCS"].Candles[1].Date, Symbol: "TCS", Action: market.Buy, Price: 95}},
	}
	cfg := portfolio.Config{
		InitialCapital: 100_000,
		SizingMethod:   portfolio.EqualWeight,
		MaxPositions:   4,
	}
	cases := []SweepCase{{Label: "a", Portfolio: cfg}, {Label: "b", Portfolio: cfg}}

	serial, err := Sweep(context.Background(), series, signals, cases, 1)
	require.NoError(t, err)
	parallel, err := Sweep(context.Background(), series, signals, cases, 2)
	require.NoError(t, err)

	assert.Equal(t, serial[0].Result.Trades, parallel[0].Result.Trades)
	assert.Equal(t, serial[1].Result.EquityCurve, parallel[1].Result.EquityCurve)
}
