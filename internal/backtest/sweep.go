package backtest

import (
	"context"

	"bhavlab/internal/logger"
	"bhavlab/internal/market"
	"bhavlab/internal/portfolio"

	"golang.org/x/sync/errgroup"
)

// SweepCase is one parameter combination in a sweep.
type SweepCase struct {
	Label     string
	Portfolio portfolio.Config
}

// SweepResult pairs a case with its completed result.
type SweepResult struct {
	Label  string
	Config portfolio.Config
	Result *portfolio.Result
}

// Sweep executes one backtest per case over the same immutable price and
// signal data. Runs share nothing mutable, so they parallelize freely up to
// limit; results come back in case order regardless of completion order.
func Sweep(ctx context.Context, series map[string]*market.Series, signals map[string][]market.Signal, cases []SweepCase, limit int) ([]SweepResult, error) {
	if limit <= 0 {
		limit = 4
	}
	out := make([]SweepResult, len(cases))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			bt, err := portfolio.NewBacktester(c.Portfolio)
			if err != nil {
				return err
			}
			res, err := bt.Run(series, signals)
			if err != nil {
				return err
			}
			out[i] = SweepResult{Label: c.Label, Config: c.Portfolio, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Infof("sweep finished: %d cases", len(cases))
	return out, nil
}
