package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bhavlab/internal/logger"
	"bhavlab/internal/market"
	"bhavlab/internal/portfolio"
	"bhavlab/internal/strategy"

	"github.com/google/uuid"
)

// SeriesSource supplies validated price history. *market.Store satisfies it.
type SeriesSource interface {
	LoadAll(ctx context.Context) (map[string]*market.Series, error)
	LoadSeries(ctx context.Context, symbol string) (*market.Series, error)
}

// StrategyBuilder turns a strategy ID plus parameter overrides into a
// runnable strategy. *strategy.Registry satisfies it.
type StrategyBuilder interface {
	Build(id string, overrides map[string]any) (strategy.Strategy, error)
}

// Simulator accepts run requests, executes them on a bounded worker pool and
// persists every outcome. Each run is fully isolated: its own ledger, its
// own config, nothing shared but the read-only price data.
type Simulator struct {
	store    *ResultStore
	source   SeriesSource
	builder  StrategyBuilder
	defaults portfolio.Config

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewSimulator(store *ResultStore, source SeriesSource, builder StrategyBuilder, defaults portfolio.Config, maxConcurrent int) *Simulator {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Simulator{
		store:    store,
		source:   source,
		builder:  builder,
		defaults: defaults,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// Submit validates the request, records a pending run and schedules it in
// the background. The returned Run carries the assigned ID.
func (s *Simulator) Submit(ctx context.Context, req RunRequest) (Run, error) {
	cfg := s.defaults
	if req.Portfolio != nil {
		cfg = *req.Portfolio
	}
	if err := cfg.Validate(); err != nil {
		return Run{}, err
	}
	// Fail fast on unknown strategies or bad params before persisting.
	if _, err := s.builder.Build(req.Strategy, req.Params); err != nil {
		return Run{}, err
	}
	run := Run{
		ID:             uuid.NewString(),
		StrategyID:     req.Strategy,
		Status:         RunStatusPending,
		InitialCapital: cfg.InitialCapital,
		Config: RunConfig{
			StrategyID: req.Strategy,
			Params:     req.Params,
			Symbols:    normalizeSymbols(req.Symbols),
			Portfolio:  cfg,
			Notes:      req.Notes,
		},
	}
	if err := s.store.InsertRun(ctx, run); err != nil {
		return Run{}, err
	}
	s.wg.Add(1)
	go s.execute(run)
	logger.Infof("backtest run %s submitted: strategy=%s symbols=%d", run.ID, run.StrategyID, len(run.Config.Symbols))
	return run, nil
}

// ExecuteSync runs the request in the calling goroutine and returns the full
// result. Used by the CLI path where there is nothing to poll.
func (s *Simulator) ExecuteSync(ctx context.Context, req RunRequest) (Run, *portfolio.Result, error) {
	cfg := s.defaults
	if req.Portfolio != nil {
		cfg = *req.Portfolio
	}
	if err := cfg.Validate(); err != nil {
		return Run{}, nil, err
	}
	run := Run{
		ID:             uuid.NewString(),
		StrategyID:     req.Strategy,
		Status:         RunStatusRunning,
		InitialCapital: cfg.InitialCapital,
		Config: RunConfig{
			StrategyID: req.Strategy,
			Params:     req.Params,
			Symbols:    normalizeSymbols(req.Symbols),
			Portfolio:  cfg,
			Notes:      req.Notes,
		},
	}
	if err := s.store.InsertRun(ctx, run); err != nil {
		return Run{}, nil, err
	}
	res, err := s.runOnce(ctx, run)
	if err != nil {
		_ = s.store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, err.Error())
		return Run{}, nil, err
	}
	if err := s.store.SaveResult(ctx, run.ID, res); err != nil {
		return Run{}, nil, err
	}
	final, err := s.store.GetRun(ctx, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	return final, res, nil
}

// Wait blocks until every scheduled run has finished. Call on shutdown.
func (s *Simulator) Wait() { s.wg.Wait() }

func (s *Simulator) execute(run Run) {
	defer s.wg.Done()
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx := context.Background()
	if err := s.store.UpdateRunStatus(ctx, run.ID, RunStatusRunning, ""); err != nil {
		logger.Errorf("run %s: mark running failed: %v", run.ID, err)
		return
	}
	res, err := s.runOnce(ctx, run)
	if err != nil {
		logger.Errorf("run %s failed: %v", run.ID, err)
		if uerr := s.store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, err.Error()); uerr != nil {
			logger.Errorf("run %s: mark failed failed: %v", run.ID, uerr)
		}
		return
	}
	if err := s.store.SaveResult(ctx, run.ID, res); err != nil {
		logger.Errorf("run %s: persist result failed: %v", run.ID, err)
		_ = s.store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, err.Error())
		return
	}
	logger.Infof("run %s done: %d trades, return %.2f%%", run.ID, res.TotalTrades, res.TotalReturnPct)
}

func (s *Simulator) runOnce(ctx context.Context, run Run) (*portfolio.Result, error) {
	series, err := s.loadSeries(ctx, run.Config.Symbols)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no price data available for run")
	}
	strat, err := s.builder.Build(run.StrategyID, run.Config.Params)
	if err != nil {
		return nil, err
	}
	signals, err := strategy.GenerateAll(strat, series)
	if err != nil {
		return nil, err
	}
	bt, err := portfolio.NewBacktester(run.Config.Portfolio)
	if err != nil {
		return nil, err
	}
	return bt.Run(series, signals)
}

func (s *Simulator) loadSeries(ctx context.Context, symbols []string) (map[string]*market.Series, error) {
	if len(symbols) == 0 {
		return s.source.LoadAll(ctx)
	}
	out := make(map[string]*market.Series, len(symbols))
	for _, sym := range symbols {
		series, err := s.source.LoadSeries(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", sym, err)
		}
		out[sym] = series
	}
	return out, nil
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
