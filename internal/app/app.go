// Package app wires configuration into running components: the candle store,
// the metadata store, the strategy registry, the simulator and the HTTP API.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bhavlab/internal/backtest"
	"bhavlab/internal/config"
	"bhavlab/internal/logger"
	"bhavlab/internal/market"
	"bhavlab/internal/meta"
	"bhavlab/internal/strategy"
	transport "bhavlab/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg     *config.Config
	candles *market.Store
	meta    *meta.Store
	reg     *strategy.Registry
	results *backtest.ResultStore
	sim     *backtest.Simulator
	server  *transport.Server
}

// NewApp builds every component from the config without starting anything.
// The metadata store and strategy registry are optional; the API degrades
// gracefully when their paths are unset.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	candles, err := market.NewStore(cfg.Data.CandleDB)
	if err != nil {
		return nil, fmt.Errorf("open candle store: %w", err)
	}
	a := &App{cfg: cfg, candles: candles}

	if path := strings.TrimSpace(cfg.Data.MetaPath); path != "" {
		metaStore, err := meta.Open(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open metadata store: %w", err)
		}
		a.meta = metaStore
	}
	if path := strings.TrimSpace(cfg.Backtest.StrategiesPath); path != "" {
		reg, err := strategy.NewRegistry(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load strategy registry: %w", err)
		}
		a.reg = reg
	}

	results, err := backtest.NewResultStore(cfg.Backtest.ResultsDB)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open result store: %w", err)
	}
	a.results = results

	var builder backtest.StrategyBuilder = builtinBuilder{}
	if a.reg != nil {
		builder = a.reg
	}
	a.sim = backtest.NewSimulator(results, candles, builder, cfg.Portfolio, cfg.Backtest.MaxConcurrent)

	server, err := transport.NewServer(transport.Config{
		Addr:      cfg.App.HTTPAddr,
		Simulator: a.sim,
		Results:   results,
		Candles:   candles,
		Meta:      a.meta,
		Registry:  a.reg,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}
	a.server = server
	return a, nil
}

// builtinBuilder serves registered strategy kinds directly when no registry
// file is configured. The ID doubles as the kind.
type builtinBuilder struct{}

func (builtinBuilder) Build(id string, overrides map[string]any) (strategy.Strategy, error) {
	return strategy.Build(id, overrides)
}

// Run imports any pending bhavcopy files, then serves HTTP until ctx is
// cancelled. In-flight backtest runs are drained before returning.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if dir := strings.TrimSpace(a.cfg.Data.BhavcopyDir); dir != "" {
		if err := a.ImportBhavcopies(ctx, dir); err != nil {
			return err
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("http api listening on %s", a.cfg.App.HTTPAddr)
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.sim.Wait()
	return err
}

// ImportBhavcopies loads every *.csv in dir into the candle store. The file
// name (minus extension) is the symbol.
func (a *App) ImportBhavcopies(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		logger.Debugf("bhavcopy dir %s does not exist, skipping import", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan bhavcopy dir: %w", err)
	}
	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		series, err := market.LoadCSVFile(symbol, filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("import %s: %w", entry.Name(), err)
		}
		n, err := a.candles.InsertDaily(ctx, symbol, series.Candles)
		if err != nil {
			return fmt.Errorf("store %s: %w", symbol, err)
		}
		logger.Infof("imported %d bars for %s from %s", n, symbol, entry.Name())
		imported++
	}
	if imported > 0 {
		logger.Infof("bhavcopy import done: %d files", imported)
	}
	return nil
}

// Simulator exposes the simulator for CLI-style callers.
func (a *App) Simulator() *backtest.Simulator { return a.sim }

// Close releases every store.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.results != nil {
		_ = a.results.Close()
	}
	if a.candles != nil {
		_ = a.candles.Close()
	}
}
