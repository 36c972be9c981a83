package config

import (
	"os"
	"path/filepath"
	"testing"

	"bhavlab/internal/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
  log_level: debug
  http_addr: ":8080"
data:
  candle_db: /var/lib/bhavlab/candles.db
  meta_path: /var/lib/bhavlab/meta.json
backtest:
  results_db: /var/lib/bhavlab/runs.db
  max_concurrent: 4
  strategies_path: /etc/bhavlab/strategies.yaml
portfolio:
  initial_capital: 500000
  position_size_method: equal_weight
  max_positions: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "/var/lib/bhavlab/candles.db", cfg.Data.CandleDB)
	assert.Equal(t, 4, cfg.Backtest.MaxConcurrent)
	assert.Equal(t, 500_000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, portfolio.EqualWeight, cfg.Portfolio.SizingMethod)
	assert.Equal(t, 8, cfg.Portfolio.MaxPositions)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: dev
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.App.HTTPAddr, cfg.App.HTTPAddr)
	assert.Equal(t, def.Data.CandleDB, cfg.Data.CandleDB)
	assert.Equal(t, def.Backtest.MaxConcurrent, cfg.Backtest.MaxConcurrent)
	assert.Equal(t, def.Portfolio, cfg.Portfolio)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: verbose
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.log_level")
}

func TestLoadRejectsBadPortfolio(t *testing.T) {
	path := writeConfig(t, `
portfolio:
  initial_capital: -1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("  ")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.validate())
}
