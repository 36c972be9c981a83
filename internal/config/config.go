// Package config loads and validates the YAML configuration file that wires
// the whole application: HTTP address, data stores, simulator limits and the
// default portfolio parameters applied to runs that do not override them.
package config

import (
	"fmt"
	"strings"

	"bhavlab/internal/portfolio"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Data      DataConfig       `mapstructure:"data"`
	Backtest  BacktestConfig   `mapstructure:"backtest"`
	Portfolio portfolio.Config `mapstructure:"portfolio"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

type DataConfig struct {
	CandleDB    string `mapstructure:"candle_db"`
	MetaPath    string `mapstructure:"meta_path"`
	BhavcopyDir string `mapstructure:"bhavcopy_dir"`
}

type BacktestConfig struct {
	ResultsDB      string `mapstructure:"results_db"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
	StrategiesPath string `mapstructure:"strategies_path"`
}

// Load reads the config file at path, fills unset fields with defaults and
// validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg := Default()
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config that works out of the box with a local data/
// directory.
func Default() Config {
	return Config{
		App: AppConfig{
			Env:      "dev",
			LogLevel: "info",
			HTTPAddr: ":9984",
		},
		Data: DataConfig{
			CandleDB: "data/candles.db",
		},
		Backtest: BacktestConfig{
			ResultsDB:     "data/runs.db",
			MaxConcurrent: 2,
		},
		Portfolio: portfolio.DefaultConfig(),
	}
}

func (c *Config) validate() error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Portfolio.Validate(); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (d *DataConfig) validate() error {
	if strings.TrimSpace(d.CandleDB) == "" {
		return fmt.Errorf("data.candle_db cannot be empty")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if strings.TrimSpace(b.ResultsDB) == "" {
		return fmt.Errorf("backtest.results_db cannot be empty")
	}
	if b.MaxConcurrent < 0 {
		return fmt.Errorf("backtest.max_concurrent must be >= 0")
	}
	return nil
}
