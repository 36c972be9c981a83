// Package strategy turns validated price history into ordered signal
// streams. A Strategy is anything that can produce signals from a series;
// the built-in implementations compute their indicators with go-talib.
package strategy

import (
	"fmt"
	"strings"

	"bhavlab/internal/market"
)

// Strategy produces an ordered, validated signal stream for one symbol.
// Implementations must be pure: same series in, same signals out.
type Strategy interface {
	Name() string
	GenerateSignals(series *market.Series) ([]market.Signal, error)
}

// Builder constructs a strategy from a parameter map, typically sourced from
// the registry file.
type Builder func(params map[string]any) (Strategy, error)

var builders = map[string]Builder{
	"ma_crossover": newMACrossover,
	"rsi":          newRSI,
}

// Build instantiates a strategy by kind.
func Build(kind string, params map[string]any) (Strategy, error) {
	b, ok := builders[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind %q", kind)
	}
	return b(params)
}

// Kinds lists the registered strategy kinds.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	return out
}

// GenerateAll runs one strategy over every series and returns the per-symbol
// signal map the backtester consumes. A symbol whose history is too short
// for the strategy simply contributes no signals.
func GenerateAll(s Strategy, series map[string]*market.Series) (map[string][]market.Signal, error) {
	out := make(map[string][]market.Signal, len(series))
	for sym, sr := range series {
		sigs, err := s.GenerateSignals(sr)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", s.Name(), sym, err)
		}
		if err := market.ValidateSignals(sym, sigs); err != nil {
			return nil, fmt.Errorf("%s produced invalid signals for %s: %w", s.Name(), sym, err)
		}
		out[sym] = sigs
	}
	return out, nil
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}
