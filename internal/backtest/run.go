// Package backtest manages the lifecycle of portfolio backtest runs:
// submission, bounded parallel execution, and persisted results.
package backtest

import (
	"encoding/json"
	"time"

	"bhavlab/internal/portfolio"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig snapshots everything needed to reproduce a run.
type RunConfig struct {
	StrategyID string           `json:"strategy_id"`
	Params     map[string]any   `json:"params,omitempty"`
	Symbols    []string         `json:"symbols,omitempty"`
	Portfolio  portfolio.Config `json:"portfolio"`
	Notes      string           `json:"notes,omitempty"`
}

// Run is one backtest task with its summary figures. The full trade list and
// equity curve live in their own tables, keyed by run ID.
type Run struct {
	ID             string            `json:"id"`
	StrategyID     string            `json:"strategy_id"`
	Status         string            `json:"status"`
	InitialCapital float64           `json:"initial_capital"`
	FinalValue     float64           `json:"final_value"`
	ReturnPct      float64           `json:"return_pct"`
	WinRate        float64           `json:"win_rate"`
	ProfitFactor   *float64          `json:"profit_factor"`
	MaxDrawdownPct float64           `json:"max_drawdown_pct"`
	TradeCount     int               `json:"trade_count"`
	Message        string            `json:"message,omitempty"`
	Config         RunConfig         `json:"config"`
	Metrics        portfolio.Metrics `json:"metrics"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    time.Time         `json:"completed_at,omitzero"`
}

// MarshalConfig returns the config snapshot as JSON.
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// RunRequest is the HTTP submission payload.
type RunRequest struct {
	Strategy  string            `json:"strategy" binding:"required"`
	Symbols   []string          `json:"symbols"`
	Params    map[string]any    `json:"params"`
	Portfolio *portfolio.Config `json:"portfolio"`
	Notes     string            `json:"notes"`
}
