package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bhavlab/internal/market"
	"bhavlab/internal/portfolio"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// ResultStore persists runs, their trades and equity curves in sqlite
// through gorm. Summary figures are columns for cheap listing; the config
// and extended metrics ride along as JSON.
type ResultStore struct {
	db *gorm.DB
}

type runModel struct {
	ID              string         `gorm:"column:id;primaryKey"`
	StrategyID      string         `gorm:"column:strategy_id;index"`
	Status          string         `gorm:"column:status;index"`
	InitialCapital  float64        `gorm:"column:initial_capital"`
	FinalValue      float64        `gorm:"column:final_value"`
	ReturnPct       float64        `gorm:"column:return_pct"`
	WinRate         float64        `gorm:"column:win_rate"`
	ProfitFactor    *float64       `gorm:"column:profit_factor"`
	MaxDrawdownPct  float64        `gorm:"column:max_drawdown_pct"`
	TradeCount      int            `gorm:"column:trade_count"`
	Message         string         `gorm:"column:message"`
	ConfigJSON      datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	MetricsJSON     datatypes.JSON `gorm:"column:metrics_json;type:TEXT"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
	UpdatedAtUnix   int64          `gorm:"column:updated_at"`
	CompletedAtUnix *int64         `gorm:"column:completed_at"`
}

func (runModel) TableName() string { return "runs" }

type tradeModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	RunID          string  `gorm:"column:run_id;index"`
	Symbol         string  `gorm:"column:symbol"`
	EntryDate      string  `gorm:"column:entry_date"`
	EntryPrice     float64 `gorm:"column:entry_price"`
	ExitDate       string  `gorm:"column:exit_date"`
	ExitPrice      float64 `gorm:"column:exit_price"`
	Quantity       int     `gorm:"column:quantity"`
	InvestedAmount float64 `gorm:"column:invested_amount"`
	ExitAmount     float64 `gorm:"column:exit_amount"`
	GrossPnL       float64 `gorm:"column:gross_pnl"`
	NetPnL         float64 `gorm:"column:net_pnl"`
	PnLPct         float64 `gorm:"column:pnl_pct"`
	HoldingDays    int     `gorm:"column:holding_days"`
	EntryCosts     float64 `gorm:"column:entry_costs"`
	ExitCosts      float64 `gorm:"column:exit_costs"`
	EntryReason    string  `gorm:"column:entry_reason"`
	ExitReason     string  `gorm:"column:exit_reason"`
}

func (tradeModel) TableName() string { return "run_trades" }

type equityModel struct {
	ID    int64   `gorm:"column:id;primaryKey"`
	RunID string  `gorm:"column:run_id;index"`
	Date  string  `gorm:"column:trade_date"`
	Value float64 `gorm:"column:value"`
}

func (equityModel) TableName() string { return "run_equity" }

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &tradeModel{}, &equityModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL allows concurrent HTTP reads while a run is being written.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertRun writes a freshly submitted run.
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := run.MarshalConfig()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	model := runModel{
		ID:             run.ID,
		StrategyID:     run.StrategyID,
		Status:         run.Status,
		InitialCapital: run.InitialCapital,
		Message:        run.Message,
		ConfigJSON:     datatypes.JSON(cfgJSON),
		CreatedAtUnix:  now,
		UpdatedAtUnix:  now,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// UpdateRunStatus transitions a run without touching its figures.
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	payload := map[string]any{
		"status":     status,
		"message":    message,
		"updated_at": now,
	}
	if status == RunStatusDone || status == RunStatusFailed {
		payload["completed_at"] = now
	}
	res := s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveResult stores a completed run: summary columns, extended metrics JSON,
// and the full trade list and equity curve in one transaction.
func (s *ResultStore) SaveResult(ctx context.Context, id string, res *portfolio.Result) error {
	metricsJSON, err := json.Marshal(res.Metrics)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&runModel{}).Where("id = ?", id).Updates(map[string]any{
			"status":           RunStatusDone,
			"initial_capital":  res.InitialValue,
			"final_value":      res.FinalValue,
			"return_pct":       res.TotalReturnPct,
			"win_rate":         res.WinRate,
			"profit_factor":    res.ProfitFactor,
			"max_drawdown_pct": res.Metrics.MaxDrawdownPct,
			"trade_count":      res.TotalTrades,
			"metrics_json":     datatypes.JSON(metricsJSON),
			"updated_at":       now,
			"completed_at":     now,
		})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if len(res.Trades) > 0 {
			trades := make([]tradeModel, 0, len(res.Trades))
			for _, t := range res.Trades {
				trades = append(trades, newTradeModel(id, t))
			}
			if err := tx.CreateInBatches(trades, 200).Error; err != nil {
				return err
			}
		}
		if len(res.EquityCurve) > 0 {
			points := make([]equityModel, 0, len(res.EquityCurve))
			for _, p := range res.EquityCurve {
				points = append(points, equityModel{
					RunID: id,
					Date:  p.Date.Format(market.DateLayout),
					Value: p.Value,
				})
			}
			if err := tx.CreateInBatches(points, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRun reads one run by ID.
func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	var model runModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return Run{}, err
	}
	return runModelToRun(model), nil
}

// ListRuns returns the most recent runs, newest first.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(models))
	for _, m := range models {
		out = append(out, runModelToRun(m))
	}
	return out, nil
}

// ListTrades returns a run's trades in execution order.
func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]portfolio.Trade, error) {
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]portfolio.Trade, 0, len(models))
	for _, m := range models {
		t, err := tradeModelToTrade(m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ListEquity returns a run's equity curve, oldest first.
func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]portfolio.EquityPoint, error) {
	var models []equityModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]portfolio.EquityPoint, 0, len(models))
	for _, m := range models {
		d, err := time.ParseInLocation(market.DateLayout, m.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad equity date %q: %w", runID, m.Date, err)
		}
		out = append(out, portfolio.EquityPoint{Date: d, Value: m.Value})
	}
	return out, nil
}

func newTradeModel(runID string, t portfolio.Trade) tradeModel {
	return tradeModel{
		RunID:          runID,
		Symbol:         t.Symbol,
		EntryDate:      t.EntryDate.Format(market.DateLayout),
		EntryPrice:     t.EntryPrice,
		ExitDate:       t.ExitDate.Format(market.DateLayout),
		ExitPrice:      t.ExitPrice,
		Quantity:       t.Quantity,
		InvestedAmount: t.InvestedAmount,
		ExitAmount:     t.ExitAmount,
		GrossPnL:       t.GrossPnL,
		NetPnL:         t.NetPnL,
		PnLPct:         t.PnLPct,
		HoldingDays:    t.HoldingDays,
		EntryCosts:     t.EntryCosts,
		ExitCosts:      t.ExitCosts,
		EntryReason:    t.EntryReason,
		ExitReason:     t.ExitReason,
	}
}

func tradeModelToTrade(m tradeModel) (portfolio.Trade, error) {
	entry, err := time.ParseInLocation(market.DateLayout, m.EntryDate, time.UTC)
	if err != nil {
		return portfolio.Trade{}, fmt.Errorf("bad entry_date %q: %w", m.EntryDate, err)
	}
	exit, err := time.ParseInLocation(market.DateLayout, m.ExitDate, time.UTC)
	if err != nil {
		return portfolio.Trade{}, fmt.Errorf("bad exit_date %q: %w", m.ExitDate, err)
	}
	return portfolio.Trade{
		Symbol:         m.Symbol,
		EntryDate:      entry,
		EntryPrice:     m.EntryPrice,
		ExitDate:       exit,
		ExitPrice:      m.ExitPrice,
		Quantity:       m.Quantity,
		InvestedAmount: m.InvestedAmount,
		ExitAmount:     m.ExitAmount,
		GrossPnL:       m.GrossPnL,
		NetPnL:         m.NetPnL,
		PnLPct:         m.PnLPct,
		HoldingDays:    m.HoldingDays,
		EntryCosts:     m.EntryCosts,
		ExitCosts:      m.ExitCosts,
		EntryReason:    m.EntryReason,
		ExitReason:     m.ExitReason,
	}, nil
}

func runModelToRun(m runModel) Run {
	run := Run{
		ID:             m.ID,
		StrategyID:     m.StrategyID,
		Status:         m.Status,
		InitialCapital: m.InitialCapital,
		FinalValue:     m.FinalValue,
		ReturnPct:      m.ReturnPct,
		WinRate:        m.WinRate,
		ProfitFactor:   m.ProfitFactor,
		MaxDrawdownPct: m.MaxDrawdownPct,
		TradeCount:     m.TradeCount,
		Message:        m.Message,
		CreatedAt:      time.UnixMilli(m.CreatedAtUnix),
		UpdatedAt:      time.UnixMilli(m.UpdatedAtUnix),
	}
	if len(m.ConfigJSON) > 0 {
		_ = json.Unmarshal(m.ConfigJSON, &run.Config)
	}
	if len(m.MetricsJSON) > 0 {
		_ = json.Unmarshal(m.MetricsJSON, &run.Metrics)
	}
	if m.CompletedAtUnix != nil && *m.CompletedAtUnix > 0 {
		run.CompletedAt = time.UnixMilli(*m.CompletedAtUnix)
	}
	return run
}
