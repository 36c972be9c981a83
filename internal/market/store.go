package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Manifest summarises what the store holds for one symbol.
type Manifest struct {
	Symbol     string `json:"symbol"`
	MinDate    string `json:"min_date"`
	MaxDate    string `json:"max_date"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
}

// Store keeps daily bars in a single sqlite file, one row per symbol+date.
// It is the "validated OHLCV provider" side of the system: the backtester
// only ever sees Series values loaded from here.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("candle store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, trade_date)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			symbol       TEXT PRIMARY KEY,
			min_date     TEXT,
			max_date     TEXT,
			rows         INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertDaily upserts bars for a symbol (duplicate dates are overwritten)
// and refreshes the symbol's manifest row.
func (s *Store) InsertDaily(ctx context.Context, symbol string, candles []Candle) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol cannot be empty")
	}
	if len(candles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, trade_date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, trade_date) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, c := range candles {
		day := c.Date.Format(DateLayout)
		if _, err := stmt.ExecContext(ctx, symbol, day, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := s.refreshManifest(ctx, symbol); err != nil {
		return count, err
	}
	return count, nil
}

func (s *Store) refreshManifest(ctx context.Context, symbol string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manifest (symbol, min_date, max_date, rows, last_sync_at)
		SELECT ?, MIN(trade_date), MAX(trade_date), COUNT(1), ?
		FROM bars WHERE symbol = ?
		ON CONFLICT(symbol) DO UPDATE SET
		    min_date=excluded.min_date,
		    max_date=excluded.max_date,
		    rows=excluded.rows,
		    last_sync_at=excluded.last_sync_at`, symbol, now, symbol)
	return err
}

// LoadSeries reads the full validated history of one symbol, oldest first.
func (s *Store) LoadSeries(ctx context.Context, symbol string) (*Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_date, open, high, low, close, volume
		FROM bars WHERE symbol = ?
		ORDER BY trade_date ASC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candles []Candle
	for rows.Next() {
		var day string
		var c Candle
		if err := rows.Scan(&day, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		d, err := time.ParseInLocation(DateLayout, day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s: bad trade_date %q: %w", symbol, day, err)
		}
		c.Date = d
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no bars stored for %s", symbol)
	}
	return NewSeries(symbol, candles)
}

// LoadAll loads every stored symbol into a Series map.
func (s *Store) LoadAll(ctx context.Context) (map[string]*Series, error) {
	symbols, err := s.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Series, len(symbols))
	for _, sym := range symbols {
		series, err := s.LoadSeries(ctx, sym)
		if err != nil {
			return nil, err
		}
		out[sym] = series
	}
	return out, nil
}

// ListSymbols returns the stored symbols in lexicographic order.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM manifest ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ManifestFor returns the manifest row for one symbol.
func (s *Store) ManifestFor(ctx context.Context, symbol string) (Manifest, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, min_date, max_date, rows, last_sync_at
		FROM manifest WHERE symbol = ?`, symbol)
	var m Manifest
	if err := row.Scan(&m.Symbol, &m.MinDate, &m.MaxDate, &m.Rows, &m.LastSyncAt); err != nil {
		if err == sql.ErrNoRows {
			return Manifest{}, fmt.Errorf("no data stored for %s", symbol)
		}
		return Manifest{}, err
	}
	return m, nil
}
