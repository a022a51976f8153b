// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"chan-analyzer/internal/analysis/chanlun"
	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
	now       func() time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
		now:       time.Now,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- One row per stored analysis run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		range_from DATETIME,
		range_to DATETIME,
		bars INTEGER NOT NULL,
		strokes INTEGER NOT NULL,
		segments INTEGER NOT NULL,
		hubs INTEGER NOT NULL,
		signals INTEGER NOT NULL,
		fractal_window INTEGER NOT NULL,
		oscillator TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		bar_index INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		price REAL NOT NULL,
		hub_id INTEGER,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS hubs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		hub_id INTEGER NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		strength REAL NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id);
	CREATE INDEX IF NOT EXISTS idx_hubs_run ON hubs(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles from the database. A zero bound is open.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?`
	args := []interface{}{symbol, timeframe}

	if !from.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, to.UTC())
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return parseSQLiteTime(latest.String)
}

// ListSeries returns every stored symbol/timeframe pair with its extent.
func (s *SQLiteStore) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles
		GROUP BY symbol, timeframe
		ORDER BY symbol, timeframe
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var series []Series
	for rows.Next() {
		var sr Series
		var from, to string
		if err := rows.Scan(&sr.Symbol, &sr.Timeframe, &sr.Count, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		if sr.From, err = parseSQLiteTime(from); err != nil {
			return nil, err
		}
		if sr.To, err = parseSQLiteTime(to); err != nil {
			return nil, err
		}
		series = append(series, sr)
	}
	return series, rows.Err()
}

// Aggregates come back as text because SQLite drops the column's declared type.
var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ============================================================================
// Run Methods
// ============================================================================

// SaveRun stores a run summary with its signals and hubs in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, meta RunMeta, res *chanlun.Result) (*models.AnalysisRun, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil result", errors.ErrInvalidInput)
	}

	summary := res.Summary()
	run := &models.AnalysisRun{
		ID:            uuid.NewString(),
		Symbol:        meta.Symbol,
		Timeframe:     meta.Timeframe,
		CreatedAt:     s.now().UTC(),
		Bars:          summary.Bars,
		Strokes:       summary.Strokes,
		Segments:      summary.Segments,
		Hubs:          summary.Hubs,
		Signals:       len(res.Signals),
		FractalWindow: meta.FractalWindow,
		Oscillator:    meta.Oscillator,
	}
	if n := len(res.Bars); n > 0 {
		run.From = res.Bars[0].Timestamp.UTC()
		run.To = res.Bars[n-1].Timestamp.UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, symbol, timeframe, created_at, range_from, range_to, bars, strokes, segments, hubs, signals, fractal_window, oscillator)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Symbol, run.Timeframe, run.CreatedAt, run.From, run.To, run.Bars, run.Strokes, run.Segments, run.Hubs, run.Signals, run.FractalWindow, run.Oscillator)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	sigStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals (run_id, kind, bar_index, timestamp, price, hub_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer sigStmt.Close()

	for _, sig := range res.Signals {
		var hubID sql.NullInt64
		if sig.HubID > 0 {
			hubID = sql.NullInt64{Int64: int64(sig.HubID), Valid: true}
		}
		if _, err := sigStmt.ExecContext(ctx, run.ID, string(sig.Kind), sig.BarIndex, sig.Timestamp.UTC(), sig.Price, hubID); err != nil {
			return nil, fmt.Errorf("failed to insert signal: %w", err)
		}
	}

	hubStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hubs (run_id, hub_id, start_time, end_time, high, low, strength)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer hubStmt.Close()

	for _, h := range res.Hubs {
		if _, err := hubStmt.ExecContext(ctx, run.ID, h.ID, h.StartTime.UTC(), h.EndTime.UTC(), h.High, h.Low, h.Strength); err != nil {
			return nil, fmt.Errorf("failed to insert hub: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return run, nil
}

const runColumns = "id, symbol, timeframe, created_at, range_from, range_to, bars, strokes, segments, hubs, signals, fractal_window, oscillator"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (models.AnalysisRun, error) {
	var r models.AnalysisRun
	var from, to sql.NullTime
	err := row.Scan(&r.ID, &r.Symbol, &r.Timeframe, &r.CreatedAt, &from, &to,
		&r.Bars, &r.Strokes, &r.Segments, &r.Hubs, &r.Signals, &r.FractalWindow, &r.Oscillator)
	if err != nil {
		return r, err
	}
	if from.Valid {
		r.From = from.Time
	}
	if to.Valid {
		r.To = to.Time
	}
	return r, nil
}

// GetRuns retrieves stored runs, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]models.AnalysisRun, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, filter.Timeframe)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// GetSignals retrieves the signals of a run in bar order.
func (s *SQLiteStore) GetSignals(ctx context.Context, runID string, filter SignalFilter) ([]models.SignalRecord, error) {
	query := "SELECT run_id, kind, bar_index, timestamp, price, hub_id FROM signals WHERE run_id = ?"
	args := []interface{}{runID}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}

	query += " ORDER BY bar_index ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.SignalRecord
	for rows.Next() {
		var rec models.SignalRecord
		var kind string
		var hubID sql.NullInt64
		if err := rows.Scan(&rec.RunID, &kind, &rec.BarIndex, &rec.Timestamp, &rec.Price, &hubID); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		rec.Kind = models.SignalKind(kind)
		if hubID.Valid {
			rec.HubID = int(hubID.Int64)
		}
		signals = append(signals, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}

// GetHubs retrieves the hubs of a run in ID order.
func (s *SQLiteStore) GetHubs(ctx context.Context, runID string) ([]models.HubRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, hub_id, start_time, end_time, high, low, strength
		FROM hubs WHERE run_id = ? ORDER BY hub_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hubs: %w", err)
	}
	defer rows.Close()

	var hubs []models.HubRecord
	for rows.Next() {
		var h models.HubRecord
		if err := rows.Scan(&h.RunID, &h.HubID, &h.StartTime, &h.EndTime, &h.High, &h.Low, &h.Strength); err != nil {
			return nil, fmt.Errorf("failed to scan hub: %w", err)
		}
		hubs = append(hubs, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hubs: %w", err)
	}

	return hubs, nil
}

// DeleteRun removes a run with its signals and hubs.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	return nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t.UTC(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}

// ImportKey names the sync entry recording the last import of a series.
func ImportKey(symbol, timeframe string) string {
	return "import:" + symbol + ":" + timeframe
}
