package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bullscan/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at        INTEGER NOT NULL,
	return_target     REAL    NOT NULL,
	lookback_days     INTEGER NOT NULL,
	support_window    INTEGER NOT NULL,
	volume_window     INTEGER NOT NULL,
	volume_multiplier REAL    NOT NULL,
	stop_buffer       REAL    NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id            INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	pos               INTEGER NOT NULL,
	symbol            TEXT    NOT NULL,
	skipped           INTEGER NOT NULL,
	entry_date        INTEGER,
	entry_price       REAL,
	exit_date         INTEGER,
	exit_price        REAL,
	exit_reason       TEXT,
	success           INTEGER NOT NULL DEFAULT 0,
	final_price       REAL,
	max_price         REAL,
	total_return_pct  REAL,
	max_drawdown_pct  REAL,
	win_rate_pct      REAL,
	volatility_pct    REAL,
	avg_daily_pct     REAL,
	sharpe_ratio      REAL,
	sortino_ratio     REAL,
	hit_target        INTEGER NOT NULL DEFAULT 0,
	engulfing_count   INTEGER NOT NULL DEFAULT 0,
	breakout_detected INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, pos)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates
// the run tables if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run header and all result rows in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	p := run.Params
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, return_target, lookback_days, support_window,
			volume_window, volume_multiplier, stop_buffer) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UnixMilli(), p.ReturnTarget, p.LookbackDays, p.SupportWindow,
		p.VolumeWindow, p.VolumeMultiplier, p.StopBuffer)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, pos, symbol, skipped, entry_date, entry_price,
			exit_date, exit_price, exit_reason, success, final_price, max_price,
			total_return_pct, max_drawdown_pct, win_rate_pct, volatility_pct,
			avg_daily_pct, sharpe_ratio, sortino_ratio, hit_target,
			engulfing_count, breakout_detected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range run.Results {
		rec := toResultRecord(r)
		var success bool
		if r.Trade != nil {
			success = r.Trade.Success
		}
		_, err := stmt.ExecContext(ctx, id, i, r.Symbol, r.Skipped,
			rec.EntryDate, rec.EntryPrice, rec.ExitDate, rec.ExitPrice, rec.ExitReason,
			success, rec.FinalPrice, rec.MaxPrice, rec.TotalReturnPct, rec.MaxDrawdownPct,
			rec.WinRatePct, rec.VolatilityPct, rec.AvgDailyReturnPct, rec.SharpeRatio,
			rec.SortinoRatio, rec.HitTarget, r.EngulfingCount, r.BreakoutDetected)
		if err != nil {
			return 0, fmt.Errorf("inserting result for %s: %w", r.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// GetRun loads a run and its results in their original order.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*domain.Run, error) {
	run := &domain.Run{ID: id}
	var startedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, return_target, lookback_days, support_window,
			volume_window, volume_multiplier, stop_buffer FROM runs WHERE id = ?`, id).
		Scan(&startedAt, &run.Params.ReturnTarget, &run.Params.LookbackDays,
			&run.Params.SupportWindow, &run.Params.VolumeWindow,
			&run.Params.VolumeMultiplier, &run.Params.StopBuffer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, skipped, entry_date, entry_price, exit_date, exit_price,
			exit_reason, success, final_price, max_price, total_return_pct,
			max_drawdown_pct, win_rate_pct, volatility_pct, avg_daily_pct,
			sharpe_ratio, sortino_ratio, hit_target, engulfing_count, breakout_detected
		FROM results WHERE run_id = ? ORDER BY pos`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		run.Results = append(run.Results, r)
		if r.Skipped {
			run.Skipped = append(run.Skipped, r.Symbol)
		}
	}
	return run, rows.Err()
}

func scanResult(rows *sql.Rows) (domain.Result, error) {
	var (
		r                              domain.Result
		entryDate, exitDate            sql.NullInt64
		entryPrice, exitPrice          sql.NullFloat64
		exitReason                     sql.NullString
		success, hitTarget             bool
		finalPrice, maxPrice           sql.NullFloat64
		totalRet, drawdown, winRate    sql.NullFloat64
		vol, avgDaily, sharpe, sortino sql.NullFloat64
	)
	err := rows.Scan(&r.Symbol, &r.Skipped, &entryDate, &entryPrice, &exitDate, &exitPrice,
		&exitReason, &success, &finalPrice, &maxPrice, &totalRet, &drawdown, &winRate,
		&vol, &avgDaily, &sharpe, &sortino, &hitTarget, &r.EngulfingCount, &r.BreakoutDetected)
	if err != nil {
		return r, err
	}
	if r.Skipped {
		return r, nil
	}

	if entryDate.Valid {
		t := &domain.Trade{
			EntryDate:  time.UnixMilli(entryDate.Int64).UTC(),
			EntryPrice: entryPrice.Float64,
			ExitReason: domain.ExitReason(exitReason.String),
			ExitPrice:  nullFloat(exitPrice),
			Success:    success,
		}
		if exitDate.Valid {
			d := time.UnixMilli(exitDate.Int64).UTC()
			t.ExitDate = &d
		}
		r.Trade = t
	}
	if finalPrice.Valid {
		r.Metrics = &domain.Metrics{
			FinalPrice:          finalPrice.Float64,
			MaxPrice:            maxPrice.Float64,
			TotalReturnPct:      totalRet.Float64,
			MaxDrawdownPct:      drawdown.Float64,
			WinRatePct:          winRate.Float64,
			AnnualVolatilityPct: nullFloat(vol),
			AvgDailyReturnPct:   avgDaily.Float64,
			SharpeRatio:         nullFloat(sharpe),
			SortinoRatio:        nullFloat(sortino),
			HitTarget:           hitTarget,
		}
	}
	return r, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started_at, r.return_target, r.lookback_days,
			COUNT(x.pos), COALESCE(SUM(x.skipped), 0)
		FROM runs r LEFT JOIN results x ON x.run_id = r.id
		GROUP BY r.id ORDER BY r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var startedAt int64
		if err := rows.Scan(&rs.ID, &startedAt, &rs.ReturnTarget, &rs.LookbackDays, &rs.Symbols, &rs.Skipped); err != nil {
			return nil, err
		}
		rs.StartedAt = time.UnixMilli(startedAt).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}
