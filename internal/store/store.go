// Package store defines storage interfaces for the daily bar cache and the
// backtest run history, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"bullscan/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunSummary is the header of a persisted backtest run.
type RunSummary struct {
	ID           int64
	StartedAt    time.Time
	ReturnTarget float64
	LookbackDays int
	Symbols      int
	Skipped      int
}

// RunStore persists backtest runs and their result tables.
type RunStore interface {
	// SaveRun stores the run with all of its results and returns its ID.
	SaveRun(ctx context.Context, run *domain.Run) (int64, error)

	// GetRun loads a stored run, results in their original order.
	GetRun(ctx context.Context, id int64) (*domain.Run, error)

	// ListRuns returns the most recent run headers, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}
