package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"bullscan/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk. It is the
// market-data cache the backtest reads from.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// ResultRecord is the Parquet schema of one backtest result row. Optional
// fields are nil for undefined values and skipped symbols.
type ResultRecord struct {
	Symbol            string   `parquet:"symbol"`
	Skipped           bool     `parquet:"skipped"`
	EntryDate         *int64   `parquet:"entry_date,optional"` // Unix ms
	EntryPrice        *float64 `parquet:"entry_price,optional"`
	ExitDate          *int64   `parquet:"exit_date,optional"`  // Unix ms
	ExitPrice         *float64 `parquet:"exit_price,optional"`
	ExitReason        *string  `parquet:"exit_reason,optional"`
	FinalPrice        *float64 `parquet:"final_price,optional"`
	MaxPrice          *float64 `parquet:"max_price,optional"`
	HitTarget         bool     `parquet:"hit_target"`
	BreakoutDetected  bool     `parquet:"breakout_detected"`
	BreakoutSuccess   bool     `parquet:"breakout_success"`
	EngulfingCount    int64    `parquet:"bullish_engulfing_count"`
	TotalReturnPct    *float64 `parquet:"total_return_pct,optional"`
	MaxDrawdownPct    *float64 `parquet:"max_drawdown_pct,optional"`
	WinRatePct        *float64 `parquet:"win_rate_pct,optional"`
	VolatilityPct     *float64 `parquet:"volatility_annual_pct,optional"`
	AvgDailyReturnPct *float64 `parquet:"avg_daily_return_pct,optional"`
	SharpeRatio       *float64 `parquet:"sharpe_ratio,optional"`
	SortinoRatio      *float64 `parquet:"sortino_ratio,optional"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return s.WriteBarsForMarket(bars, string(domain.MarketUS))
}

// WriteBarsForMarket writes bars to Parquet grouped by symbol and year under
// the given market directory. Existing files are merged, newer bars win.
func (s *ParquetStore) WriteBarsForMarket(bars []domain.Bar, market string) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Timestamp.UTC().Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     k.symbol,
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, market, time.Date(k.year, 1, 1, 0, 0, 0, 0, time.UTC))

		// A missing file just means nothing to merge.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time
// range, oldest first.
func (s *ParquetStore) ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.barPath(symbol, market, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     r.Symbol,
				Timestamp:  ts,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				TradeCount: r.TradeCount,
				VWAP:       r.VWAP,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the given market.
func (s *ParquetStore) ListSymbols(_ context.Context, market string) ([]string, error) {
	dir := filepath.Join(s.DataDir, market, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// HasRange reports whether the cache holds bars for symbol on both the first
// and the last day of [start, end]. Weekends and holidays at either edge
// make this conservative; a false answer only costs a refetch.
func (s *ParquetStore) HasRange(ctx context.Context, symbol, market string, start, end time.Time) bool {
	bars, err := s.ReadBars(ctx, symbol, market, start, end)
	if err != nil || len(bars) == 0 {
		return false
	}
	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	return !first.After(start.AddDate(0, 0, 4)) && !last.Before(end.AddDate(0, 0, -4))
}

// ---------------------------------------------------------------------------
// Result export
// ---------------------------------------------------------------------------

// WriteResultsParquet writes the run's result rows to path.
func WriteResultsParquet(path string, run *domain.Run) error {
	records := make([]ResultRecord, len(run.Results))
	for i, r := range run.Results {
		records[i] = toResultRecord(r)
	}
	return writeParquetFile(path, records)
}

// ReadResultsParquet reads result rows written by WriteResultsParquet.
func ReadResultsParquet(path string) ([]ResultRecord, error) {
	return readParquetFile[ResultRecord](path)
}

func toResultRecord(r domain.Result) ResultRecord {
	rec := ResultRecord{
		Symbol:           r.Symbol,
		Skipped:          r.Skipped,
		BreakoutDetected: r.BreakoutDetected,
		BreakoutSuccess:  r.BreakoutSuccess(),
		EngulfingCount:   int64(r.EngulfingCount),
	}
	if t := r.Trade; t != nil {
		rec.EntryDate = ptr(t.EntryDate.UnixMilli())
		rec.EntryPrice = ptr(t.EntryPrice)
		if t.ExitDate != nil {
			rec.ExitDate = ptr(t.ExitDate.UnixMilli())
		}
		rec.ExitPrice = t.ExitPrice
		rec.ExitReason = ptr(string(t.ExitReason))
	}
	if m := r.Metrics; m != nil {
		rec.FinalPrice = ptr(m.FinalPrice)
		rec.MaxPrice = ptr(m.MaxPrice)
		rec.HitTarget = m.HitTarget
		rec.TotalReturnPct = ptr(m.TotalReturnPct)
		rec.MaxDrawdownPct = ptr(m.MaxDrawdownPct)
		rec.WinRatePct = ptr(m.WinRatePct)
		rec.VolatilityPct = m.AnnualVolatilityPct
		rec.AvgDailyReturnPct = ptr(m.AvgDailyReturnPct)
		rec.SharpeRatio = m.SharpeRatio
		rec.SortinoRatio = m.SortinoRatio
	}
	return rec
}

func ptr[T any](v T) *T { return &v }

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol, market string, t time.Time) string {
	year := fmt.Sprintf("%d", t.Year())
	return filepath.Join(s.DataDir, market, "daily", strings.ToUpper(symbol), year+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
