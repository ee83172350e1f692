package us

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"bullscan/internal/domain"
	"bullscan/internal/gather"
	"bullscan/internal/store"
	"bullscan/internal/util"
)

var _ gather.Gatherer = (*DailyBarFetcher)(nil)

// Fetch defaults.
const (
	DefaultBatchSize  = 50
	DefaultMaxWorkers = 4
	DefaultRetries    = 2
	DefaultRetryDelay = 2 * time.Second
	DefaultFeed       = "sip"
)

// BarSource is the multi-symbol bars call of the Alpaca market-data API.
// *marketdata.Client satisfies it.
type BarSource interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// BarCache is the local bar store the fetcher fills.
type BarCache interface {
	store.BarStore
	HasRange(ctx context.Context, symbol, market string, start, end time.Time) bool
}

// FetcherConfig tunes batching, concurrency, and retry behaviour. Zero
// values take the package defaults; RateLimitPerMin 0 means unlimited.
type FetcherConfig struct {
	BatchSize       int
	MaxWorkers      int
	Retries         int
	RetryDelay      time.Duration
	RateLimitPerMin int
	Feed            string
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Feed == "" {
		c.Feed = DefaultFeed
	}
	return c
}

// DailyBarFetcher fills the bar cache with daily OHLCV bars for US equities
// from the Alpaca market-data API. Symbols already cached for the window,
// or known to return nothing for it, are not requested again.
type DailyBarFetcher struct {
	source  BarSource
	cache   BarCache
	cfg     FetcherConfig
	limiter *util.RateLimiter
	dataDir string
	log     *slog.Logger
}

// NewMarketDataClient returns an Alpaca market-data client.
func NewMarketDataClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// NewDailyBarFetcher creates a fetcher writing into cache. Tracker files are
// kept under dataDir/us/daily; an empty dataDir disables them.
func NewDailyBarFetcher(source BarSource, cache BarCache, dataDir string, cfg FetcherConfig, log *slog.Logger) *DailyBarFetcher {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &DailyBarFetcher{
		source:  source,
		cache:   cache,
		cfg:     cfg,
		limiter: util.NewRateLimiter(cfg.RateLimitPerMin),
		dataDir: dataDir,
		log:     log.With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (f *DailyBarFetcher) Name() string { return "us-daily" }

// Fetch requests bars for every symbol not yet cached over r, in batches of
// cfg.BatchSize spread over cfg.MaxWorkers goroutines. A batch that still
// fails after cfg.Retries attempts is logged and counted in Stats.Failed.
func (f *DailyBarFetcher) Fetch(ctx context.Context, symbols []string, r gather.DateRange) (gather.Stats, error) {
	var stats gather.Stats
	market := string(domain.MarketUS)

	var tracker *progressTracker
	if f.dataDir != "" {
		t, err := newProgressTracker(filepath.Join(f.dataDir, market, "daily"), r.Key())
		if err != nil {
			return stats, fmt.Errorf("creating progress tracker: %w", err)
		}
		defer t.Close()
		tracker = t
	}

	seen := make(map[string]struct{}, len(symbols))
	var remaining []string
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		stats.Requested++

		switch {
		case f.cache.HasRange(ctx, sym, market, r.Start, r.End):
			stats.Cached++
		case tracker != nil && tracker.IsTriedEmpty(sym):
			stats.Skipped++
		default:
			remaining = append(remaining, sym)
		}
	}

	if len(remaining) == 0 {
		f.log.Info("all symbols cached", "symbols", stats.Requested)
		return stats, nil
	}

	var batches [][]string
	for i := 0; i < len(remaining); i += f.cfg.BatchSize {
		batches = append(batches, remaining[i:min(i+f.cfg.BatchSize, len(remaining))])
	}

	f.log.Info("fetching daily bars",
		"window", r.Key(),
		"requested", stats.Requested,
		"cached", stats.Cached,
		"remaining", len(remaining),
		"batches", len(batches),
	)

	var (
		mu       sync.Mutex
		runStart = time.Now()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.MaxWorkers)
	for i, batch := range batches {
		g.Go(func() error {
			fetched, empty, err := f.fetchBatch(gctx, batch, r, tracker)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.Failed += len(batch)
				f.log.Error("batch fetch failed",
					"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
					"error", err,
				)
				return nil
			}
			stats.Fetched += fetched
			stats.Empty += empty
			f.log.Debug("batch done",
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"hits", fetched,
				"empty", empty,
				"elapsed", time.Since(runStart).Round(time.Millisecond),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	f.log.Info("fetch complete",
		"fetched", stats.Fetched,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return stats, nil
}

// fetchBatch fetches, stores, and classifies one batch.
func (f *DailyBarFetcher) fetchBatch(ctx context.Context, batch []string, r gather.DateRange, tracker *progressTracker) (fetched, empty int, err error) {
	var bars []domain.Bar
	err = util.Retry(ctx, f.cfg.Retries, f.cfg.RetryDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var ferr error
		bars, ferr = f.fetchMultiBars(batch, r.Start, r.End)
		if ferr != nil {
			f.log.Warn("fetch attempt failed", "symbols", len(batch), "error", ferr)
		}
		return ferr
	})
	if err != nil {
		return 0, 0, err
	}

	hit := make(map[string]struct{})
	for _, b := range bars {
		hit[b.Symbol] = struct{}{}
	}
	var emptySymbols []string
	for _, sym := range batch {
		if _, ok := hit[sym]; !ok {
			emptySymbols = append(emptySymbols, sym)
		}
	}

	if len(bars) > 0 {
		if err := f.cache.WriteBars(ctx, bars); err != nil {
			return 0, 0, fmt.Errorf("writing bars: %w", err)
		}
	}
	if tracker != nil && len(emptySymbols) > 0 {
		if err := tracker.MarkEmpty(emptySymbols); err != nil {
			f.log.Error("marking empty failed", "error", err)
		}
	}
	return len(hit), len(emptySymbols), nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (f *DailyBarFetcher) fetchMultiBars(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	multiBars, err := f.source.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end.AddDate(0, 0, 1), // covers the whole end day
		Feed:      marketdata.Feed(f.cfg.Feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  util.Day(ab.Timestamp),
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
