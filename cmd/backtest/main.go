package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"bullscan/internal/backtest"
	"bullscan/internal/config"
	"bullscan/internal/dashboard"
	"bullscan/internal/domain"
	"bullscan/internal/gather"
	"bullscan/internal/gather/us"
	"bullscan/internal/screen"
	"bullscan/internal/store"
	"bullscan/internal/util"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	symbolsFile := flag.String("symbols-file", "", "CSV file with a symbol column")
	noFetch := flag.Bool("no-fetch", false, "use cached bars only, never call the market-data API")
	target := flag.Float64("target", 0, "return target as a fraction, e.g. 0.1 (overrides config)")
	lookback := flag.Int("lookback", 0, "lookback window in calendar days (overrides config)")
	workers := flag.Int("workers", 0, "backtest worker goroutines (default: config or NumCPU)")
	outDir := flag.String("out", "", "output directory (default: config storage.output_dir or ./output)")
	winnersOnly := flag.Bool("winners", false, "print only symbols passing the screen")
	flag.Parse()

	cfgPath := "config/bullscan.yaml"
	if p := os.Getenv("BULLSCAN_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if *target != 0 {
		cfg.Backtest.ReturnTarget = *target
	}
	if *lookback != 0 {
		cfg.Backtest.LookbackDays = *lookback
	}
	params := cfg.Backtest.Params()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	symbols, err := resolveSymbols(ctx, *symbolsFlag, *symbolsFile, cfg, pstore)
	if err != nil {
		log.Fatalf("failed to resolve symbols: %v", err)
	}
	if len(symbols) == 0 {
		log.Fatalf("no symbols: pass -symbols, -symbols-file, or set backtest.symbols")
	}

	// Window: latest finished trading day back LookbackDays calendar days.
	var cal us.CalendarSource
	if cfg.Alpaca.APIKey != "" {
		cal = us.NewCalendarClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	}
	start, end := util.LookbackWindow(us.WindowEnd(cal, time.Now(), logger), params.LookbackDays)
	window := gather.DateRange{Start: start, End: end}

	slog.Info("starting backtest",
		"symbols", len(symbols),
		"window", window.Key(),
		"returnTarget", params.ReturnTarget,
	)

	if !*noFetch {
		if cfg.Alpaca.APIKey == "" {
			slog.Warn("no Alpaca credentials, using cached bars only")
		} else {
			fetchBars(ctx, cfg, pstore, symbols, window, logger)
		}
	}
	if ctx.Err() != nil {
		log.Fatalf("interrupted: %v", ctx.Err())
	}

	ds, err := backtest.LoadDataset(ctx, pstore, domain.MarketUS, symbols, window.Start, window.End)
	if err != nil {
		log.Fatalf("failed to load bars: %v", err)
	}

	n := *workers
	if n <= 0 {
		n = cfg.Backtest.Workers
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}

	runStart := time.Now()
	run := backtest.New(params, logger).RunParallel(ctx, ds, symbols, n)
	elapsed := time.Since(runStart)

	dir := *outDir
	if dir == "" {
		dir = cfg.Storage.OutputDir
	}
	if dir == "" {
		dir = "output"
	}
	if err := writeOutputs(ctx, cfg, dir, run); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}

	winners := screen.Winners(run.Results, screen.FromConfig(cfg.Screen))
	shown := run.Results
	if *winnersOnly {
		shown = winners
	}
	fmt.Println(dashboard.RenderResults(fmt.Sprintf("Breakout backtest %s", window.Key()), shown))
	fmt.Println(dashboard.RenderRunSummary(run, len(winners), elapsed))
}

// resolveSymbols picks the universe: flag list, then file, then config, then
// every symbol already in the cache.
func resolveSymbols(ctx context.Context, list, file string, cfg *config.Config, bars store.BarStore) ([]string, error) {
	switch {
	case list != "":
		return us.ParseSymbolList(list), nil
	case file != "":
		return us.LoadCSVSymbols(file)
	case len(cfg.Backtest.Symbols) > 0:
		return us.ParseSymbolList(strings.Join(cfg.Backtest.Symbols, ",")), nil
	default:
		return bars.ListSymbols(ctx, string(domain.MarketUS))
	}
}

// fetchBars fills the cache for the window. Failures are logged; the
// backtest still runs on whatever is cached.
func fetchBars(ctx context.Context, cfg *config.Config, pstore *store.ParquetStore, symbols []string, window gather.DateRange, logger *slog.Logger) {
	job := cfg.Gather.USDaily
	delay, err := time.ParseDuration(job.RetryDelay)
	if err != nil && job.RetryDelay != "" {
		slog.Warn("invalid gather.us_daily.retry_delay, using default", "value", job.RetryDelay, "error", err)
	}

	var g gather.Gatherer = us.NewDailyBarFetcher(
		us.NewMarketDataClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL),
		pstore,
		cfg.Storage.DataDir,
		us.FetcherConfig{
			BatchSize:       job.BatchSize,
			MaxWorkers:      job.MaxWorkers,
			Retries:         job.Retries,
			RetryDelay:      delay,
			RateLimitPerMin: job.RateLimitPerMin,
			Feed:            cfg.Alpaca.Feed,
		},
		logger,
	)

	stats, err := g.Fetch(ctx, symbols, window)
	if err != nil {
		slog.Error("fetch failed", "gatherer", g.Name(), "error", err)
		return
	}
	if stats.Fetched == 0 && stats.Cached == 0 {
		slog.Warn("no data fetched for any symbol", "requested", stats.Requested)
	}
}

// writeOutputs writes the CSV and Parquet result files and records the run
// in the SQLite history when a database is configured.
func writeOutputs(ctx context.Context, cfg *config.Config, dir string, run *domain.Run) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if cfg.Storage.SQLitePath != "" {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer db.Close()
		if _, err := db.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		slog.Info("run saved", "id", run.ID, "db", cfg.Storage.SQLitePath)
	}

	csvPath := filepath.Join(dir, "backtest_results.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	if err := backtest.WriteCSV(f, run); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", csvPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	pqPath := filepath.Join(dir, "backtest_results.parquet")
	if err := store.WriteResultsParquet(pqPath, run); err != nil {
		return fmt.Errorf("writing %s: %w", pqPath, err)
	}

	slog.Info("results written", "csv", csvPath, "parquet", pqPath, "rows", len(run.Results))
	return nil
}
