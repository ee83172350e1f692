// Package backtest drives the breakout backtest across a multi-symbol
// dataset. Each symbol is evaluated by a pure per-symbol pipeline
// (detectors, trade simulation, path metrics) and every requested symbol
// yields exactly one result row, skipped or not.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bullscan/internal/domain"
	"bullscan/internal/engine"
	"bullscan/internal/metrics"
	"bullscan/internal/pattern"
)

// Backtester evaluates symbols under a fixed parameter set. It holds no
// per-symbol state and may be shared between goroutines.
type Backtester struct {
	params domain.Params
	engine *engine.Engine
	log    *slog.Logger
}

// New creates a Backtester. Zero-valued params fall back to defaults.
func New(params domain.Params, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	params = params.WithDefaults()
	return &Backtester{
		params: params,
		engine: engine.NewEngine(engine.NewRiskManager(params.ReturnTarget, params.StopBuffer)),
		log:    log.With("component", "backtest"),
	}
}

// Params returns the effective parameters.
func (bt *Backtester) Params() domain.Params { return bt.params }

// RunSymbol evaluates one symbol's frame. A returned error means the symbol
// must be reported as skipped; panics inside the pipeline are converted to
// errors.
func (bt *Backtester) RunSymbol(symbol string, f *Frame) (res domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Result{}
			err = fmt.Errorf("%s: backtest panicked: %v", symbol, r)
		}
	}()

	s, err := f.Series(symbol)
	if err != nil {
		return domain.Result{}, err
	}
	return bt.evaluate(symbol, s)
}

// evaluate runs detectors, the trade simulator, and the metrics engine over
// a clean series.
func (bt *Backtester) evaluate(symbol string, s domain.Series) (domain.Result, error) {
	p := bt.params

	engulfing := pattern.BullishEngulfing(s)
	support, _ := pattern.SupportResistance(s, p.SupportWindow)
	signals := pattern.DetectBreakouts(s, p.LookbackDays, p.VolumeWindow, p.VolumeMultiplier)
	breakout, found := signals.First()

	trade := bt.engine.Simulate(s, breakout, found, support)

	m, err := metrics.Compute(s.Closes(), p.ReturnTarget)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%s: %w", symbol, err)
	}

	return domain.Result{
		Symbol:           symbol,
		Trade:            &trade,
		Metrics:          &m,
		EngulfingCount:   pattern.CountTrue(engulfing),
		BreakoutDetected: found,
	}, nil
}

// Run evaluates every requested symbol sequentially and returns one result
// per symbol, in input order.
func (bt *Backtester) Run(ctx context.Context, ds Dataset, symbols []string) *domain.Run {
	start := time.Now()
	run := bt.newRun(start, len(symbols))

	if len(ds) == 0 {
		bt.log.Warn("no data fetched for any symbol", "symbols", len(symbols))
	}
	for i, sym := range symbols {
		if ctx.Err() != nil {
			run.Results[i] = domain.SkippedResult(sym)
			continue
		}
		run.Results[i] = bt.runOne(ds, sym)
	}

	bt.finish(run, start)
	return run
}

// RunParallel is Run spread over up to workers goroutines. Output order and
// content match Run.
func (bt *Backtester) RunParallel(ctx context.Context, ds Dataset, symbols []string, workers int) *domain.Run {
	start := time.Now()
	run := bt.newRun(start, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, sym := range symbols {
		g.Go(func() error {
			if gctx.Err() != nil {
				run.Results[i] = domain.SkippedResult(sym)
				return nil
			}
			run.Results[i] = bt.runOne(ds, sym)
			return nil
		})
	}
	_ = g.Wait() // workers never fail; errors become skipped rows

	bt.finish(run, start)
	return run
}

func (bt *Backtester) newRun(start time.Time, n int) *domain.Run {
	return &domain.Run{
		StartedAt: start,
		Params:    bt.params,
		Results:   make([]domain.Result, n),
	}
}

// runOne never fails: any problem with the symbol is logged and turned into
// a skipped row.
func (bt *Backtester) runOne(ds Dataset, sym string) domain.Result {
	f, ok := ds[sym]
	if !ok {
		bt.log.Warn("no data for symbol", "symbol", sym)
		return domain.SkippedResult(sym)
	}
	res, err := bt.RunSymbol(sym, f)
	if err != nil {
		bt.log.Warn("skipping symbol", "symbol", sym, "error", err)
		return domain.SkippedResult(sym)
	}
	bt.log.Debug("symbol evaluated",
		"symbol", sym,
		"breakout", res.BreakoutDetected,
		"exit", res.ExitReason(),
	)
	return res
}

func (bt *Backtester) finish(run *domain.Run, start time.Time) {
	for _, r := range run.Results {
		if r.Skipped {
			run.Skipped = append(run.Skipped, r.Symbol)
		}
	}
	if len(run.Skipped) > 0 {
		bt.log.Info("skipped symbols", "count", len(run.Skipped), "symbols", run.Skipped)
	}
	bt.log.Info("backtest completed",
		"symbols", len(run.Results),
		"skipped", len(run.Skipped),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}
