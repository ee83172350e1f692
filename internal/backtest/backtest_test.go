package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"bullscan/internal/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var day0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

// frame builds a frame from rows of {open, high, low, close, volume}.
func frame(rows ...[5]float64) *Frame {
	bars := make([]domain.Bar, len(rows))
	for i, r := range rows {
		bars[i] = domain.Bar{
			Timestamp: day0.AddDate(0, 0, i),
			Open:      r[0], High: r[1], Low: r[2], Close: r[3],
			Volume: int64(r[4]),
		}
	}
	return FrameFromBars(bars)
}

func flatRows(n int, price, vol float64) [][5]float64 {
	rows := make([][5]float64, n)
	for i := range rows {
		rows[i] = [5]float64{price, price, price, price, vol}
	}
	return rows
}

func TestScenarioBreakoutOnLastBarNoExit(t *testing.T) {
	rows := flatRows(19, 100, 1000)
	rows = append(rows, [5]float64{100, 105, 100, 105, 3000})

	bt := New(domain.DefaultParams(), quiet)
	res, err := bt.RunSymbol("FLAT", frame(rows...))
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}
	if !res.BreakoutDetected {
		t.Fatal("BreakoutDetected = false, want true")
	}
	if !res.Trade.EntryDate.Equal(day0.AddDate(0, 0, 19)) || res.Trade.EntryPrice != 105 {
		t.Errorf("entry = %v@%v, want last bar @105", res.Trade.EntryDate, res.Trade.EntryPrice)
	}
	if res.ExitReason() != domain.ExitNoExit {
		t.Errorf("ExitReason = %q, want no_exit", res.ExitReason())
	}
	if res.BreakoutSuccess() || res.Trade.ExitPrice != nil {
		t.Errorf("no_exit trade should be unsuccessful without exit price: %+v", res.Trade)
	}
	if res.EngulfingCount != 0 {
		t.Errorf("EngulfingCount = %d, want 0 on doji bars", res.EngulfingCount)
	}
}

func TestScenarioTargetHitNextDay(t *testing.T) {
	rows := flatRows(5, 90, 1000)
	rows = append(rows,
		[5]float64{90, 101, 90, 100, 5000},  // breakout, entry 100
		[5]float64{100, 111, 99, 108, 1000}, // high clears 110
	)

	bt := New(domain.Params{ReturnTarget: 0.10}, quiet)
	res, err := bt.RunSymbol("JUMP", frame(rows...))
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}
	if res.ExitReason() != domain.ExitTargetHit {
		t.Fatalf("ExitReason = %q, want target_hit", res.ExitReason())
	}
	if !res.BreakoutSuccess() {
		t.Error("BreakoutSuccess = false, want true")
	}
	want := res.Trade.EntryPrice * (1 + 0.10)
	if *res.Trade.ExitPrice != want {
		t.Errorf("ExitPrice = %v, want entry*(1+target) = %v", *res.Trade.ExitPrice, want)
	}
	if math.Abs(*res.Trade.ExitPrice-110) > 1e-9 {
		t.Errorf("ExitPrice = %v, want 110", *res.Trade.ExitPrice)
	}
}

func TestScenarioFlatReturnsNullRatios(t *testing.T) {
	bt := New(domain.DefaultParams(), quiet)
	res, err := bt.RunSymbol("STILL", frame(flatRows(10, 50, 1000)...))
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}
	if res.Metrics.SharpeRatio != nil || res.Metrics.SortinoRatio != nil {
		t.Errorf("ratios = %v/%v, want nil/nil", res.Metrics.SharpeRatio, res.Metrics.SortinoRatio)
	}
	if res.Metrics.WinRatePct != 0 {
		t.Errorf("WinRatePct = %v, want 0", res.Metrics.WinRatePct)
	}
	if res.BreakoutDetected || res.ExitReason() != domain.ExitNone || res.BreakoutSuccess() {
		t.Errorf("flat series: breakout=%v exit=%q success=%v, want false/none/false",
			res.BreakoutDetected, res.ExitReason(), res.BreakoutSuccess())
	}
	if res.Trade.EntryPrice != 50 {
		t.Errorf("EntryPrice = %v, want first close 50", res.Trade.EntryPrice)
	}
}

func TestFrameSeriesErrors(t *testing.T) {
	f := frame(flatRows(3, 10, 100)...)
	delete(f.Columns, ColVolume)
	if _, err := f.Series("X"); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("missing column error = %v, want ErrMissingColumns", err)
	}

	f = frame(flatRows(2, 10, 100)...)
	f.Columns[ColClose][1] = math.NaN()
	if _, err := f.Series("X"); !errors.Is(err, ErrInsufficientBars) {
		t.Errorf("one clean bar error = %v, want ErrInsufficientBars", err)
	}

	var nilFrame *Frame
	if _, err := nilFrame.Series("X"); !errors.Is(err, ErrInsufficientBars) {
		t.Errorf("nil frame error = %v, want ErrInsufficientBars", err)
	}
}

func TestFrameSeriesDropsNullRows(t *testing.T) {
	f := frame(flatRows(4, 10, 100)...)
	f.Columns[ColLow][2] = math.NaN()
	s, err := f.Series("X")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(s) != 3 {
		t.Fatalf("len(series) = %d, want 3", len(s))
	}
	if !s[2].Timestamp.Equal(day0.AddDate(0, 0, 3)) {
		t.Errorf("third clean bar = %v, want day 3", s[2].Timestamp)
	}
}

func testDataset() (Dataset, []string) {
	broken := frame(flatRows(5, 10, 100)...)
	delete(broken.Columns, ColHigh)

	short := frame(flatRows(1, 10, 100)...)

	up := flatRows(5, 20, 1000)
	up = append(up, [5]float64{20, 23, 20, 22, 4000}, [5]float64{22, 25, 21, 24.5, 1000})

	ds := Dataset{
		"FLAT":   frame(flatRows(10, 50, 1000)...),
		"UP":     frame(up...),
		"BROKEN": broken,
		"SHORT":  short,
	}
	return ds, []string{"FLAT", "MISSING", "UP", "BROKEN", "SHORT", "UP"}
}

func TestRunOneRowPerSymbol(t *testing.T) {
	ds, symbols := testDataset()
	run := New(domain.DefaultParams(), quiet).Run(context.Background(), ds, symbols)

	if len(run.Results) != len(symbols) {
		t.Fatalf("len(Results) = %d, want %d", len(run.Results), len(symbols))
	}
	for i, sym := range symbols {
		if run.Results[i].Symbol != sym {
			t.Errorf("Results[%d].Symbol = %q, want %q", i, run.Results[i].Symbol, sym)
		}
	}

	wantSkipped := map[string]bool{"MISSING": true, "BROKEN": true, "SHORT": true}
	if len(run.Skipped) != len(wantSkipped) {
		t.Errorf("Skipped = %v, want %d symbols", run.Skipped, len(wantSkipped))
	}
	for _, r := range run.Results {
		if r.Skipped != wantSkipped[r.Symbol] {
			t.Errorf("%s: Skipped = %v, want %v", r.Symbol, r.Skipped, wantSkipped[r.Symbol])
		}
		if r.Skipped && (r.Trade != nil || r.Metrics != nil || r.ExitReason() != "" || r.BreakoutDetected) {
			t.Errorf("%s: skipped row carries values: %+v", r.Symbol, r)
		}
		if !r.BreakoutDetected && !r.Skipped {
			if r.ExitReason() != domain.ExitNone || r.BreakoutSuccess() {
				t.Errorf("%s: no breakout but exit=%q success=%v", r.Symbol, r.ExitReason(), r.BreakoutSuccess())
			}
		}
		if r.Metrics != nil && r.Metrics.MaxDrawdownPct < 0 {
			t.Errorf("%s: negative drawdown %v", r.Symbol, r.Metrics.MaxDrawdownPct)
		}
	}

	up := run.Results[2]
	if !up.BreakoutDetected || up.ExitReason() != domain.ExitTargetHit {
		t.Errorf("UP: breakout=%v exit=%q, want true/target_hit", up.BreakoutDetected, up.ExitReason())
	}
}

func TestRunEmptyDataset(t *testing.T) {
	symbols := []string{"AAA", "BBB"}
	run := New(domain.DefaultParams(), quiet).Run(context.Background(), nil, symbols)
	if len(run.Results) != 2 || len(run.Skipped) != 2 {
		t.Fatalf("results/skipped = %d/%d, want 2/2", len(run.Results), len(run.Skipped))
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, run); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("csv rows = %d, want header + 2", len(recs))
	}
	if len(recs[0]) != len(Columns) || recs[0][0] != "symbol" || recs[0][17] != "sortino_ratio" {
		t.Errorf("header = %v", recs[0])
	}
	// symbol,entry_price,...: everything null except flags and counters.
	if recs[1][0] != "AAA" || recs[1][1] != "" || recs[1][5] != "" || recs[1][6] != "false" || recs[1][9] != "0" {
		t.Errorf("skipped row = %v", recs[1])
	}
}

func TestRunParallelMatchesRun(t *testing.T) {
	ds, symbols := testDataset()
	bt := New(domain.DefaultParams(), quiet)
	seq := bt.Run(context.Background(), ds, symbols)
	par := bt.RunParallel(context.Background(), ds, symbols, 3)

	if len(par.Results) != len(seq.Results) {
		t.Fatalf("parallel rows = %d, want %d", len(par.Results), len(seq.Results))
	}
	for i := range seq.Results {
		a, b := Row(seq.Results[i]), Row(par.Results[i])
		for j := range a {
			if a[j] != b[j] {
				t.Errorf("row %d col %s: parallel %q, sequential %q", i, Columns[j], b[j], a[j])
			}
		}
	}
	if len(par.Skipped) != len(seq.Skipped) {
		t.Errorf("parallel skipped = %v, want %v", par.Skipped, seq.Skipped)
	}
}

func TestRowRounding(t *testing.T) {
	exit := 110.00000000000001
	sharpe := 1.23456
	r := domain.Result{
		Symbol:           "RND",
		BreakoutDetected: true,
		EngulfingCount:   2,
		Trade:            &domain.Trade{EntryPrice: 100.004, ExitPrice: &exit, ExitReason: domain.ExitTargetHit, Success: true},
		Metrics: &domain.Metrics{
			FinalPrice:        101.236,
			MaxPrice:          112,
			TotalReturnPct:    12.3456,
			AvgDailyReturnPct: 0.123456,
			SharpeRatio:       &sharpe,
			HitTarget:         true,
		},
	}
	row := Row(r)
	want := map[string]string{
		"entry_price":           "100.00",
		"exit_price":            "110.00",
		"final_price":           "101.24",
		"exit_reason":           "target_hit",
		"breakout_success":      "true",
		"total_return_pct":      "12.35",
		"return_30d":            "12.35",
		"avg_daily_return_pct":  "0.1235",
		"sharpe_ratio":          "1.235",
		"sortino_ratio":         "",
		"volatility_annual_pct": "",
	}
	for i, c := range Columns {
		if w, ok := want[c]; ok && row[i] != w {
			t.Errorf("%s = %q, want %q", c, row[i], w)
		}
	}
}

func TestRunZeroCloseIsSkipped(t *testing.T) {
	ds := Dataset{
		"ZERO": frame(
			[5]float64{10, 10, 10, 10, 100},
			[5]float64{0, 0, 0, 0, 100},
			[5]float64{10, 10, 10, 10, 100},
		),
		"ZFIRST": frame(
			[5]float64{0, 0, 0, 0, 100},
			[5]float64{10, 10, 10, 10, 100},
		),
		"FLAT": frame(flatRows(10, 50, 1000)...),
	}
	symbols := []string{"ZERO", "ZFIRST", "FLAT"}
	run := New(domain.DefaultParams(), quiet).Run(context.Background(), ds, symbols)

	if len(run.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(run.Results))
	}
	for _, r := range run.Results[:2] {
		if !r.Skipped || r.Metrics != nil {
			t.Errorf("%s: Skipped = %v metrics = %+v, want skipped without metrics", r.Symbol, r.Skipped, r.Metrics)
		}
	}
	if run.Results[2].Skipped {
		t.Error("FLAT skipped, want evaluated")
	}
	if len(run.Skipped) != 2 || run.Skipped[0] != "ZERO" || run.Skipped[1] != "ZFIRST" {
		t.Errorf("Skipped = %v, want [ZERO ZFIRST]", run.Skipped)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, run); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("CSV rows = %d, want header + 3", len(recs))
	}
}

func TestRowNonFiniteValuesAreNull(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	r := domain.Result{
		Symbol: "ODD",
		Trade:  &domain.Trade{EntryPrice: 10, ExitReason: domain.ExitNoExit},
		Metrics: &domain.Metrics{
			FinalPrice:          10,
			MaxPrice:            10,
			TotalReturnPct:      inf,
			AnnualVolatilityPct: &nan,
			SharpeRatio:         &inf,
		},
	}

	row := Row(r)
	for i, c := range Columns {
		switch c {
		case "total_return_pct", "return_30d", "volatility_annual_pct", "sharpe_ratio":
			if row[i] != "" {
				t.Errorf("%s = %q, want empty", c, row[i])
			}
		}
	}
	if row[1] != "10.00" {
		t.Errorf("entry_price = %q, want 10.00", row[1])
	}
	if !math.IsNaN(Round(inf, 2)) || !math.IsNaN(Round(nan, 2)) {
		t.Error("Round of a non-finite value should be NaN")
	}
}

func TestRunRecoversPipelinePanic(t *testing.T) {
	rows := flatRows(5, 90, 1000)
	rows = append(rows, [5]float64{90, 101, 90, 100, 5000})
	ds := Dataset{"BOOM": frame(rows...)}

	// A Backtester without an engine panics once a breakout is simulated.
	bt := &Backtester{params: domain.DefaultParams(), log: quiet}

	if _, err := bt.RunSymbol("BOOM", ds["BOOM"]); err == nil {
		t.Fatal("RunSymbol error = nil, want recovered panic")
	}

	symbols := []string{"BOOM", "MISSING"}
	for name, run := range map[string]*domain.Run{
		"Run":         bt.Run(context.Background(), ds, symbols),
		"RunParallel": bt.RunParallel(context.Background(), ds, symbols, 2),
	} {
		if len(run.Results) != len(symbols) {
			t.Fatalf("%s: len(Results) = %d, want %d", name, len(run.Results), len(symbols))
		}
		boom := run.Results[0]
		if boom.Symbol != "BOOM" || !boom.Skipped || boom.Trade != nil {
			t.Errorf("%s: BOOM row = %+v, want skipped", name, boom)
		}
		if len(run.Skipped) != 2 || run.Skipped[0] != "BOOM" {
			t.Errorf("%s: Skipped = %v, want BOOM listed", name, run.Skipped)
		}
	}
}

func TestFrameSeriesDropsDuplicateDates(t *testing.T) {
	f := frame(flatRows(3, 10, 100)...)
	f.Dates = append(f.Dates, f.Dates[1])
	for _, c := range RequiredColumns {
		f.Columns[c] = append(f.Columns[c], 12)
	}

	s, err := f.Series("DUP")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(s) != 3 {
		t.Fatalf("len(series) = %d, want 3", len(s))
	}
	for i := 1; i < len(s); i++ {
		if !s[i].Timestamp.After(s[i-1].Timestamp) {
			t.Errorf("dates not strictly increasing at %d: %v, %v", i, s[i-1].Timestamp, s[i].Timestamp)
		}
	}
	if s[1].Close != 12 {
		t.Errorf("duplicate day close = %v, want the later row's 12", s[1].Close)
	}
}
