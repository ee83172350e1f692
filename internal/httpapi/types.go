// Package httpapi serves stored backtest runs and the bar cache index as a
// read-only JSON API.
package httpapi

import (
	"math"

	"bullscan/internal/backtest"
	"bullscan/internal/domain"
	"bullscan/internal/store"
	"bullscan/pkg/bullscan"
)

const dateFormat = "2006-01-02"

func roundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	r := backtest.Round(*v, places)
	if math.IsNaN(r) {
		return nil
	}
	return &r
}

func rounded(v float64, places int32) *float64 {
	return roundPtr(&v, places)
}

// toResultJSON converts a result row, rounding numbers the way the CSV
// export does.
func toResultJSON(r domain.Result) bullscan.Result {
	out := bullscan.Result{
		Symbol:           r.Symbol,
		Skipped:          r.Skipped,
		ExitReason:       string(r.ExitReason()),
		BreakoutDetected: r.BreakoutDetected,
		BreakoutSuccess:  r.BreakoutSuccess(),
		EngulfingCount:   r.EngulfingCount,
	}
	if t := r.Trade; t != nil {
		out.EntryDate = t.EntryDate.Format(dateFormat)
		out.EntryPrice = rounded(t.EntryPrice, 2)
		if t.ExitDate != nil {
			out.ExitDate = t.ExitDate.Format(dateFormat)
		}
		out.ExitPrice = roundPtr(t.ExitPrice, 2)
	}
	if m := r.Metrics; m != nil {
		out.FinalPrice = rounded(m.FinalPrice, 2)
		out.MaxPrice = rounded(m.MaxPrice, 2)
		out.HitTarget = m.HitTarget
		out.TotalReturnPct = rounded(m.TotalReturnPct, 2)
		out.MaxDrawdownPct = rounded(m.MaxDrawdownPct, 2)
		out.WinRatePct = rounded(m.WinRatePct, 2)
		out.VolatilityPct = roundPtr(m.AnnualVolatilityPct, 2)
		out.AvgDailyReturnPct = rounded(m.AvgDailyReturnPct, 4)
		out.SharpeRatio = roundPtr(m.SharpeRatio, 3)
		out.SortinoRatio = roundPtr(m.SortinoRatio, 3)
	}
	return out
}

func toResultsJSON(results []domain.Result) []bullscan.Result {
	out := make([]bullscan.Result, len(results))
	for i, r := range results {
		out[i] = toResultJSON(r)
	}
	return out
}

func toRunJSON(run *domain.Run) bullscan.Run {
	p := run.Params
	skipped := run.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return bullscan.Run{
		ID:        run.ID,
		StartedAt: run.StartedAt,
		Params: bullscan.Params{
			ReturnTarget:     p.ReturnTarget,
			LookbackDays:     p.LookbackDays,
			SupportWindow:    p.SupportWindow,
			VolumeWindow:     p.VolumeWindow,
			VolumeMultiplier: p.VolumeMultiplier,
			StopBuffer:       p.StopBuffer,
		},
		Results: toResultsJSON(run.Results),
		Skipped: skipped,
	}
}

func toSummariesJSON(runs []store.RunSummary) []bullscan.RunSummary {
	out := make([]bullscan.RunSummary, len(runs))
	for i, r := range runs {
		out[i] = bullscan.RunSummary{
			ID:           r.ID,
			StartedAt:    r.StartedAt,
			ReturnTarget: r.ReturnTarget,
			LookbackDays: r.LookbackDays,
			Symbols:      r.Symbols,
			Skipped:      r.Skipped,
		}
	}
	return out
}
