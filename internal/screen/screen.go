// Package screen picks winners out of a backtest result table.
package screen

import (
	"cmp"
	"slices"

	"bullscan/internal/backtest"
	"bullscan/internal/config"
	"bullscan/internal/domain"
)

// Criteria are the thresholds a symbol must meet to count as a winner.
// Percentages are in percent units, ratios are plain numbers.
type Criteria struct {
	MinReturnPct    float64
	MaxDrawdownPct  float64
	MinWinRatePct   float64
	MinSharpe       float64
	MinSortino      float64
	MinEngulfing    int
	RequireBreakout bool
}

// DefaultCriteria returns the stock winner thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		MinReturnPct:   10,
		MaxDrawdownPct: 5,
		MinWinRatePct:  60,
		MinSharpe:      1,
		MinSortino:     1,
	}
}

// FromConfig builds criteria from the screen config section. Zero
// thresholds keep their defaults.
func FromConfig(c config.ScreenConfig) Criteria {
	cr := DefaultCriteria()
	if c.MinReturnPct != 0 {
		cr.MinReturnPct = c.MinReturnPct
	}
	if c.MaxDrawdownPct != 0 {
		cr.MaxDrawdownPct = c.MaxDrawdownPct
	}
	if c.MinWinRatePct != 0 {
		cr.MinWinRatePct = c.MinWinRatePct
	}
	if c.MinSharpe != 0 {
		cr.MinSharpe = c.MinSharpe
	}
	if c.MinSortino != 0 {
		cr.MinSortino = c.MinSortino
	}
	cr.MinEngulfing = c.MinEngulfing
	cr.RequireBreakout = c.RequireBreakout
	return cr
}

// Pass reports whether r meets every threshold. Values are compared as
// exported, rounded to their display precision. Skipped rows and rows with
// an undefined Sharpe or Sortino ratio never pass.
func (c Criteria) Pass(r domain.Result) bool {
	m := r.Metrics
	if r.Skipped || m == nil || m.SharpeRatio == nil || m.SortinoRatio == nil {
		return false
	}
	if c.RequireBreakout && !r.BreakoutDetected {
		return false
	}
	return r.EngulfingCount >= c.MinEngulfing &&
		backtest.Round(m.TotalReturnPct, 2) >= c.MinReturnPct &&
		backtest.Round(m.MaxDrawdownPct, 2) <= c.MaxDrawdownPct &&
		backtest.Round(m.WinRatePct, 2) >= c.MinWinRatePct &&
		backtest.Round(*m.SharpeRatio, 3) >= c.MinSharpe &&
		backtest.Round(*m.SortinoRatio, 3) >= c.MinSortino
}

// Winners returns the passing results, best total return first and ties
// broken by symbol.
func Winners(results []domain.Result, c Criteria) []domain.Result {
	var out []domain.Result
	for _, r := range results {
		if c.Pass(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Result) int {
		if n := cmp.Compare(b.Metrics.TotalReturnPct, a.Metrics.TotalReturnPct); n != 0 {
			return n
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	return out
}
