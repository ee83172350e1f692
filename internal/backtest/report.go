package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"bullscan/internal/domain"
)

// Columns is the fixed column set of the result table.
var Columns = []string{
	"symbol",
	"entry_price",
	"final_price",
	"max_price",
	"exit_price",
	"exit_reason",
	"hit_10pct_target",
	"breakout_detected",
	"breakout_success",
	"bullish_engulfing_count",
	"total_return_pct",
	"return_30d",
	"max_drawdown",
	"win_rate",
	"volatility_annual_pct",
	"avg_daily_return_pct",
	"sharpe_ratio",
	"sortino_ratio",
}

// Display precision per column kind.
const (
	pricePlaces = 2
	pctPlaces   = 2
	dailyPlaces = 4
	ratioPlaces = 3
)

// Round rounds v half away from zero to the given decimal places. NaN and
// infinities come back as NaN, which fails every threshold comparison.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// num formats v at fixed precision; non-finite values are exported as null.
func num(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func optNum(v *float64, places int32) string {
	if v == nil {
		return ""
	}
	return num(*v, places)
}

// Row formats a result as strings aligned with Columns. Null values are
// empty strings.
func Row(r domain.Result) []string {
	row := make([]string, len(Columns))
	row[0] = r.Symbol
	row[5] = string(r.ExitReason())
	row[6] = strconv.FormatBool(r.Metrics != nil && r.Metrics.HitTarget)
	row[7] = strconv.FormatBool(r.BreakoutDetected)
	row[8] = strconv.FormatBool(r.BreakoutSuccess())
	row[9] = strconv.Itoa(r.EngulfingCount)

	if t := r.Trade; t != nil {
		row[1] = num(t.EntryPrice, pricePlaces)
		row[4] = optNum(t.ExitPrice, pricePlaces)
	}
	if m := r.Metrics; m != nil {
		row[2] = num(m.FinalPrice, pricePlaces)
		row[3] = num(m.MaxPrice, pricePlaces)
		row[10] = num(m.TotalReturnPct, pctPlaces)
		row[11] = row[10]
		row[12] = num(m.MaxDrawdownPct, pctPlaces)
		row[13] = num(m.WinRatePct, pctPlaces)
		row[14] = optNum(m.AnnualVolatilityPct, pctPlaces)
		row[15] = num(m.AvgDailyReturnPct, dailyPlaces)
		row[16] = optNum(m.SharpeRatio, ratioPlaces)
		row[17] = optNum(m.SortinoRatio, ratioPlaces)
	}
	return row
}

// WriteCSV writes the run's result table, header first. The header is
// written even when the run has no rows.
func WriteCSV(w io.Writer, run *domain.Run) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range run.Results {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
