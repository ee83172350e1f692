// Package metrics computes return and risk statistics over a close-price
// path. Nothing here depends on how (or whether) a trade was simulated.
package metrics

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"

	"bullscan/internal/domain"
)

// TradingDaysPerYear annualises daily statistics. It is applied as-is even
// when the window is shorter than a year.
const TradingDaysPerYear = 252

// ErrInsufficientData is returned when the path yields no daily returns.
var ErrInsufficientData = errors.New("insufficient data: need at least two closes")

// ErrNonPositivePrice is returned when the first close is not a positive
// finite number, so returns relative to it are undefined.
var ErrNonPositivePrice = errors.New("first close is not positive")

// ErrNonFinite is returned when a required statistic comes out NaN or
// infinite, e.g. after a zero close inside the path.
var ErrNonFinite = errors.New("non-finite metric")

// DailyReturns returns close[i]/close[i-1] - 1 for i >= 1.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// MaxDrawdownPct returns the deepest fall from the running peak close, as a
// non-negative percentage of that peak. The peak includes the current bar.
func MaxDrawdownPct(closes []float64) float64 {
	var peak, dd float64
	for i, c := range closes {
		if i == 0 || c > peak {
			peak = c
		}
		if peak > 0 {
			if d := (peak - c) / peak * 100; d > dd {
				dd = d
			}
		}
	}
	return dd
}

// Compute builds the metrics record for the given closes. returnTarget is the
// fractional gain used for the hit-target flag.
func Compute(closes []float64, returnTarget float64) (domain.Metrics, error) {
	rets := DailyReturns(closes)
	if len(rets) == 0 {
		return domain.Metrics{}, ErrInsufficientData
	}

	first, last := closes[0], closes[len(closes)-1]
	if !(first > 0) || math.IsInf(first, 0) {
		return domain.Metrics{}, ErrNonPositivePrice
	}
	maxClose := first
	for _, c := range closes {
		maxClose = max(maxClose, c)
	}

	m := domain.Metrics{
		FinalPrice:        last,
		MaxPrice:          maxClose,
		TotalReturnPct:    (last - first) / first * 100,
		MaxDrawdownPct:    MaxDrawdownPct(closes),
		WinRatePct:        winRate(rets),
		AvgDailyReturnPct: mean(rets) * 100,
		HitTarget:         maxClose >= first*(1+returnTarget),
	}

	for _, v := range []float64{m.FinalPrice, m.MaxPrice, m.TotalReturnPct, m.MaxDrawdownPct, m.WinRatePct, m.AvgDailyReturnPct} {
		if !finite(v) {
			return domain.Metrics{}, ErrNonFinite
		}
	}

	annual := math.Sqrt(TradingDaysPerYear)
	sd, ok := stddev(rets)
	if ok && finite(sd) {
		m.AnnualVolatilityPct = ptr(sd * annual * 100)
	}
	m.SharpeRatio = ratio(mean(rets), sd, ok, annual)

	var downside []float64
	for _, r := range rets {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	dsd, dok := stddev(downside)
	m.SortinoRatio = ratio(mean(rets), dsd, dok, annual)

	return m, nil
}

// ratio returns num/den*scale, or nil when the denominator is undefined or
// zero.
func ratio(num, den float64, defined bool, scale float64) *float64 {
	if !defined || den == 0 {
		return nil
	}
	v := num / den * scale
	if !finite(v) {
		return nil
	}
	return &v
}

func winRate(rets []float64) float64 {
	wins := 0
	for _, r := range rets {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(rets)) * 100
}

func mean(xs []float64) float64 {
	mu, err := stats.Mean(xs)
	if err != nil {
		return 0
	}
	return mu
}

// stddev is the sample (n-1) standard deviation. It is undefined for fewer
// than two values.
func stddev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	sd, err := stats.StandardDeviationSample(xs)
	if err != nil {
		return 0, false
	}
	return sd, true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func ptr(v float64) *float64 { return &v }
