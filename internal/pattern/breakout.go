package pattern

import (
	"math"
	"time"

	"bullscan/internal/domain"
)

// Breakout is the first bar that closed above the prior trailing high on
// confirming volume.
type Breakout struct {
	Index  int
	Date   time.Time
	Close  float64
	Volume int64
}

// BreakoutSignals holds the per-bar output of DetectBreakouts.
type BreakoutSignals struct {
	Flags     []bool
	AvgVolume []float64 // trailing mean volume, current bar included
	PriorHigh []float64 // trailing max high, current bar excluded; NaN at index 0
	series    domain.Series
}

// First returns the earliest flagged breakout, if any.
func (b BreakoutSignals) First() (Breakout, bool) {
	for i, f := range b.Flags {
		if f {
			bar := b.series[i]
			return Breakout{Index: i, Date: bar.Timestamp, Close: bar.Close, Volume: bar.Volume}, true
		}
	}
	return Breakout{}, false
}

// Count returns the number of flagged bars.
func (b BreakoutSignals) Count() int { return CountTrue(b.Flags) }

// DetectBreakouts flags bar i when its close exceeds the highest high of the
// lookback bars before it (bar i excluded) and its volume exceeds volMult
// times the mean volume of the volWindow bars ending at i (bar i included).
// Both windows shrink at the start of the series. Bar 0 has no prior high
// and is never flagged.
func DetectBreakouts(s domain.Series, lookback, volWindow int, volMult float64) BreakoutSignals {
	lookback = max(lookback, 1)
	volWindow = max(volWindow, 1)

	out := BreakoutSignals{
		Flags:     make([]bool, len(s)),
		AvgVolume: make([]float64, len(s)),
		PriorHigh: make([]float64, len(s)),
		series:    s,
	}

	var volSum float64
	for i, bar := range s {
		volSum += float64(bar.Volume)
		if i >= volWindow {
			volSum -= float64(s[i-volWindow].Volume)
		}
		out.AvgVolume[i] = volSum / float64(min(i+1, volWindow))

		out.PriorHigh[i] = math.NaN()
		if i == 0 {
			continue
		}
		hi := s[i-1].High
		for j := max(0, i-lookback); j < i-1; j++ {
			hi = max(hi, s[j].High)
		}
		out.PriorHigh[i] = hi

		out.Flags[i] = bar.Close > hi && float64(bar.Volume) > out.AvgVolume[i]*volMult
	}
	return out
}
