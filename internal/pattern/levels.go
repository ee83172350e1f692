package pattern

import "bullscan/internal/domain"

// DefaultLevelWindow is the trailing window used for support/resistance.
const DefaultLevelWindow = 10

// SupportResistance returns, for every bar, the minimum low (support) and
// maximum high (resistance) over the trailing window ending at that bar.
// The window shrinks at the start of the series down to a single bar.
func SupportResistance(s domain.Series, window int) (support, resistance []float64) {
	if window < 1 {
		window = 1
	}
	support = make([]float64, len(s))
	resistance = make([]float64, len(s))
	for i := range s {
		lo, hi := s[i].Low, s[i].High
		for j := max(0, i-window+1); j < i; j++ {
			lo = min(lo, s[j].Low)
			hi = max(hi, s[j].High)
		}
		support[i] = lo
		resistance[i] = hi
	}
	return support, resistance
}
