// Package pattern implements the candlestick and price-structure detectors
// that feed the trade simulator. Every detector is a pure function over a
// bar series and returns slices aligned index-for-index with the input.
package pattern

import "bullscan/internal/domain"

// BullishEngulfing flags each bar whose up-body strictly engulfs the prior
// bar's down-body. Index 0 is always false since it has no prior bar.
func BullishEngulfing(s domain.Series) []bool {
	flags := make([]bool, len(s))
	for i := 1; i < len(s); i++ {
		cur, prev := s[i], s[i-1]
		bullish := cur.Close > cur.Open
		prevBearish := prev.Close < prev.Open
		engulfs := cur.Close > prev.Open && cur.Open < prev.Close
		flags[i] = bullish && prevBearish && engulfs
	}
	return flags
}

// CountTrue returns the number of set flags.
func CountTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
