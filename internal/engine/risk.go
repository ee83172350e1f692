package engine

// RiskManager derives the exit levels of a trade from its entry.
type RiskManager struct {
	returnTarget float64
	stopBuffer   float64
}

// NewRiskManager creates a RiskManager with the specified thresholds.
//
//   - returnTarget: fractional gain that closes the trade at a profit
//     (e.g. 0.10 for 10%).
//   - stopBuffer: fraction below the entry-day support at which the trade
//     is stopped out (e.g. 0.02 places the stop at 98% of support).
func NewRiskManager(returnTarget, stopBuffer float64) *RiskManager {
	return &RiskManager{
		returnTarget: returnTarget,
		stopBuffer:   stopBuffer,
	}
}

// Levels holds the two exit prices of an open trade.
type Levels struct {
	Target float64
	Stop   float64
}

// Levels computes the target and stop prices for a trade entered at entry
// with the given support level on the entry bar.
func (rm *RiskManager) Levels(entry, support float64) Levels {
	return Levels{
		Target: entry * (1 + rm.returnTarget),
		Stop:   support * (1 - rm.stopBuffer),
	}
}
