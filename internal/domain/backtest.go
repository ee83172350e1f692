package domain

import "time"

// ExitReason describes how a simulated trade ended. The empty value marks a
// skipped symbol (no trade was evaluated at all).
type ExitReason string

const (
	ExitTargetHit ExitReason = "target_hit"
	ExitStopLoss  ExitReason = "stop_loss"
	ExitNoExit    ExitReason = "no_exit"
	ExitNone      ExitReason = "none"
)

// Trade is the single round trip simulated for a symbol. ExitDate and
// ExitPrice are nil unless the trade closed on a target or stop.
type Trade struct {
	EntryDate  time.Time
	EntryPrice float64
	ExitDate   *time.Time
	ExitPrice  *float64
	ExitReason ExitReason
	Success    bool
}

// Metrics summarises the close-price path of a symbol over the window.
// Pointer fields are nil when the statistic is undefined.
type Metrics struct {
	FinalPrice          float64
	MaxPrice            float64
	TotalReturnPct      float64
	MaxDrawdownPct      float64
	WinRatePct          float64
	AnnualVolatilityPct *float64
	AvgDailyReturnPct   float64
	SharpeRatio         *float64
	SortinoRatio        *float64
	HitTarget           bool
}

// Result is one row of the backtest table.
type Result struct {
	Symbol           string
	Skipped          bool
	Trade            *Trade   // nil when skipped
	Metrics          *Metrics // nil when skipped
	EngulfingCount   int
	BreakoutDetected bool
}

// SkippedResult returns the null-valued row emitted for a symbol that could
// not be evaluated.
func SkippedResult(symbol string) Result {
	return Result{Symbol: symbol, Skipped: true}
}

// ExitReason returns the trade's exit reason, or "" for a skipped row.
func (r Result) ExitReason() ExitReason {
	if r.Trade == nil {
		return ""
	}
	return r.Trade.ExitReason
}

// BreakoutSuccess reports whether the simulated trade reached its target.
func (r Result) BreakoutSuccess() bool {
	return r.Trade != nil && r.Trade.Success
}

// Params are the knobs of a backtest invocation.
type Params struct {
	ReturnTarget     float64 // fraction, e.g. 0.10 for +10%
	LookbackDays     int     // trailing-high lookback, in bars
	SupportWindow    int     // trailing window for support/resistance
	VolumeWindow     int     // trailing window for average volume
	VolumeMultiplier float64 // breakout volume confirmation factor
	StopBuffer       float64 // stop sits this fraction below support
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		ReturnTarget:     0.10,
		LookbackDays:     30,
		SupportWindow:    10,
		VolumeWindow:     20,
		VolumeMultiplier: 1.5,
		StopBuffer:       0.02,
	}
}

// WithDefaults fills zero-valued fields from DefaultParams.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.ReturnTarget == 0 {
		p.ReturnTarget = d.ReturnTarget
	}
	if p.LookbackDays <= 0 {
		p.LookbackDays = d.LookbackDays
	}
	if p.SupportWindow <= 0 {
		p.SupportWindow = d.SupportWindow
	}
	if p.VolumeWindow <= 0 {
		p.VolumeWindow = d.VolumeWindow
	}
	if p.VolumeMultiplier == 0 {
		p.VolumeMultiplier = d.VolumeMultiplier
	}
	if p.StopBuffer == 0 {
		p.StopBuffer = d.StopBuffer
	}
	return p
}

// Run is a complete batch invocation: its parameters, one result per
// requested symbol, and the symbols that were skipped.
type Run struct {
	ID        int64
	StartedAt time.Time
	Params    Params
	Results   []Result
	Skipped   []string
}
