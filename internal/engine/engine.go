// Package engine simulates the single breakout trade taken on a symbol. The
// simulation is an explicit state machine stepped once per bar, so the
// order of the exit checks on a bar is fixed: the target is tested before
// the stop.
package engine

import (
	"fmt"

	"bullscan/internal/domain"
	"bullscan/internal/pattern"
)

// State is a node of the trade state machine.
type State int

const (
	StateNoSignal State = iota
	StateEntered
	StateTargetHit
	StateStopLoss
	StateNoExit
)

func (s State) String() string {
	switch s {
	case StateNoSignal:
		return "no_signal"
	case StateEntered:
		return "entered"
	case StateTargetHit:
		return "target_hit"
	case StateStopLoss:
		return "stop_loss"
	case StateNoExit:
		return "no_exit"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateTargetHit || s == StateStopLoss || s == StateNoExit
}

// Engine runs one trade simulation per call. It holds no per-symbol state and
// is safe for concurrent use.
type Engine struct {
	riskChecker *RiskManager
}

// NewEngine creates a new Engine wired with the given risk manager.
func NewEngine(riskChecker *RiskManager) *Engine {
	return &Engine{riskChecker: riskChecker}
}

// position is the mutable state of a single simulation.
type position struct {
	state  State
	levels Levels
	trade  domain.Trade
}

// Simulate walks the series from the breakout bar (inclusive) to the end and
// returns the resulting trade. support must be aligned with the series. When
// ok is false no breakout was found: the trade is reported with exit reason
// "none" and the first close as its entry price.
func (e *Engine) Simulate(s domain.Series, b pattern.Breakout, ok bool, support []float64) domain.Trade {
	p := &position{state: StateNoSignal}

	if !ok || len(s) == 0 {
		if len(s) > 0 {
			p.trade.EntryDate = s[0].Timestamp
			p.trade.EntryPrice = s[0].Close
		}
		p.trade.ExitReason = domain.ExitNone
		return p.trade
	}

	e.enter(p, s[b.Index], support[b.Index])
	for i := b.Index; i < len(s) && !p.state.Terminal(); i++ {
		e.step(p, s[i])
	}
	if p.state == StateEntered {
		p.state = StateNoExit
		p.trade.ExitReason = domain.ExitNoExit
	}
	return p.trade
}

// enter transitions NoSignal -> Entered at the close of the breakout bar.
func (e *Engine) enter(p *position, bar domain.Bar, support float64) {
	p.state = StateEntered
	p.levels = e.riskChecker.Levels(bar.Close, support)
	p.trade.EntryDate = bar.Timestamp
	p.trade.EntryPrice = bar.Close
}

// step evaluates one bar while Entered. Target is checked first.
func (e *Engine) step(p *position, bar domain.Bar) {
	if p.state != StateEntered {
		return
	}
	switch {
	case bar.High >= p.levels.Target:
		e.exit(p, bar, p.levels.Target, StateTargetHit, domain.ExitTargetHit)
		p.trade.Success = true
	case bar.Low <= p.levels.Stop:
		e.exit(p, bar, p.levels.Stop, StateStopLoss, domain.ExitStopLoss)
	}
}

func (e *Engine) exit(p *position, bar domain.Bar, price float64, to State, reason domain.ExitReason) {
	date := bar.Timestamp
	p.state = to
	p.trade.ExitDate = &date
	p.trade.ExitPrice = &price
	p.trade.ExitReason = reason
}
