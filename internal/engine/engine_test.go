package engine

import (
	"math"
	"testing"
	"time"

	"bullscan/internal/domain"
	"bullscan/internal/pattern"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) domain.Bar {
	return domain.Bar{Symbol: "TEST", Timestamp: day0.AddDate(0, 0, i), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func supportFor(s domain.Series) []float64 {
	sup, _ := pattern.SupportResistance(s, pattern.DefaultLevelWindow)
	return sup
}

func TestRiskManagerLevels(t *testing.T) {
	entry, support, target, buffer := 100.0, 90.0, 0.10, 0.02
	rm := NewRiskManager(target, buffer)
	lv := rm.Levels(entry, support)
	if want := entry * (1 + target); lv.Target != want {
		t.Errorf("Target = %v, want %v", lv.Target, want)
	}
	if want := support * (1 - buffer); lv.Stop != want {
		t.Errorf("Stop = %v, want %v", lv.Stop, want)
	}
	if math.Abs(lv.Target-110) > 1e-9 || math.Abs(lv.Stop-88.2) > 1e-9 {
		t.Errorf("levels = %v/%v, want about 110/88.2", lv.Target, lv.Stop)
	}
}

func TestSimulateNoBreakout(t *testing.T) {
	e := NewEngine(NewRiskManager(0.10, 0.02))
	s := domain.Series{bar(0, 50, 51, 49, 50.5), bar(1, 50.5, 52, 50, 51)}

	tr := e.Simulate(s, pattern.Breakout{}, false, supportFor(s))
	if tr.ExitReason != domain.ExitNone {
		t.Errorf("ExitReason = %q, want %q", tr.ExitReason, domain.ExitNone)
	}
	if tr.EntryPrice != 50.5 {
		t.Errorf("EntryPrice = %v, want first close 50.5", tr.EntryPrice)
	}
	if tr.Success || tr.ExitPrice != nil || tr.ExitDate != nil {
		t.Errorf("no-breakout trade should have no exit: %+v", tr)
	}
}

func TestSimulateTargetHitNextDay(t *testing.T) {
	e := NewEngine(NewRiskManager(0.10, 0.02))
	s := domain.Series{
		bar(0, 95, 96, 94, 95),
		bar(1, 96, 101, 95, 100), // entry at 100
		bar(2, 100, 111, 99, 108),
	}
	tr := e.Simulate(s, pattern.Breakout{Index: 1, Date: s[1].Timestamp, Close: 100}, true, supportFor(s))

	if tr.ExitReason != domain.ExitTargetHit || !tr.Success {
		t.Fatalf("trade = %+v, want successful target_hit", tr)
	}
	entry, target := 100.0, 0.10
	if want := entry * (1 + target); *tr.ExitPrice != want {
		t.Errorf("ExitPrice = %v, want %v", *tr.ExitPrice, want)
	}
	if !tr.ExitDate.Equal(s[2].Timestamp) {
		t.Errorf("ExitDate = %v, want %v", tr.ExitDate, s[2].Timestamp)
	}
	if !tr.EntryDate.Equal(s[1].Timestamp) || tr.EntryPrice != 100 {
		t.Errorf("entry = %v@%v, want %v@100", tr.EntryDate, tr.EntryPrice, s[1].Timestamp)
	}
}

func TestSimulateTargetWinsSameBar(t *testing.T) {
	e := NewEngine(NewRiskManager(0.10, 0.02))
	s := domain.Series{
		bar(0, 95, 96, 94, 95),
		bar(1, 96, 101, 95, 100),
		bar(2, 100, 115, 80, 100), // touches both target and stop
	}
	tr := e.Simulate(s, pattern.Breakout{Index: 1}, true, supportFor(s))
	if tr.ExitReason != domain.ExitTargetHit {
		t.Errorf("ExitReason = %q, want target_hit when both levels trade", tr.ExitReason)
	}
}

func TestSimulateStopLoss(t *testing.T) {
	e := NewEngine(NewRiskManager(0.10, 0.02))
	s := domain.Series{
		bar(0, 95, 96, 94, 95),
		bar(1, 96, 101, 95, 100),
		bar(2, 100, 102, 96, 97),
		bar(3, 97, 98, 90, 91),
	}
	sup := supportFor(s)
	tr := e.Simulate(s, pattern.Breakout{Index: 1}, true, sup)

	if tr.ExitReason != domain.ExitStopLoss || tr.Success {
		t.Fatalf("trade = %+v, want unsuccessful stop_loss", tr)
	}
	// Support at the entry bar is min(94, 95) = 94.
	support, buffer := 94.0, 0.02
	if want := support * (1 - buffer); *tr.ExitPrice != want {
		t.Errorf("ExitPrice = %v, want %v", *tr.ExitPrice, want)
	}
	if !tr.ExitDate.Equal(s[3].Timestamp) {
		t.Errorf("ExitDate = %v, want %v", tr.ExitDate, s[3].Timestamp)
	}
}

func TestSimulateEntryBarCanExit(t *testing.T) {
	e := NewEngine(NewRiskManager(0.10, 0.02))
	s := domain.Series{
		bar(0, 95, 96, 94, 95),
		bar(1, 96, 112, 95, 100), // high already clears 110
	}
	tr := e.Simulate(s, pattern.Breakout{Index: 1}, true, supportFor(s))
	if tr.ExitReason != domain.ExitTargetHit || !tr.ExitDate.Equal(s[1].Timestamp) {
		t.Errorf("trade = %+v, want target_hit on the entry bar", tr)
	}
}

func TestSimulateNoExit(t *testing.T) {
	e := NewEngine(NewRiskManager(0.10, 0.02))
	s := domain.Series{
		bar(0, 95, 96, 94, 95),
		bar(1, 96, 101, 95, 100),
		bar(2, 100, 104, 98, 103),
	}
	tr := e.Simulate(s, pattern.Breakout{Index: 1}, true, supportFor(s))
	if tr.ExitReason != domain.ExitNoExit || tr.Success || tr.ExitPrice != nil {
		t.Errorf("trade = %+v, want no_exit without exit price", tr)
	}
}

func TestStateString(t *testing.T) {
	if StateTargetHit.String() != string(domain.ExitTargetHit) {
		t.Errorf("StateTargetHit = %q", StateTargetHit.String())
	}
	if StateEntered.Terminal() || !StateNoExit.Terminal() {
		t.Error("Terminal() classification is wrong")
	}
}
