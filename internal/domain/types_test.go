package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	if MarketUS != "us" || MarketCN != "cn" {
		t.Error("Market constants have unexpected values")
	}

	r := SkippedResult("AAPL")
	if !r.Skipped || r.Trade != nil || r.Metrics != nil {
		t.Errorf("SkippedResult = %+v, want null-valued skipped row", r)
	}
	if r.ExitReason() != "" {
		t.Errorf("skipped ExitReason = %q, want empty", r.ExitReason())
	}
	if r.BreakoutSuccess() || r.BreakoutDetected || r.EngulfingCount != 0 {
		t.Error("skipped row should carry false/zero counters")
	}
}

func TestSeriesValid(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := Series{
		{Timestamp: day, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Timestamp: day.AddDate(0, 0, 1), Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 0},
	}
	if !s.Valid() {
		t.Fatal("expected well-formed series to be valid")
	}

	bad := append(Series{}, s...)
	bad[1].High = 10.8 // below close
	if bad.Valid() {
		t.Error("high below close should be invalid")
	}

	unordered := Series{s[1], s[0]}
	if unordered.Valid() {
		t.Error("descending timestamps should be invalid")
	}

	if got := s.Closes(); len(got) != 2 || got[0] != 10.5 || got[1] != 11 {
		t.Errorf("Closes() = %v, want [10.5 11]", got)
	}
}

func TestParamsWithDefaults(t *testing.T) {
	p := Params{ReturnTarget: 0.2}.WithDefaults()
	if p.ReturnTarget != 0.2 {
		t.Errorf("ReturnTarget = %v, want 0.2", p.ReturnTarget)
	}
	if p.LookbackDays != 30 || p.SupportWindow != 10 || p.VolumeWindow != 20 {
		t.Errorf("window defaults = %d/%d/%d, want 30/10/20", p.LookbackDays, p.SupportWindow, p.VolumeWindow)
	}
	if p.VolumeMultiplier != 1.5 || p.StopBuffer != 0.02 {
		t.Errorf("VolumeMultiplier/StopBuffer = %v/%v, want 1.5/0.02", p.VolumeMultiplier, p.StopBuffer)
	}
}
