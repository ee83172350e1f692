// Package bullscan is the Go client for the bullscan-server run-history API.
package bullscan

import "time"

// RunSummary is one entry of the run listing.
type RunSummary struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"startedAt"`
	ReturnTarget float64   `json:"returnTarget"`
	LookbackDays int       `json:"lookbackDays"`
	Symbols      int       `json:"symbols"`
	Skipped      int       `json:"skipped"`
}

// Params are the backtest parameters a run was made with.
type Params struct {
	ReturnTarget     float64 `json:"returnTarget"`
	LookbackDays     int     `json:"lookbackDays"`
	SupportWindow    int     `json:"supportWindow"`
	VolumeWindow     int     `json:"volumeWindow"`
	VolumeMultiplier float64 `json:"volumeMultiplier"`
	StopBuffer       float64 `json:"stopBuffer"`
}

// Result is one row of a run's result table. Numbers are rounded to display
// precision; nil pointers are undefined values.
type Result struct {
	Symbol            string   `json:"symbol"`
	Skipped           bool     `json:"skipped,omitempty"`
	EntryDate         string   `json:"entryDate,omitempty"` // YYYY-MM-DD
	EntryPrice        *float64 `json:"entryPrice"`
	ExitDate          string   `json:"exitDate,omitempty"`
	ExitPrice         *float64 `json:"exitPrice"`
	ExitReason        string   `json:"exitReason,omitempty"`
	FinalPrice        *float64 `json:"finalPrice"`
	MaxPrice          *float64 `json:"maxPrice"`
	HitTarget         bool     `json:"hitTarget"`
	BreakoutDetected  bool     `json:"breakoutDetected"`
	BreakoutSuccess   bool     `json:"breakoutSuccess"`
	EngulfingCount    int      `json:"engulfingCount"`
	TotalReturnPct    *float64 `json:"totalReturnPct"`
	MaxDrawdownPct    *float64 `json:"maxDrawdownPct"`
	WinRatePct        *float64 `json:"winRatePct"`
	VolatilityPct     *float64 `json:"volatilityAnnualPct"`
	AvgDailyReturnPct *float64 `json:"avgDailyReturnPct"`
	SharpeRatio       *float64 `json:"sharpeRatio"`
	SortinoRatio      *float64 `json:"sortinoRatio"`
}

// Run is a stored backtest run with all of its rows.
type Run struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	Params    Params    `json:"params"`
	Results   []Result  `json:"results"`
	Skipped   []string  `json:"skipped"`
}

// WinnersResponse is the screened subset of a run.
type WinnersResponse struct {
	RunID   int64    `json:"runId"`
	Winners []Result `json:"winners"`
}

// SymbolsResponse lists the symbols held in the bar cache.
type SymbolsResponse struct {
	Market  string   `json:"market"`
	Symbols []string `json:"symbols"`
}
