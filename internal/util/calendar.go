package util

import "time"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LookbackWindow returns the inclusive backtest window ending on end's date
// and starting lookbackDays calendar days earlier.
func LookbackWindow(end time.Time, lookbackDays int) (time.Time, time.Time) {
	end = Day(end)
	return end.AddDate(0, 0, -lookbackDays), end
}
