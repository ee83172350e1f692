// Package domain defines the core value types shared across bullscan:
// price bars, simulated trades, path metrics, and backtest results.
package domain

import "time"

// Market identifies the exchange group a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one OHLCV record for a single symbol and trading day.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Series is a date-ascending sequence of bars for one symbol.
type Series []Bar

// Closes returns the close prices of the series in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Valid reports whether every bar satisfies the OHLC envelope
// (high >= max(open, close), low <= min(open, close), volume >= 0) and the
// timestamps strictly increase.
func (s Series) Valid() bool {
	for i, b := range s {
		if b.Volume < 0 || b.High < b.Low {
			return false
		}
		if b.High < max(b.Open, b.Close) || b.Low > min(b.Open, b.Close) {
			return false
		}
		if i > 0 && !b.Timestamp.After(s[i-1].Timestamp) {
			return false
		}
	}
	return true
}
