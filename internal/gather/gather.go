// Package gather defines the market-data fetch contract used to fill the bar
// cache before a backtest.
package gather

import (
	"context"
	"time"
)

// Gatherer fetches bars for a symbol list into a local cache.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Fetch makes sure the cache covers r for every symbol it can. Per-batch
	// failures are logged and counted, not returned; the error is reserved
	// for setup problems and cancellation.
	Fetch(ctx context.Context, symbols []string, r DateRange) (Stats, error)
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Key identifies the range as "<start>_<end>" in YYYY-MM-DD form.
func (r DateRange) Key() string {
	return r.Start.Format("2006-01-02") + "_" + r.End.Format("2006-01-02")
}

// Stats summarises one Fetch call.
type Stats struct {
	Requested int // distinct symbols asked for
	Cached    int // already in the cache, not fetched
	Skipped   int // known empty for this range, not fetched
	Fetched   int // returned bars and were written
	Empty     int // fetched but returned no bars
	Failed    int // in batches that failed after retries
}
