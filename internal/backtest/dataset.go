package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"bullscan/internal/domain"
	"bullscan/internal/store"
)

// Canonical column names of a Frame.
const (
	ColClose  = "Close"
	ColOpen   = "Open"
	ColHigh   = "High"
	ColLow    = "Low"
	ColVolume = "Volume"
)

// RequiredColumns lists the columns a frame must carry to be backtested.
var RequiredColumns = []string{ColClose, ColOpen, ColHigh, ColLow, ColVolume}

var (
	ErrMissingColumns   = errors.New("missing required columns")
	ErrInsufficientBars = errors.New("insufficient clean bars")
)

// MinBars is the fewest clean bars a symbol needs to be evaluated.
const MinBars = 2

// Frame is one symbol's date-indexed price table as delivered by the
// market-data cache. A NaN cell marks a missing value.
type Frame struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// Dataset maps a ticker symbol to its frame. Symbols may be absent.
type Dataset map[string]*Frame

// FrameFromBars converts bars into a frame with the canonical columns.
func FrameFromBars(bars []domain.Bar) *Frame {
	f := &Frame{
		Dates:   make([]time.Time, len(bars)),
		Columns: make(map[string][]float64, len(RequiredColumns)),
	}
	for _, c := range RequiredColumns {
		f.Columns[c] = make([]float64, len(bars))
	}
	for i, b := range bars {
		f.Dates[i] = b.Timestamp
		f.Columns[ColOpen][i] = b.Open
		f.Columns[ColHigh][i] = b.High
		f.Columns[ColLow][i] = b.Low
		f.Columns[ColClose][i] = b.Close
		f.Columns[ColVolume][i] = float64(b.Volume)
	}
	return f
}

// Series validates the frame and returns its clean bars. Rows with any
// missing field are dropped.
func (f *Frame) Series(symbol string) (domain.Series, error) {
	if f == nil {
		return nil, fmt.Errorf("%s: %w", symbol, ErrInsufficientBars)
	}
	var missing []string
	for _, c := range RequiredColumns {
		col, ok := f.Columns[c]
		if !ok || len(col) != len(f.Dates) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w: %s", symbol, ErrMissingColumns, strings.Join(missing, ","))
	}

	s := make(domain.Series, 0, len(f.Dates))
	for i, ts := range f.Dates {
		o, h, l, c, v := f.Columns[ColOpen][i], f.Columns[ColHigh][i], f.Columns[ColLow][i],
			f.Columns[ColClose][i], f.Columns[ColVolume][i]
		if ts.IsZero() || anyNaN(o, h, l, c, v) {
			continue
		}
		s = append(s, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    int64(v),
		})
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) })
	s = dedupeDates(s)

	if len(s) < MinBars {
		return nil, fmt.Errorf("%s: %w (only %d rows)", symbol, ErrInsufficientBars, len(s))
	}
	return s, nil
}

// dedupeDates keeps the last row of each run of equal dates in a sorted
// series.
func dedupeDates(s domain.Series) domain.Series {
	out := s[:0]
	for i, b := range s {
		if i+1 < len(s) && s[i+1].Timestamp.Equal(b.Timestamp) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// LoadDataset reads each symbol's bars in [start, end] from the bar store.
// Symbols without any bars are left out of the dataset; read errors are
// returned.
func LoadDataset(ctx context.Context, bars store.BarStore, market domain.Market, symbols []string, start, end time.Time) (Dataset, error) {
	ds := make(Dataset, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := bars.ReadBars(ctx, sym, string(market), start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		if len(got) == 0 {
			continue
		}
		ds[sym] = FrameFromBars(got)
	}
	return ds, nil
}
