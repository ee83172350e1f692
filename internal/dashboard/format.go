package dashboard

import (
	"fmt"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) > 3 {
		var b strings.Builder
		start := len(s) % 3
		if start > 0 {
			b.WriteString(s[:start])
		}
		for i := start; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatPrice formats a price with two decimals, or "-" when unknown.
func FormatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

// FormatPct formats a percent value as "+X.XX%"/"-X.XX%", dropping the
// decimals at 100% and beyond to keep the column compact.
func FormatPct(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%+.0f%%", v)
	}
	return fmt.Sprintf("%+.2f%%", v)
}

// FormatRatio formats a risk-adjusted ratio, or "-" when undefined.
func FormatRatio(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *r)
}
