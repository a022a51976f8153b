// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatPrice renders a price with a fixed number of decimal places.
// Rounding goes through decimal so 2.675 prints as 2.68.
func FormatPrice(price float64, places int32) string {
	return decimal.NewFromFloat(price).StringFixed(places)
}

// FormatRange renders a [low, high] band.
func FormatRange(low, high float64, places int32) string {
	return FormatPrice(low, places) + " - " + FormatPrice(high, places)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatCount formats an integer with thousands separators.
func FormatCount(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}
	s := fmt.Sprintf("%d", n)

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatElapsed renders a duration rounded to a readable unit.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
