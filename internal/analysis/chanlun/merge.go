package chanlun

import (
	"time"

	"chan-analyzer/internal/models"
)

// MergedBar is one or more consecutive input bars collapsed by the inclusion rule.
// Start and End are the first and last absorbed input bar indices.
type MergedBar struct {
	Index     int       `json:"index" yaml:"index"`
	Start     int       `json:"start" yaml:"start"`
	End       int       `json:"end" yaml:"end"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
}

// Len returns the number of input bars absorbed.
func (m MergedBar) Len() int {
	return m.End - m.Start + 1
}

// contains reports whether either range nests inside the other.
func contains(h1, l1, h2, l2 float64) bool {
	return (h1 >= h2 && l1 <= l2) || (h1 <= h2 && l1 >= l2)
}

// absorb folds the range of a later bar into m. Open and Close stay with m.
func (m *MergedBar) absorb(high, low, close float64, end int) {
	if close >= m.Close {
		m.High = maxf(m.High, high)
		m.Low = maxf(m.Low, low)
	} else {
		m.High = minf(m.High, high)
		m.Low = minf(m.Low, low)
	}
	m.End = end
}

// Merge collapses contained bars left to right. After each absorption the merged bar
// is folded back into its predecessor while the two are still in containment, so no
// two adjacent results ever contain one another.
func Merge(bars []models.Candle) []MergedBar {
	out := make([]MergedBar, 0, len(bars))

	for i, b := range bars {
		if len(out) > 0 {
			cur := &out[len(out)-1]
			if contains(cur.High, cur.Low, b.High, b.Low) {
				cur.absorb(b.High, b.Low, b.Close, i)
				out = cascade(out)
				continue
			}
		}
		out = append(out, MergedBar{
			Index:     len(out),
			Start:     i,
			End:       i,
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
		})
	}

	return out
}

func cascade(out []MergedBar) []MergedBar {
	for len(out) >= 2 {
		prev, last := &out[len(out)-2], out[len(out)-1]
		if !contains(prev.High, prev.Low, last.High, last.Low) {
			break
		}
		prev.absorb(last.High, last.Low, last.Close, last.End)
		out = out[:len(out)-1]
	}
	return out
}

// MergeMerged runs the inclusion rule over an already merged series.
func MergeMerged(merged []MergedBar) []MergedBar {
	bars := make([]models.Candle, len(merged))
	for i, m := range merged {
		bars[i] = models.Candle{Timestamp: m.Timestamp, Open: m.Open, High: m.High, Low: m.Low, Close: m.Close}
	}
	return Merge(bars)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
