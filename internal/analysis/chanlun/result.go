package chanlun

import (
	"time"

	"chan-analyzer/internal/analysis/indicators"
	"chan-analyzer/internal/models"
)

// BarAnnotation is the per input bar view of a run.
// Fractals and pivot marks sit on the last input bar of their merged bar.
type BarAnnotation struct {
	Index          int                 `json:"index" yaml:"index"`
	Timestamp      time.Time           `json:"timestamp" yaml:"timestamp"`
	MergedIndex    int                 `json:"merged_index" yaml:"merged_index"`
	ProcessedOpen  float64             `json:"processed_open" yaml:"processed_open"`
	ProcessedHigh  float64             `json:"processed_high" yaml:"processed_high"`
	ProcessedLow   float64             `json:"processed_low" yaml:"processed_low"`
	ProcessedClose float64             `json:"processed_close" yaml:"processed_close"`
	Fractal        models.FractalKind  `json:"fractal,omitempty" yaml:"fractal,omitempty"`
	StrokeMark     bool                `json:"stroke_mark" yaml:"stroke_mark"`
	StrokeDir      models.Direction    `json:"stroke_dir,omitempty" yaml:"stroke_dir,omitempty"`
	SegmentMark    bool                `json:"segment_mark" yaml:"segment_mark"`
	SegmentDir     models.Direction    `json:"segment_dir,omitempty" yaml:"segment_dir,omitempty"`
	HubID          int                 `json:"hub_id,omitempty" yaml:"hub_id,omitempty"`
	DIF            float64             `json:"dif" yaml:"dif"`
	DEA            float64             `json:"dea" yaml:"dea"`
	Hist           float64             `json:"hist" yaml:"hist"`
	Signals        []models.SignalKind `json:"signals,omitempty" yaml:"signals,omitempty"`
	HubBreakout    bool                `json:"hub_breakout" yaml:"hub_breakout"`
	HubBreakdown   bool                `json:"hub_breakdown" yaml:"hub_breakdown"`
}

// Result is everything one run derives from its input. It is never modified after Analyze returns.
type Result struct {
	Merged        []MergedBar         `json:"merged" yaml:"merged"`
	Fractals      []Fractal           `json:"fractals" yaml:"fractals"`
	Pivots        []Fractal           `json:"pivots" yaml:"pivots"`
	Strokes       []Stroke            `json:"strokes" yaml:"strokes"`
	SegmentPoints []Fractal           `json:"segment_points" yaml:"segment_points"`
	Segments      []Segment           `json:"segments" yaml:"segments"`
	Hubs          []Hub               `json:"hubs" yaml:"hubs"`
	Signals       []Signal            `json:"signals" yaml:"signals"`
	Momentum      indicators.Momentum `json:"-" yaml:"-"`
	Bars          []BarAnnotation     `json:"bars" yaml:"bars"`
}

// Summary counts the features found at each level.
type Summary struct {
	Bars     int                       `json:"bars" yaml:"bars"`
	Merged   int                       `json:"merged" yaml:"merged"`
	Tops     int                       `json:"tops" yaml:"tops"`
	Bottoms  int                       `json:"bottoms" yaml:"bottoms"`
	Strokes  int                       `json:"strokes" yaml:"strokes"`
	Segments int                       `json:"segments" yaml:"segments"`
	Hubs     int                       `json:"hubs" yaml:"hubs"`
	Signals  map[models.SignalKind]int `json:"signals" yaml:"signals"`
}

// Summary returns feature counts for the run.
func (r *Result) Summary() Summary {
	s := Summary{
		Bars:     len(r.Bars),
		Merged:   len(r.Merged),
		Strokes:  len(r.Strokes),
		Segments: len(r.Segments),
		Hubs:     len(r.Hubs),
		Signals:  make(map[models.SignalKind]int, len(models.AllSignalKinds)),
	}
	for _, f := range r.Fractals {
		if f.Kind == models.FractalTop {
			s.Tops++
		} else {
			s.Bottoms++
		}
	}
	for _, k := range models.AllSignalKinds {
		s.Signals[k] = 0
	}
	for _, sig := range r.Signals {
		s.Signals[sig.Kind]++
	}
	return s
}

// SignalsOf returns the signals of the given kind in bar order.
func (r *Result) SignalsOf(kind models.SignalKind) []Signal {
	var out []Signal
	for _, s := range r.Signals {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// annotate projects every derived feature back onto the input bars.
func annotate(bars []models.Candle, r *Result) []BarAnnotation {
	out := make([]BarAnnotation, len(bars))
	member := hubMembership(len(r.Merged), r.Hubs)

	for _, m := range r.Merged {
		for i := m.Start; i <= m.End; i++ {
			out[i] = BarAnnotation{
				Index:          i,
				Timestamp:      bars[i].Timestamp,
				MergedIndex:    m.Index,
				ProcessedOpen:  m.Open,
				ProcessedHigh:  m.High,
				ProcessedLow:   m.Low,
				ProcessedClose: m.Close,
				HubID:          member[m.Index],
			}
		}
	}

	for i := range out {
		if i < len(r.Momentum.Hist) {
			out[i].DIF, out[i].DEA, out[i].Hist = r.Momentum.At(i)
		}
	}

	anchor := func(f Fractal) int { return r.Merged[f.Index].End }

	for _, f := range r.Fractals {
		out[anchor(f)].Fractal = f.Kind
	}

	for i, s := range r.Strokes {
		from, to := anchor(s.Start), anchor(s.End)
		if i == 0 {
			out[from].StrokeMark = true
			out[from].StrokeDir = s.Direction
		}
		for b := from + 1; b < to; b++ {
			out[b].StrokeDir = s.Direction
		}
		out[to].StrokeMark = true
		out[to].StrokeDir = s.Direction
	}

	for i, s := range r.Segments {
		from, to := anchor(s.Start), anchor(s.End)
		if i == 0 {
			out[from].SegmentMark = true
			out[from].SegmentDir = s.Direction
		}
		for b := from + 1; b < to; b++ {
			out[b].SegmentDir = s.Direction
		}
		out[to].SegmentMark = true
		out[to].SegmentDir = s.Direction
	}

	for _, sig := range r.Signals {
		a := &out[sig.BarIndex]
		a.Signals = append(a.Signals, sig.Kind)
		switch sig.Kind {
		case models.Buy3:
			a.HubBreakout = true
		case models.Sell3:
			a.HubBreakdown = true
		}
	}

	return out
}
