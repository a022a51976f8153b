package chanlun

import (
	"sort"
	"time"

	"chan-analyzer/internal/analysis/indicators"
	"chan-analyzer/internal/models"
)

// Signal is a ranked buy or sell point.
// Index is the merged bar carrying the tag and BarIndex the input bar it is reported on.
// Anchor is the merged index of the first-class signal a second-class signal confirms, else -1.
// HubID is the hub a third-class signal breaks out of, else 0.
type Signal struct {
	Kind      models.SignalKind `json:"kind" yaml:"kind"`
	Index     int               `json:"index" yaml:"index"`
	BarIndex  int               `json:"bar_index" yaml:"bar_index"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Price     float64           `json:"price" yaml:"price"`
	Anchor    int               `json:"anchor" yaml:"anchor"`
	HubID     int               `json:"hub_id,omitempty" yaml:"hub_id,omitempty"`
}

// signalInput bundles what the generator reads. Nothing in it is modified.
type signalInput struct {
	bars      []models.Candle
	merged    []MergedBar
	fractals  []Fractal
	hubs      []Hub
	momentum  indicators.Momentum
	lookahead int
	hubAhead  int
}

// side captures the mirror-image rules of the buy and sell sides.
type side struct {
	kind    models.FractalKind
	class1  models.SignalKind
	class2  models.SignalKind
	class3  models.SignalKind
	extends func(price, prev float64) bool
	holds   func(price, ref float64) bool
	refOf   func(m MergedBar) float64
	crossed func(cur, prev float64, z hubZone) bool
	extreme func(m MergedBar) float64
	rawHit  func(c models.Candle, z hubZone) bool
}

var buySide = side{
	kind:    models.FractalBottom,
	class1:  models.Buy1,
	class2:  models.Buy2,
	class3:  models.Buy3,
	extends: func(price, prev float64) bool { return price < prev },
	holds:   func(price, ref float64) bool { return price > ref },
	refOf:   func(m MergedBar) float64 { return m.Low },
	crossed: func(cur, prev float64, z hubZone) bool { return cur > z.hub.High && prev <= z.hub.High },
	extreme: func(m MergedBar) float64 { return m.High },
	rawHit:  func(c models.Candle, z hubZone) bool { return c.High > z.hub.High },
}

var sellSide = side{
	kind:    models.FractalTop,
	class1:  models.Sell1,
	class2:  models.Sell2,
	class3:  models.Sell3,
	extends: func(price, prev float64) bool { return price > prev },
	holds:   func(price, ref float64) bool { return price < ref },
	refOf:   func(m MergedBar) float64 { return m.High },
	crossed: func(cur, prev float64, z hubZone) bool { return cur < z.hub.Low && prev >= z.hub.Low },
	extreme: func(m MergedBar) float64 { return m.Low },
	rawHit:  func(c models.Candle, z hubZone) bool { return c.Low < z.hub.Low },
}

// generateSignals derives all six signal kinds and returns them ordered by input bar.
func generateSignals(in signalInput) []Signal {
	var signals []Signal
	zones := hubZones(hubMembership(len(in.merged), in.hubs), in.hubs)

	for _, s := range []side{buySide, sellSide} {
		first := divergences(in, s)
		signals = append(signals, first...)
		signals = append(signals, confirmations(in, s, first)...)
		signals = append(signals, breakouts(in, s, zones)...)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].BarIndex != signals[j].BarIndex {
			return signals[i].BarIndex < signals[j].BarIndex
		}
		return signalRank(signals[i].Kind) < signalRank(signals[j].Kind)
	})
	return signals
}

func signalRank(k models.SignalKind) int {
	for i, kind := range models.AllSignalKinds {
		if kind == k {
			return i
		}
	}
	return len(models.AllSignalKinds)
}

// histAt is the oscillator histogram for a merged bar, read on its last absorbed bar.
func (in signalInput) histAt(m int) float64 {
	return in.momentum.Hist[in.merged[m].End]
}

// tag builds a signal on merged bar m, reported on input bar bar.
func (in signalInput) tag(kind models.SignalKind, m, bar int) Signal {
	return Signal{
		Kind:      kind,
		Index:     m,
		BarIndex:  bar,
		Timestamp: in.bars[bar].Timestamp,
		Price:     in.bars[bar].Close,
		Anchor:    -1,
	}
}

// divergences finds first-class signals: a fractal extending past the previous fractal of
// the same kind on a weaker histogram. The bar after the fractal carries the tag.
func divergences(in signalInput, s side) []Signal {
	var out []Signal
	prev := -1
	for i, f := range in.fractals {
		if f.Kind != s.kind {
			continue
		}
		if prev >= 0 {
			p := in.fractals[prev]
			if s.extends(f.Price, p.Price) && absf(in.histAt(f.Index)) < absf(in.histAt(p.Index)) {
				if next := f.Index + 1; next < len(in.merged) {
					out = append(out, in.tag(s.class1, next, in.merged[next].Start))
				}
			}
		}
		prev = i
	}
	return out
}

// confirmations finds, for each first-class signal, the first later fractal of the same kind
// within the lookahead that holds above (below) the reference bar two bars before the signal.
func confirmations(in signalInput, s side, first []Signal) []Signal {
	var out []Signal
	for _, sig := range first {
		ref := s.refOf(in.merged[maxi(sig.Index-2, 0)])
		limit := sig.Index + in.lookahead
		for _, f := range in.fractals {
			if f.Kind != s.kind {
				continue
			}
			at := f.Index + 1
			if at <= sig.Index {
				continue
			}
			if at > limit || at >= len(in.merged) {
				break
			}
			if s.holds(f.Price, ref) {
				c := in.tag(s.class2, at, in.merged[at].Start)
				c.Anchor = sig.Index
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// breakouts finds third-class signals: the first bar after a hub zone whose extreme crosses
// the hub bound while the bar before had not. Each hub fires at most once per side.
func breakouts(in signalInput, s side, zones []hubZone) []Signal {
	var out []Signal
	fired := make(map[int]bool)
	n := len(in.merged)

	for _, z := range zones {
		if fired[z.hub.ID] {
			continue
		}
		span := mini(in.hubAhead, n-z.end-1)
		for k := 1; k <= span; k++ {
			pos := z.end + k
			if !s.crossed(s.extreme(in.merged[pos]), s.extreme(in.merged[pos-1]), z) {
				continue
			}
			m := in.merged[pos]
			bar := m.Start
			for b := m.Start; b <= m.End; b++ {
				if s.rawHit(in.bars[b], z) {
					bar = b
					break
				}
			}
			sig := in.tag(s.class3, pos, bar)
			sig.HubID = z.hub.ID
			out = append(out, sig)
			fired[z.hub.ID] = true
			break
		}
	}
	return out
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
