package chanlun

import "chan-analyzer/internal/models"

// Fractal is a turning point on the merged series.
// Index points into the merged series; Price is the high of a top or the low of a bottom.
type Fractal struct {
	Index int                `json:"index" yaml:"index"`
	Kind  models.FractalKind `json:"kind" yaml:"kind"`
	Price float64            `json:"price" yaml:"price"`
}

// DetectFractals finds tops and bottoms that strictly dominate window bars on each side.
// Top is tested first; a bar that is a top is never reported as a bottom.
func DetectFractals(merged []MergedBar, window int) []Fractal {
	if window < 1 || len(merged) < 2*window+1 {
		return nil
	}

	var fractals []Fractal
	for i := window; i < len(merged)-window; i++ {
		switch {
		case isTop(merged, i, window):
			fractals = append(fractals, Fractal{Index: i, Kind: models.FractalTop, Price: merged[i].High})
		case isBottom(merged, i, window):
			fractals = append(fractals, Fractal{Index: i, Kind: models.FractalBottom, Price: merged[i].Low})
		}
	}
	return fractals
}

func isTop(merged []MergedBar, i, window int) bool {
	h := merged[i].High
	for k := i - window; k <= i+window; k++ {
		if k != i && merged[k].High >= h {
			return false
		}
	}
	return true
}

func isBottom(merged []MergedBar, i, window int) bool {
	l := merged[i].Low
	for k := i - window; k <= i+window; k++ {
		if k != i && merged[k].Low <= l {
			return false
		}
	}
	return true
}
