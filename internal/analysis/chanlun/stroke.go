package chanlun

import "chan-analyzer/internal/models"

// Stroke connects two consecutive pivots of opposite kind.
type Stroke struct {
	Start     Fractal          `json:"start" yaml:"start"`
	End       Fractal          `json:"end" yaml:"end"`
	Direction models.Direction `json:"direction" yaml:"direction"`
}

// strokeDirection is the direction of a stroke ending on a fractal of the given kind.
func strokeDirection(end models.FractalKind) models.Direction {
	if end == models.FractalTop {
		return models.DirectionUp
	}
	return models.DirectionDown
}

// BuildStrokes selects the stroke pivots from the fractal list and returns them with
// the strokes joining each consecutive pair.
//
// The first pivot pair is the first adjacent opposite-kind pair that passes the validity
// check. After that the scan walks the fractal list greedily: a fractal of the expected
// kind that is valid against the fractal immediately before it becomes the next pivot,
// anything else is skipped.
func BuildStrokes(merged []MergedBar, fractals []Fractal) ([]Fractal, []Stroke) {
	if len(fractals) < 2 {
		return nil, nil
	}

	pivots := make([]Fractal, 0, len(fractals))
	cursor := -1
	for i := 0; i+1 < len(fractals); i++ {
		cur, next := fractals[i], fractals[i+1]
		if cur.Kind == next.Kind {
			continue
		}
		if validStroke(merged, fractals, i+1, strokeDirection(next.Kind)) {
			pivots = append(pivots, cur, next)
			cursor = i + 1
			break
		}
	}
	if cursor < 0 {
		return nil, nil
	}

	last := strokeDirection(pivots[len(pivots)-1].Kind)
	for next := cursor + 1; next < len(fractals); next++ {
		want := last.Opposite()
		f := fractals[next]
		if strokeDirection(f.Kind) != want || !validStroke(merged, fractals, next, want) {
			continue
		}
		pivots = append(pivots, f)
		last = want
	}

	strokes := make([]Stroke, 0, len(pivots)-1)
	for i := 0; i+1 < len(pivots); i++ {
		strokes = append(strokes, Stroke{
			Start:     pivots[i],
			End:       pivots[i+1],
			Direction: strokeDirection(pivots[i+1].Kind),
		})
	}
	return pivots, strokes
}

// validStroke checks fractals[idx-1] -> fractals[idx] as a stroke in direction dir.
func validStroke(merged []MergedBar, fractals []Fractal, idx int, dir models.Direction) bool {
	if idx < 1 || idx >= len(fractals) {
		return false
	}
	prev, curr := fractals[idx-1], fractals[idx]
	pb, cb := merged[prev.Index], merged[curr.Index]

	switch dir {
	case models.DirectionUp:
		if prev.Kind != models.FractalBottom || curr.Kind != models.FractalTop {
			return false
		}
		if cb.High <= pb.High {
			return false
		}
	case models.DirectionDown:
		if prev.Kind != models.FractalTop || curr.Kind != models.FractalBottom {
			return false
		}
		if cb.Low >= pb.Low {
			return false
		}
	default:
		return false
	}

	for k := prev.Index + 1; k < curr.Index; k++ {
		if dir == models.DirectionUp && merged[k].Low < pb.Low {
			return false
		}
		if dir == models.DirectionDown && merged[k].High > pb.High {
			return false
		}
	}

	// Two consecutive strokes may not pivot on the same bar.
	if idx >= 2 && fractals[idx-2].Index == prev.Index {
		return false
	}

	return !hasGap(pb, cb)
}

// hasGap reports whether the lower bar's high sits below the higher bar's low.
func hasGap(a, b MergedBar) bool {
	hp, lp := a, b
	if b.High > a.High {
		hp, lp = b, a
	}
	return lp.High < hp.Low
}
