package chanlun

import "chan-analyzer/internal/models"

// Segment is a higher level leg between two segment endpoints taken from the stroke pivots.
type Segment struct {
	Start     Fractal          `json:"start" yaml:"start"`
	End       Fractal          `json:"end" yaml:"end"`
	Direction models.Direction `json:"direction" yaml:"direction"`
	// Gap is set when the end boundary was confirmed by a price gap rather than a break.
	Gap bool `json:"gap" yaml:"gap"`
}

// BuildSegments groups stroke pivots into segments and returns the segment endpoints
// with the segments joining each consecutive pair. Fewer than three pivots yield nothing.
// The last pivot is still open to revision by the next stroke and never ends a segment.
func BuildSegments(merged []MergedBar, pivots []Fractal) ([]Fractal, []Segment) {
	if len(pivots) < 3 {
		return nil, nil
	}

	seed := -1
	for i := 0; i+2 < len(pivots); i++ {
		if pivots[i].Kind == pivots[i+2].Kind {
			seed = i
			break
		}
	}
	if seed < 0 {
		return nil, nil
	}

	dir := models.DirectionDown
	if pivots[seed].Kind == models.FractalBottom {
		dir = models.DirectionUp
	}

	points := []Fractal{pivots[seed]}
	gaps := []bool{false}
	start := seed
	for j := seed + 1; j <= len(pivots)-2; j++ {
		gap := false
		if strokeDirection(pivots[j].Kind) == dir {
			if !segmentBroken(merged, pivots, start, j, dir) {
				continue
			}
		} else {
			gap = gapBetween(merged, pivots[j-1], pivots[j])
		}
		points = append(points, pivots[j])
		gaps = append(gaps, gap)
		dir = dir.Opposite()
		start = j
	}

	if len(points) < 2 {
		return points, nil
	}

	segments := make([]Segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		segments = append(segments, Segment{
			Start:     points[i],
			End:       points[i+1],
			Direction: legDirection(points[i], points[i+1]),
			Gap:       gaps[i+1],
		})
	}
	return points, segments
}

// segmentBroken reports whether the pivots strictly between start and end retrace past
// the start extreme twice in a row. At least two interior pivots are required.
func segmentBroken(merged []MergedBar, pivots []Fractal, start, end int, dir models.Direction) bool {
	if end-start < 3 {
		return false
	}

	origin := merged[pivots[start].Index]
	beyond := func(k int) bool {
		bar := merged[pivots[k].Index]
		if dir == models.DirectionUp {
			return bar.Low < origin.Low
		}
		return bar.High > origin.High
	}

	for k := start + 1; k < end; k++ {
		if beyond(k) && k+1 < end && beyond(k+1) {
			return true
		}
	}
	return false
}

// gapBetween checks for a price gap opening right after from and persisting into the bar before to.
func gapBetween(merged []MergedBar, from, to Fractal) bool {
	if from.Index >= len(merged)-1 || to.Index <= 0 {
		return false
	}

	pivot := merged[from.Index]
	after := merged[from.Index+1]
	before := merged[to.Index-1]

	if after.Low > pivot.High && before.Low > pivot.High {
		return true
	}
	return after.High < pivot.Low && before.High < pivot.Low
}

// legDirection reports whether the leg from a to b moves up or down.
func legDirection(a, b Fractal) models.Direction {
	switch {
	case a.Kind == models.FractalBottom && b.Kind == models.FractalTop:
		return models.DirectionUp
	case a.Kind == models.FractalTop && b.Kind == models.FractalBottom:
		return models.DirectionDown
	case b.Price > a.Price:
		return models.DirectionUp
	default:
		return models.DirectionDown
	}
}
