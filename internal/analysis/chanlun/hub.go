package chanlun

import "time"

// Hub is a consolidation zone where the ranges of three consecutive segments overlap.
// Start and End index the merged series; StartBar and EndBar index the input bars.
type Hub struct {
	ID        int       `json:"id" yaml:"id"`
	Start     int       `json:"start" yaml:"start"`
	End       int       `json:"end" yaml:"end"`
	StartBar  int       `json:"start_bar" yaml:"start_bar"`
	EndBar    int       `json:"end_bar" yaml:"end_bar"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Mid       float64   `json:"mid" yaml:"mid"`
	Strength  float64   `json:"strength" yaml:"strength"`
}

// Covers reports whether merged bar i lies inside the hub window.
func (h Hub) Covers(i int) bool {
	return i >= h.Start && i <= h.End
}

// DetectHubs slides a window of four consecutive segment endpoints and emits a hub for
// every window whose overlap is non-empty. Overlapping windows each produce their own hub.
func DetectHubs(merged []MergedBar, points []Fractal) []Hub {
	if len(points) < 4 {
		return nil
	}

	var hubs []Hub
	for i := 0; i+3 < len(points); i++ {
		p1 := merged[points[i].Index]
		p2 := merged[points[i+1].Index]
		p3 := merged[points[i+2].Index]
		p4 := merged[points[i+3].Index]

		overlapHigh := minf(maxf(p1.High, p3.High), maxf(p2.High, p4.High))
		overlapLow := maxf(minf(p1.Low, p3.Low), minf(p2.Low, p4.Low))
		if overlapHigh <= overlapLow {
			continue
		}

		maxHigh := maxf(p1.High, maxf(p2.High, p3.High))
		minLow := minf(p1.Low, minf(p2.Low, p3.Low))
		span := maxHigh - minLow
		if span == 0 {
			span = 1
		}
		strength := (overlapHigh - overlapLow) / span
		if strength > 1 {
			strength = 1
		}

		hubs = append(hubs, Hub{
			ID:        len(hubs) + 1,
			Start:     p1.Index,
			End:       p4.Index,
			StartBar:  p1.Start,
			EndBar:    p4.End,
			StartTime: p1.Timestamp,
			EndTime:   p4.Timestamp,
			High:      overlapHigh,
			Low:       overlapLow,
			Mid:       (overlapHigh + overlapLow) / 2,
			Strength:  strength,
		})
	}
	return hubs
}

// hubZone is one contiguous run of merged bars assigned to the same hub.
type hubZone struct {
	hub   Hub
	start int
	end   int
}

// hubMembership assigns each merged bar to the most recently started hub covering it, or 0.
func hubMembership(n int, hubs []Hub) []int {
	member := make([]int, n)
	for _, h := range hubs {
		for i := h.Start; i <= h.End && i < n; i++ {
			member[i] = h.ID
		}
	}
	return member
}

type zoneState int

const (
	stateNoHub zoneState = iota
	stateInHub
)

// hubZones walks the membership column as a two-state machine and returns the zones in order.
func hubZones(member []int, hubs []Hub) []hubZone {
	byID := make(map[int]Hub, len(hubs))
	for _, h := range hubs {
		byID[h.ID] = h
	}

	var zones []hubZone
	state := stateNoHub
	var cur hubZone

	for i, id := range member {
		switch state {
		case stateNoHub:
			if id != 0 {
				cur = hubZone{hub: byID[id], start: i, end: i}
				state = stateInHub
			}
		case stateInHub:
			switch {
			case id == cur.hub.ID:
				cur.end = i
			case id == 0:
				zones = append(zones, cur)
				state = stateNoHub
			default:
				zones = append(zones, cur)
				cur = hubZone{hub: byID[id], start: i, end: i}
			}
		}
	}
	if state == stateInHub {
		zones = append(zones, cur)
	}
	return zones
}
