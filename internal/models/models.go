// Package models provides domain models shared by the analysis engine, the store and the CLI.
package models

import (
	"strings"
	"time"
)

// Candle represents OHLCV data for a time period.
// Its position in the input slice is its bar index.
type Candle struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
	Volume    float64   `json:"volume" yaml:"volume"`
}

// Direction is the direction of a stroke or segment.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return DirectionNone
	}
}

// FractalKind is the kind of a turning point.
type FractalKind string

const (
	FractalNone   FractalKind = ""
	FractalTop    FractalKind = "top"
	FractalBottom FractalKind = "bottom"
)

// SignalKind tags a bar with a ranked buy or sell point.
type SignalKind string

const (
	Buy1  SignalKind = "BUY1"
	Buy2  SignalKind = "BUY2"
	Buy3  SignalKind = "BUY3"
	Sell1 SignalKind = "SELL1"
	Sell2 SignalKind = "SELL2"
	Sell3 SignalKind = "SELL3"
)

// IsBuy reports whether the signal is on the buy side.
func (k SignalKind) IsBuy() bool {
	return k == Buy1 || k == Buy2 || k == Buy3
}

// Class returns the rank (1, 2 or 3) of the signal.
func (k SignalKind) Class() int {
	switch k {
	case Buy1, Sell1:
		return 1
	case Buy2, Sell2:
		return 2
	case Buy3, Sell3:
		return 3
	default:
		return 0
	}
}

// AllSignalKinds lists every signal kind in display order.
var AllSignalKinds = []SignalKind{Buy1, Buy2, Buy3, Sell1, Sell2, Sell3}

// ParseSignalKind parses a signal kind name such as "BUY2", case-insensitively.
func ParseSignalKind(s string) (SignalKind, bool) {
	for _, k := range AllSignalKinds {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}

// AnalysisRun describes a stored analysis run.
type AnalysisRun struct {
	ID            string    `json:"id" yaml:"id"`
	Symbol        string    `json:"symbol" yaml:"symbol"`
	Timeframe     string    `json:"timeframe" yaml:"timeframe"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	From          time.Time `json:"from" yaml:"from"`
	To            time.Time `json:"to" yaml:"to"`
	Bars          int       `json:"bars" yaml:"bars"`
	Strokes       int       `json:"strokes" yaml:"strokes"`
	Segments      int       `json:"segments" yaml:"segments"`
	Hubs          int       `json:"hubs" yaml:"hubs"`
	Signals       int       `json:"signals" yaml:"signals"`
	FractalWindow int       `json:"fractal_window" yaml:"fractal_window"`
	Oscillator    string    `json:"oscillator" yaml:"oscillator"`
}

// SignalRecord is a signal as persisted with its run.
type SignalRecord struct {
	RunID     string     `json:"run_id" yaml:"run_id"`
	Kind      SignalKind `json:"kind" yaml:"kind"`
	BarIndex  int        `json:"bar_index" yaml:"bar_index"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
	Price     float64    `json:"price" yaml:"price"`
	HubID     int        `json:"hub_id,omitempty" yaml:"hub_id,omitempty"`
}

// HubRecord is a hub as persisted with its run.
type HubRecord struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	HubID     int       `json:"hub_id" yaml:"hub_id"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Strength  float64   `json:"strength" yaml:"strength"`
}
