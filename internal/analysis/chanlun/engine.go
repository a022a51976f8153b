// Package chanlun decomposes an ordered bar sequence into merged bars, fractals, strokes,
// segments and hubs, and derives ranked buy and sell signals from that hierarchy.
//
// A run is pure computation over its own input. Engines hold no per-run state and
// may be shared between goroutines.
package chanlun

import (
	"context"
	"math"
	"time"

	"chan-analyzer/internal/analysis/indicators"
	"chan-analyzer/internal/config"
	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/models"
)

// Pipeline stage names reported to observers and logs.
const (
	StageMerge      = "merge"
	StageFractal    = "fractal"
	StageStroke     = "stroke"
	StageSegment    = "segment"
	StageHub        = "hub"
	StageOscillator = "oscillator"
	StageSignal     = "signal"
)

// Stages lists the pipeline stages in execution order.
var Stages = []string{StageMerge, StageFractal, StageStroke, StageSegment, StageHub, StageOscillator, StageSignal}

// Oscillator computes the momentum series from closing prices.
type Oscillator interface {
	Compute(closes []float64) (indicators.Momentum, error)
}

// StageObserver receives timing for each stage and each run.
type StageObserver interface {
	ObserveStage(stage string, items int, elapsed time.Duration)
	ObserveRun(signals int, elapsed time.Duration, err error)
}

// Engine runs the decomposition pipeline.
type Engine struct {
	cfg        config.EngineConfig
	oscillator Oscillator
	observer   StageObserver
	workers    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStageObserver attaches an observer notified after every stage.
func WithStageObserver(o StageObserver) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithOscillator replaces the oscillator chosen by the configuration.
func WithOscillator(o Oscillator) Option {
	return func(e *Engine) {
		e.oscillator = o
	}
}

// WithWorkers sets the number of concurrent runs used by AnalyzeBatch.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine for the given parameters.
func NewEngine(cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		workers: 4,
	}
	if cfg.Oscillator == config.OscillatorTalib {
		e.oscillator = indicators.NewTalibMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	} else {
		e.oscillator = indicators.NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// Analyze runs every stage over bars. Malformed input fails with an *errors.InputError
// before any stage runs; short input yields empty feature sets, not an error.
func (e *Engine) Analyze(ctx context.Context, bars []models.Candle) (res *Result, err error) {
	logger := logging.FromContext(ctx)
	began := time.Now()
	defer func() {
		if e.observer != nil {
			n := 0
			if res != nil {
				n = len(res.Signals)
			}
			e.observer.ObserveRun(n, time.Since(began), err)
		}
	}()

	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	res = &Result{}
	stage := func(name string, run func() int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := time.Now()
		n := run()
		elapsed := time.Since(t)
		logging.LogStage(logger, name, n, elapsed)
		if e.observer != nil {
			e.observer.ObserveStage(name, n, elapsed)
		}
		return nil
	}

	steps := []struct {
		name string
		run  func() int
	}{
		{StageMerge, func() int {
			res.Merged = Merge(bars)
			return len(res.Merged)
		}},
		{StageFractal, func() int {
			res.Fractals = DetectFractals(res.Merged, e.cfg.FractalWindow)
			return len(res.Fractals)
		}},
		{StageStroke, func() int {
			res.Pivots, res.Strokes = BuildStrokes(res.Merged, res.Fractals)
			return len(res.Strokes)
		}},
		{StageSegment, func() int {
			res.SegmentPoints, res.Segments = BuildSegments(res.Merged, res.Pivots)
			return len(res.Segments)
		}},
		{StageHub, func() int {
			res.Hubs = DetectHubs(res.Merged, res.SegmentPoints)
			return len(res.Hubs)
		}},
	}
	for _, s := range steps {
		if err := stage(s.name, s.run); err != nil {
			return nil, err
		}
	}

	var oscErr error
	if err := stage(StageOscillator, func() int {
		res.Momentum, oscErr = e.oscillator.Compute(indicators.ClosePrices(bars))
		return len(res.Momentum.Hist)
	}); err != nil {
		return nil, err
	}
	if oscErr != nil {
		return nil, errors.Wrap(oscErr, "computing oscillator")
	}

	if err := stage(StageSignal, func() int {
		res.Signals = generateSignals(signalInput{
			bars:      bars,
			merged:    res.Merged,
			fractals:  res.Fractals,
			hubs:      res.Hubs,
			momentum:  res.Momentum,
			lookahead: e.cfg.SignalLookahead,
			hubAhead:  e.cfg.HubLookahead,
		})
		return len(res.Signals)
	}); err != nil {
		return nil, err
	}
	for _, sig := range res.Signals {
		logging.LogSignal(logger, string(sig.Kind), sig.BarIndex, sig.Price)
	}

	res.Bars = annotate(bars, res)
	return res, nil
}

// ValidateBars checks the preconditions of a run.
func ValidateBars(bars []models.Candle) error {
	if len(bars) == 0 {
		return errors.NewInputError("bars", -1, "empty sequence")
	}

	for i, b := range bars {
		if b.Timestamp.IsZero() {
			return errors.NewInputError("timestamp", i, "missing")
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return errors.NewInputError("timestamp", i, "not after previous bar")
		}
		for _, f := range []struct {
			name  string
			value float64
		}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}} {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				return errors.NewInputError(f.name, i, "not a finite number")
			}
		}
		if b.High < b.Low {
			return errors.NewInputError("high", i, "below low")
		}
		if b.Open < b.Low || b.Open > b.High {
			return errors.NewInputError("open", i, "outside high-low range")
		}
		if b.Close < b.Low || b.Close > b.High {
			return errors.NewInputError("close", i, "outside high-low range")
		}
		if b.Volume < 0 {
			return errors.NewInputError("volume", i, "negative")
		}
	}
	return nil
}
