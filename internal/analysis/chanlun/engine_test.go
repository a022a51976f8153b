package chanlun

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"chan-analyzer/internal/config"
	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/models"
)

func TestAnalyze_RisingSequenceHasNoFeatures(t *testing.T) {
	bars := make([]models.Candle, 10)
	for i := range bars {
		f := float64(i)
		bars[i] = candle(i, 10.5+f, 12+f, 10+f, 11.5+f)
	}

	res, err := newTestEngine(t, nil).Analyze(context.Background(), bars)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Merged) != 10 {
		t.Errorf("merged = %d, want 10", len(res.Merged))
	}
	if len(res.Fractals) != 0 || len(res.Strokes) != 0 || len(res.Signals) != 0 {
		t.Errorf("got fractals=%d strokes=%d signals=%d, want none",
			len(res.Fractals), len(res.Strokes), len(res.Signals))
	}
}

func TestAnalyze_VShapeHasSingleBottom(t *testing.T) {
	bars := barsFromRanges([][2]float64{
		{16, 19}, {14, 17}, {12, 15}, {10, 13}, {12, 15}, {14, 17}, {16, 19},
	})

	e := newTestEngine(t, func(c *config.EngineConfig) { c.FractalWindow = 2 })
	res, err := e.Analyze(context.Background(), bars)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Fractals) != 1 {
		t.Fatalf("got %d fractals %+v, want 1", len(res.Fractals), res.Fractals)
	}
	f := res.Fractals[0]
	if f.Kind != models.FractalBottom || f.Index != 3 || f.Price != 10 {
		t.Errorf("fractal = %+v, want bottom at 3", f)
	}
	if res.Bars[3].Fractal != models.FractalBottom {
		t.Errorf("bar 3 annotation = %q", res.Bars[3].Fractal)
	}
}

func TestAnalyze_InsideBarCollapses(t *testing.T) {
	bars := []models.Candle{
		candle(0, 12, 20, 10, 15),
		candle(1, 14, 18, 10, 16),
	}

	res, err := newTestEngine(t, nil).Analyze(context.Background(), bars)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Merged) != 1 {
		t.Fatalf("merged = %d, want 1", len(res.Merged))
	}
	for _, a := range res.Bars {
		if a.MergedIndex != 0 || a.ProcessedHigh != 20 || a.ProcessedLow != 10 ||
			a.ProcessedOpen != 12 || a.ProcessedClose != 15 {
			t.Errorf("bar %d annotation = %+v", a.Index, a)
		}
	}
}

func TestAnalyze_EmptyInputFails(t *testing.T) {
	res, err := newTestEngine(t, nil).Analyze(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	if res != nil {
		t.Error("no partial result expected on input error")
	}
	if !errors.Is(err, errors.ErrInvalidInput) || !errors.IsInputError(err) {
		t.Errorf("error %v should be an InputError", err)
	}
}

func TestAnalyze_TwoBarsYieldEmptyFeatures(t *testing.T) {
	bars := []models.Candle{
		candle(0, 10, 11, 9, 10.5),
		candle(1, 11, 12, 10, 11.5),
	}

	res, err := newTestEngine(t, nil).Analyze(context.Background(), bars)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Fractals)+len(res.Strokes)+len(res.Segments)+len(res.Hubs)+len(res.Signals) != 0 {
		t.Errorf("expected no features, got %+v", res.Summary())
	}
	if len(res.Bars) != 2 {
		t.Errorf("annotations = %d, want 2", len(res.Bars))
	}
}

func TestAnalyze_ZigzagAnnotations(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) { c.FractalWindow = 1 })
	res, err := e.Analyze(context.Background(), barsFromRanges(zigzag))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	wantStroke := []models.Direction{
		models.DirectionNone, models.DirectionUp, models.DirectionUp, models.DirectionUp,
		models.DirectionDown, models.DirectionDown, models.DirectionUp, models.DirectionUp,
		models.DirectionNone,
	}
	for i, want := range wantStroke {
		if got := res.Bars[i].StrokeDir; got != want {
			t.Errorf("bar %d stroke dir = %q, want %q", i, got, want)
		}
	}
	for _, i := range []int{1, 3, 5, 7} {
		if !res.Bars[i].StrokeMark {
			t.Errorf("bar %d should be a stroke pivot", i)
		}
	}
	if !res.Bars[1].SegmentMark || !res.Bars[5].SegmentMark || res.Bars[3].SegmentMark {
		t.Error("segment marks should sit on bars 1 and 5 only")
	}
	if res.Bars[3].SegmentDir != models.DirectionDown {
		t.Errorf("bar 3 segment dir = %q, want down", res.Bars[3].SegmentDir)
	}

	s := res.Summary()
	if s.Tops != 2 || s.Bottoms != 2 || s.Strokes != 3 || s.Segments != 1 || s.Bars != 9 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.Signals) != len(models.AllSignalKinds) {
		t.Errorf("summary should list every signal kind, got %v", s.Signals)
	}
}

func TestValidateBars(t *testing.T) {
	good := func() []models.Candle {
		return []models.Candle{candle(0, 10, 11, 9, 10), candle(1, 10, 11, 9, 10)}
	}

	tests := []struct {
		name   string
		mutate func([]models.Candle)
		field  string
		index  int
	}{
		{"missing timestamp", func(b []models.Candle) { b[0].Timestamp = time.Time{} }, "timestamp", 0},
		{"equal timestamps", func(b []models.Candle) { b[1].Timestamp = b[0].Timestamp }, "timestamp", 1},
		{"decreasing timestamps", func(b []models.Candle) { b[1].Timestamp = b[0].Timestamp.Add(-time.Hour) }, "timestamp", 1},
		{"nan close", func(b []models.Candle) { b[1].Close = math.NaN() }, "close", 1},
		{"infinite high", func(b []models.Candle) { b[0].High = math.Inf(1) }, "high", 0},
		{"high below low", func(b []models.Candle) { b[1].High = 8 }, "high", 1},
		{"open outside range", func(b []models.Candle) { b[0].Open = 12 }, "open", 0},
		{"close outside range", func(b []models.Candle) { b[0].Close = 8 }, "close", 0},
		{"negative volume", func(b []models.Candle) { b[1].Volume = -1 }, "volume", 1},
	}

	if err := ValidateBars(good()); err != nil {
		t.Fatalf("valid bars rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := good()
			tt.mutate(bars)
			err := ValidateBars(bars)
			var ie *errors.InputError
			if !errors.As(err, &ie) {
				t.Fatalf("got %v, want InputError", err)
			}
			if ie.Field != tt.field || ie.Index != tt.index {
				t.Errorf("got field=%s index=%d, want field=%s index=%d", ie.Field, ie.Index, tt.field, tt.index)
			}
		})
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, nil).Analyze(ctx, barsFromRanges(zigzag))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []string
	runs   int
	errs   int
}

func (r *recordingObserver) ObserveStage(stage string, items int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recordingObserver) ObserveRun(signals int, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if err != nil {
		r.errs++
	}
}

func TestAnalyze_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, nil, WithStageObserver(obs))

	if _, err := e.Analyze(context.Background(), barsFromRanges(zigzag)); err != nil {
		t.Fatal(err)
	}
	if len(obs.stages) != len(Stages) {
		t.Fatalf("observed stages %v, want %v", obs.stages, Stages)
	}
	for i, s := range Stages {
		if obs.stages[i] != s {
			t.Errorf("stage %d = %s, want %s", i, obs.stages[i], s)
		}
	}

	if _, err := e.Analyze(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if obs.runs != 2 || obs.errs != 1 {
		t.Errorf("runs=%d errs=%d, want 2 and 1", obs.runs, obs.errs)
	}
}

func TestAnalyze_TalibOscillator(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) {
		c.Oscillator = config.OscillatorTalib
		c.FractalWindow = 1
	})
	res, err := e.Analyze(context.Background(), barsFromRanges(zigzag))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Momentum.Hist) != len(zigzag) {
		t.Errorf("hist length = %d, want %d", len(res.Momentum.Hist), len(zigzag))
	}
	if len(res.Strokes) != 3 {
		t.Errorf("oscillator choice changed the structure: %d strokes", len(res.Strokes))
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.FractalWindow = 0
	if _, err := NewEngine(cfg); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("got %v, want ErrConfigInvalid", err)
	}
}

func TestEngine_ConfigReportsParameters(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) {
		c.FractalWindow = 2
		c.Oscillator = config.OscillatorTalib
	})
	if got := e.Config(); got.FractalWindow != 2 || got.Oscillator != config.OscillatorTalib {
		t.Errorf("Config() = %+v", got)
	}
}

func TestResult_SignalsOf(t *testing.T) {
	r := &Result{Signals: []Signal{
		{Kind: models.Buy1, BarIndex: 3},
		{Kind: models.Sell1, BarIndex: 5},
		{Kind: models.Buy1, BarIndex: 9},
	}}

	buys := r.SignalsOf(models.Buy1)
	if len(buys) != 2 || buys[0].BarIndex != 3 || buys[1].BarIndex != 9 {
		t.Errorf("SignalsOf(BUY1) = %+v", buys)
	}
	if got := r.SignalsOf(models.Buy3); len(got) != 0 {
		t.Errorf("SignalsOf(BUY3) = %+v, want none", got)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	e := newTestEngine(t, func(c *config.EngineConfig) { c.FractalWindow = 1 }, WithWorkers(2))

	series := map[string][]models.Candle{
		"ZIG":   barsFromRanges(zigzag),
		"EMPTY": nil,
		"PAIR":  {candle(0, 10, 11, 9, 10.5), candle(1, 11, 12, 10, 11.5)},
	}

	results := e.AnalyzeBatch(context.Background(), series)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	want := []string{"EMPTY", "PAIR", "ZIG"}
	for i, sym := range want {
		if results[i].Symbol != sym {
			t.Errorf("result %d symbol = %s, want %s", i, results[i].Symbol, sym)
		}
	}
	if !errors.IsInputError(results[0].Err) {
		t.Errorf("EMPTY: got %v, want InputError", results[0].Err)
	}
	if results[1].Err != nil || results[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", results[1].Err, results[2].Err)
	}
	if len(results[2].Result.Strokes) != 3 {
		t.Errorf("ZIG strokes = %d, want 3", len(results[2].Result.Strokes))
	}
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, nil)
	results := e.AnalyzeBatch(ctx, map[string][]models.Candle{"A": barsFromRanges(zigzag)})
	if len(results) != 1 || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("got %+v, want cancellation error", results)
	}
}
