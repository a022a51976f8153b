package chanlun

import (
	"testing"
	"time"

	"chan-analyzer/internal/config"
	"chan-analyzer/internal/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// barsFromRanges builds hourly candles from [low, high] pairs, opening and closing mid-range.
func barsFromRanges(ranges [][2]float64) []models.Candle {
	bars := make([]models.Candle, len(ranges))
	for i, r := range ranges {
		mid := (r[0] + r[1]) / 2
		bars[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      mid,
			High:      r[1],
			Low:       r[0],
			Close:     mid,
			Volume:    1000,
		}
	}
	return bars
}

// mergedFromRanges builds a merged series with one input bar per merged bar.
func mergedFromRanges(ranges [][2]float64) []MergedBar {
	merged := make([]MergedBar, len(ranges))
	for i, r := range ranges {
		mid := (r[0] + r[1]) / 2
		merged[i] = MergedBar{
			Index:     i,
			Start:     i,
			End:       i,
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      mid,
			High:      r[1],
			Low:       r[0],
			Close:     mid,
		}
	}
	return merged
}

func candle(i int, open, high, low, close float64) models.Candle {
	return models.Candle{
		Timestamp: t0.Add(time.Duration(i) * time.Hour),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

func newTestEngine(t *testing.T, mutate func(*config.EngineConfig), opts ...Option) *Engine {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

// zigzag has four fractals with window 1: bottom at 1, top at 3, bottom at 5, top at 7.
// Pivot bars overlap in price so none of the strokes is broken by a gap.
var zigzag = [][2]float64{
	{8, 11},
	{4, 10},
	{6, 11},
	{9, 14},
	{7, 13},
	{3, 9.5},
	{5, 10},
	{9, 13.5},
	{6, 12},
}
