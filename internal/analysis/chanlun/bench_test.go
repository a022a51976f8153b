package chanlun

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"chan-analyzer/internal/config"
	"chan-analyzer/internal/models"
)

// generateBenchCandles builds a deterministic oscillating series of valid bars.
func generateBenchCandles(count int, phase float64) []models.Candle {
	candles := make([]models.Candle, count)
	prev := 1000.0
	for i := 0; i < count; i++ {
		x := float64(i)
		close := 1000 + 0.1*x + 25*math.Sin(x/9+phase) + 6*math.Sin(x*1.3)
		high := math.Max(prev, close) + 2 + math.Abs(math.Sin(x))
		low := math.Min(prev, close) - 2 - math.Abs(math.Cos(x))
		candles[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      prev,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(10000 + i*100),
		}
		prev = close
	}
	return candles
}

func BenchmarkMerge(b *testing.B) {
	candles := generateBenchCandles(2000, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Merge(candles)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	ctx := context.Background()
	for _, size := range []int{500, 5000} {
		candles := generateBenchCandles(size, 0)
		b.Run(fmt.Sprintf("bars=%d", size), func(b *testing.B) {
			for _, osc := range []string{config.OscillatorEWM, config.OscillatorTalib} {
				cfg := config.DefaultEngineConfig()
				cfg.Oscillator = osc
				engine, err := NewEngine(cfg)
				if err != nil {
					b.Fatal(err)
				}
				b.Run(osc, func(b *testing.B) {
					for i := 0; i < b.N; i++ {
						if _, err := engine.Analyze(ctx, candles); err != nil {
							b.Fatal(err)
						}
					}
				})
			}
		})
	}
}

// BenchmarkAnalyzeBatch compares a worker pool against one-by-one analysis of many symbols.
func BenchmarkAnalyzeBatch(b *testing.B) {
	ctx := context.Background()
	series := make(map[string][]models.Candle)
	for i := 0; i < 16; i++ {
		series[fmt.Sprintf("SYM%02d", i)] = generateBenchCandles(1000, float64(i))
	}

	b.Run("Sequential", func(b *testing.B) {
		engine, err := NewEngine(config.DefaultEngineConfig())
		if err != nil {
			b.Fatal(err)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			for _, bars := range series {
				if _, err := engine.Analyze(ctx, bars); err != nil {
					b.Fatal(err)
				}
			}
		}
	})

	b.Run("Pool", func(b *testing.B) {
		engine, err := NewEngine(config.DefaultEngineConfig(), WithWorkers(4))
		if err != nil {
			b.Fatal(err)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			for _, r := range engine.AnalyzeBatch(ctx, series) {
				if r.Err != nil {
					b.Fatal(r.Err)
				}
			}
		}
	})
}
