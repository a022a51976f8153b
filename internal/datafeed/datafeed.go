// Package datafeed supplies bar sequences to the analysis engine.
package datafeed

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"chan-analyzer/internal/models"
)

// Request selects a bar series. Zero From or To leave that end open.
type Request struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
}

// Source fetches bars in ascending timestamp order.
type Source interface {
	Bars(ctx context.Context, req Request) ([]models.Candle, error)
}

// SymbolFromPath derives a symbol from a file name, e.g. "data/sh600519.csv" -> "SH600519".
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

func inRange(t time.Time, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
