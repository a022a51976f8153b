// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"chan-analyzer/internal/analysis/chanlun"
	"chan-analyzer/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)
	ListSeries(ctx context.Context) ([]Series, error)

	// Analysis runs
	SaveRun(ctx context.Context, meta RunMeta, res *chanlun.Result) (*models.AnalysisRun, error)
	GetRuns(ctx context.Context, filter RunFilter) ([]models.AnalysisRun, error)
	GetRun(ctx context.Context, id string) (*models.AnalysisRun, error)
	GetSignals(ctx context.Context, runID string, filter SignalFilter) ([]models.SignalRecord, error)
	GetHubs(ctx context.Context, runID string) ([]models.HubRecord, error)
	DeleteRun(ctx context.Context, id string) error

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// Series identifies a stored candle series.
type Series struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Timeframe string    `json:"timeframe" yaml:"timeframe"`
	Count     int       `json:"count" yaml:"count"`
	From      time.Time `json:"from" yaml:"from"`
	To        time.Time `json:"to" yaml:"to"`
}

// RunMeta carries what a run record needs beyond the result itself.
type RunMeta struct {
	Symbol        string
	Timeframe     string
	FractalWindow int
	Oscillator    string
}

// RunFilter represents filters for querying runs.
type RunFilter struct {
	Symbol    string
	Timeframe string
	Limit     int
}

// SignalFilter represents filters for querying stored signals.
type SignalFilter struct {
	Kind  models.SignalKind
	Limit int
}
