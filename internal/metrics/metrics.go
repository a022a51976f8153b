// Package metrics holds Prometheus metrics for analysis runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the analysis engine.
// Each instance owns its registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec // labels: outcome=ok|error
	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec // labels: stage
	StageItems    *prometheus.GaugeVec     // labels: stage
	SignalsTotal  prometheus.Counter
	StoreRetries  prometheus.Counter
}

// NewMetrics registers and returns all metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chan_runs_total",
			Help: "Analysis runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chan_run_duration_seconds",
			Help:    "Wall time of a full analysis run",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chan_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"stage"}),
		StageItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chan_stage_items",
			Help: "Features produced by the most recent run of each stage",
		}, []string{"stage"}),
		SignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chan_signals_total",
			Help: "Signals emitted across all runs",
		}),
		StoreRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chan_store_retries_total",
			Help: "Retried store reads",
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageDuration,
		m.StageItems,
		m.SignalsTotal,
		m.StoreRetries,
	)
	return m
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records one stage of a run.
func (m *Metrics) ObserveStage(stage string, items int, elapsed time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	m.StageItems.WithLabelValues(stage).Set(float64(items))
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(signals int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.SignalsTotal.Add(float64(signals))
}

// ObserveRetry counts a retried store read.
func (m *Metrics) ObserveRetry() {
	m.StoreRetries.Inc()
}

// WriteTextfile writes the current values in the text exposition format,
// for pickup by a node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
