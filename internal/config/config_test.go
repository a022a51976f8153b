package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chan-analyzer/internal/errors"
)

func TestLoad_MissingFileWritesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("expected template to be written: %v", err)
	}
	if cfg.Engine != DefaultEngineConfig() {
		t.Errorf("engine = %+v, want defaults", cfg.Engine)
	}
	if cfg.Store.Path != filepath.Join(dir, "chan.db") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}

	// The template itself must load cleanly.
	again, err := Load(dir)
	if err != nil {
		t.Fatalf("reloading template: %v", err)
	}
	if again.Store.RetryDelay != 200*time.Millisecond {
		t.Errorf("retry delay = %v, want 200ms", again.Store.RetryDelay)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
[engine]
fractal_window = 2
oscillator = "talib"

[batch]
workers = 8
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.FractalWindow != 2 {
		t.Errorf("fractal window = %d, want 2", cfg.Engine.FractalWindow)
	}
	if cfg.Engine.Oscillator != OscillatorTalib {
		t.Errorf("oscillator = %q, want talib", cfg.Engine.Oscillator)
	}
	if cfg.Engine.MACDSlow != 26 {
		t.Errorf("unset key lost its default: macd_slow = %d", cfg.Engine.MACDSlow)
	}
	if cfg.Batch.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Batch.Workers)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHAN_FRACTAL_WINDOW", "5")
	t.Setenv("CHAN_DB_PATH", "/tmp/other.db")
	t.Setenv("CHAN_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.FractalWindow != 5 {
		t.Errorf("fractal window = %d, want 5", cfg.Engine.FractalWindow)
	}
	if cfg.Store.Path != "/tmp/other.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"zero window", func(e *EngineConfig) { e.FractalWindow = 0 }},
		{"zero hub lookahead", func(e *EngineConfig) { e.HubLookahead = 0 }},
		{"zero signal lookahead", func(e *EngineConfig) { e.SignalLookahead = 0 }},
		{"fast not below slow", func(e *EngineConfig) { e.MACDFast = 26 }},
		{"unknown oscillator", func(e *EngineConfig) { e.Oscillator = "rsi" }},
	}

	if err := DefaultEngineConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEngineConfig()
			tt.mutate(&e)
			err := e.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, errors.ErrConfigInvalid) {
				t.Errorf("error %v should match ErrConfigInvalid", err)
			}
		})
	}
}

func TestConfig_ValidateWorkers(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Batch.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero workers")
	}
}
