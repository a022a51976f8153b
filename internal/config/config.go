// Package config provides configuration management for the analyzer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/logging"
)

// Oscillator flavours.
const (
	OscillatorEWM   = "ewm"
	OscillatorTalib = "talib"
)

// Config holds all application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	UI      UIConfig      `mapstructure:"ui"`
	Batch   BatchConfig   `mapstructure:"batch"`
}

// EngineConfig holds the analysis engine parameters.
type EngineConfig struct {
	FractalWindow   int    `mapstructure:"fractal_window"`
	HubLookahead    int    `mapstructure:"hub_lookahead"`
	SignalLookahead int    `mapstructure:"signal_lookahead"`
	MACDFast        int    `mapstructure:"macd_fast"`
	MACDSlow        int    `mapstructure:"macd_slow"`
	MACDSignal      int    `mapstructure:"macd_signal"`
	Oscillator      string `mapstructure:"oscillator"` // "ewm", "talib"
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// StoreConfig holds SQLite store configuration.
type StoreConfig struct {
	Path          string        `mapstructure:"path"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`

	// Consecutive failed reads that open the circuit breaker; 0 disables it.
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// BatchConfig holds batch analysis configuration.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/chan-analyzer"
	}
	return filepath.Join(home, ".config", "chan-analyzer")
}

// DefaultEngineConfig returns the engine parameters used when nothing is configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FractalWindow:   3,
		HubLookahead:    20,
		SignalLookahead: 20,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		Oscillator:      OscillatorEWM,
	}
}

// Default returns the full default configuration rooted at configDir.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	logCfg := logging.DefaultLogConfig()
	return &Config{
		Engine: DefaultEngineConfig(),
		Logging: LoggingConfig{
			Level:      logCfg.Level,
			Console:    logCfg.Console,
			File:       logCfg.File,
			FilePath:   filepath.Join(configDir, "logs", "chan.log"),
			MaxSize:    logCfg.MaxSize,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAge,
		},
		Store: StoreConfig{
			Path:          filepath.Join(configDir, "chan.db"),
			RetryAttempts: 3,
			RetryDelay:    200 * time.Millisecond,

			BreakerThreshold: 3,
			BreakerCooldown:  30 * time.Second,
		},
		UI: UIConfig{
			ColorEnabled: true,
			DateFormat:   "2006-01-02",
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A missing config.toml is replaced by a commented template and defaults are returned.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default(configDir)

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHAN_FRACTAL_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.FractalWindow = n
		}
	}
	if v := os.Getenv("CHAN_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CHAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return errors.NewValidationError("batch.workers", c.Batch.Workers, "must be at least 1")
	}
	if c.Store.RetryAttempts < 1 {
		return errors.NewValidationError("store.retry_attempts", c.Store.RetryAttempts, "must be at least 1")
	}
	if c.Store.BreakerThreshold < 0 {
		return errors.NewValidationError("store.breaker_threshold", c.Store.BreakerThreshold, "must not be negative")
	}
	return nil
}

// Validate validates the engine parameters.
func (e EngineConfig) Validate() error {
	if e.FractalWindow < 1 {
		return errors.NewValidationError("engine.fractal_window", e.FractalWindow, "must be at least 1")
	}
	if e.HubLookahead < 1 {
		return errors.NewValidationError("engine.hub_lookahead", e.HubLookahead, "must be at least 1")
	}
	if e.SignalLookahead < 1 {
		return errors.NewValidationError("engine.signal_lookahead", e.SignalLookahead, "must be at least 1")
	}
	if e.MACDFast < 1 || e.MACDSignal < 1 {
		return errors.NewValidationError("engine.macd_fast", e.MACDFast, "periods must be at least 1")
	}
	if e.MACDFast >= e.MACDSlow {
		return errors.NewValidationError("engine.macd_slow", e.MACDSlow, "must be greater than macd_fast")
	}
	if e.Oscillator != OscillatorEWM && e.Oscillator != OscillatorTalib {
		return errors.NewValidationError("engine.oscillator", e.Oscillator, "must be 'ewm' or 'talib'")
	}
	return nil
}

// LogConfig converts the logging section to a logging.LogConfig.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
