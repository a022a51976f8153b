// Package cli provides the command-line interface for the chan analyzer.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chan-analyzer/internal/analysis/chanlun"
	"chan-analyzer/internal/config"
	"chan-analyzer/internal/datafeed"
	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/metrics"
	"chan-analyzer/internal/resilience"
	"chan-analyzer/internal/store"
	"chan-analyzer/pkg/utils"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	store   store.DataStore
	breaker *resilience.CircuitBreaker
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// StoreBreaker returns the circuit breaker guarding store reads, or nil when disabled.
func (a *App) StoreBreaker() *resilience.CircuitBreaker {
	if a.Config.Store.BreakerThreshold == 0 {
		return nil
	}
	if a.breaker == nil {
		a.breaker = datafeed.NewStoreBreaker(a.Config.Store.BreakerThreshold, a.Config.Store.BreakerCooldown)
		a.breaker.OnStateChange(func(from, to resilience.CircuitState) {
			a.Logger.Warn().
				Str("breaker", a.breaker.Name()).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("Circuit breaker state changed")
		})
	}
	return a.breaker
}

// NewEngine builds an engine from the current configuration, reporting to the app metrics.
func (a *App) NewEngine(engineCfg config.EngineConfig) (*chanlun.Engine, error) {
	return chanlun.NewEngine(engineCfg,
		chanlun.WithStageObserver(a.Metrics),
		chanlun.WithWorkers(a.Config.Batch.Workers),
	)
}

// RetryConfig returns the store read retry policy, counting retries in the metrics.
func (a *App) RetryConfig() utils.RetryConfig {
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = a.Config.Store.RetryAttempts
	retry.InitialDelay = a.Config.Store.RetryDelay
	retry.OnRetry = func(int, error) { a.Metrics.ObserveRetry() }
	return retry
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewMetrics(),
	}

	rootCmd := &cobra.Command{
		Use:   "chan",
		Short: "Chan theory structure analysis for OHLC bar series",
		Long: `chan derives the Chan theory structure of a price series: inclusion-merged bars,
fractals, strokes, segments, hubs and the three classes of buy and sell points.

Bars come from CSV files or from series previously imported into the local store.
Use 'chan help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.Logger = logging.NewLoggerWithConfig(loaded.LogConfig())
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/chan-analyzer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("yaml", false, "output in YAML format")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addRunCommands(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if output.IsStructured() {
				return output.Structured(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("chan-analyzer v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if output.IsStructured() {
				return output.Structured(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			path := filepath.Join(dir, "config.toml")
			if output.IsStructured() {
				return output.Structured(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Engine")
	output.Printf("  Fractal window:   %d\n", cfg.Engine.FractalWindow)
	output.Printf("  Hub lookahead:    %d\n", cfg.Engine.HubLookahead)
	output.Printf("  Signal lookahead: %d\n", cfg.Engine.SignalLookahead)
	output.Printf("  MACD:             %d/%d/%d\n", cfg.Engine.MACDFast, cfg.Engine.MACDSlow, cfg.Engine.MACDSignal)
	output.Printf("  Oscillator:       %s\n", cfg.Engine.Oscillator)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:             %s\n", cfg.Store.Path)
	output.Printf("  Retry:            %d attempts, %s initial delay\n", cfg.Store.RetryAttempts, cfg.Store.RetryDelay)
	output.Printf("  Breaker:          %d failures, %s cooldown\n", cfg.Store.BreakerThreshold, cfg.Store.BreakerCooldown)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  File:             %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)
	output.Println()

	output.Bold("Batch")
	output.Printf("  Workers:          %d\n", cfg.Batch.Workers)
}
