package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chan-analyzer/internal/analysis/chanlun"
	"chan-analyzer/internal/config"
	"chan-analyzer/internal/datafeed"
	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/models"
	"chan-analyzer/internal/store"
)

// addAnalysisCommands adds analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
}

// analysisReport is the structured form of one analysed series.
type analysisReport struct {
	Symbol   string                  `json:"symbol" yaml:"symbol"`
	RunID    string                  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Error    string                  `json:"error,omitempty" yaml:"error,omitempty"`
	Summary  *chanlun.Summary        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Signals  []chanlun.Signal        `json:"signals,omitempty" yaml:"signals,omitempty"`
	Hubs     []chanlun.Hub           `json:"hubs,omitempty" yaml:"hubs,omitempty"`
	Strokes  []chanlun.Stroke        `json:"strokes,omitempty" yaml:"strokes,omitempty"`
	Segments []chanlun.Segment       `json:"segments,omitempty" yaml:"segments,omitempty"`
	Bars     []chanlun.BarAnnotation `json:"bars,omitempty" yaml:"bars,omitempty"`
}

type analyzeOptions struct {
	symbols    []string
	timeframe  string
	from, to   string
	window     int
	oscillator string
	kind       string
	save       bool
	showBars   bool
	metrics    string
	timeout    time.Duration
}

func newAnalyzeCmd(app *App) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file.csv ...]",
		Short: "Derive Chan structure and buy/sell points",
		Long: `Run the full decomposition over one or more bar series:
- Inclusion merge and fractal detection
- Strokes, segments and hubs
- First, second and third class buy and sell points

Series come from CSV files given as arguments, or from the store with --symbol.
Several series are analysed concurrently.`,
		Example: `  chan analyze data/sh600519.csv
  chan analyze --symbol BTCUSDT --timeframe 1h --from 2024-01-01
  chan analyze a.csv b.csv --save --metrics-file /var/lib/node_exporter/chan.prom
  chan analyze data/spy.csv --window 2 --oscillator talib --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, app, opts, args)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.symbols, "symbol", "s", nil, "stored symbol to analyse (repeatable)")
	cmd.Flags().StringVarP(&opts.timeframe, "timeframe", "t", "1d", "timeframe of stored bars")
	cmd.Flags().StringVar(&opts.from, "from", "", "first bar date")
	cmd.Flags().StringVar(&opts.to, "to", "", "last bar date")
	cmd.Flags().IntVarP(&opts.window, "window", "w", 0, "fractal window (default from config)")
	cmd.Flags().StringVar(&opts.oscillator, "oscillator", "", "momentum oscillator: ewm or talib (default from config)")
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "", "only list signals of this kind (BUY1..SELL3)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the run, its signals and hubs")
	cmd.Flags().BoolVar(&opts.showBars, "bars", false, "include the per-bar annotation table")
	cmd.Flags().StringVar(&opts.metrics, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall time limit")

	return cmd
}

func runAnalyze(cmd *cobra.Command, app *App, opts *analyzeOptions, args []string) error {
	output := NewOutput(cmd, app.Config.UI.ColorEnabled)
	defer app.Close()

	if len(args) == 0 && len(opts.symbols) == 0 {
		return fmt.Errorf("nothing to analyse: pass CSV files or --symbol")
	}

	engineCfg := app.Config.Engine
	if opts.window > 0 {
		engineCfg.FractalWindow = opts.window
	}
	if opts.oscillator != "" {
		engineCfg.Oscillator = strings.ToLower(opts.oscillator)
	}
	engine, err := app.NewEngine(engineCfg)
	if err != nil {
		return err
	}

	var kind models.SignalKind
	if opts.kind != "" {
		k, ok := models.ParseSignalKind(opts.kind)
		if !ok {
			return fmt.Errorf("unknown signal kind %q", opts.kind)
		}
		kind = k
	}

	from, err := parseDate(opts.from, app.Config.UI.DateFormat)
	if err != nil {
		return err
	}
	to, err := parseDate(opts.to, app.Config.UI.DateFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	logger := logging.WithOperation(app.Logger, "analyze")
	ctx = logging.WithLogger(ctx, logger)

	series, loadErrs, err := loadSeries(ctx, app, opts, args, from, to)
	if err != nil {
		return err
	}

	started := time.Now()
	results := engine.AnalyzeBatch(ctx, series)
	logger.Info().
		Int("series", len(results)).
		Dur("duration", time.Since(started)).
		Msg("Analysis finished")

	reports := make([]analysisReport, 0, len(results)+len(loadErrs))
	failed := 0
	var firstErr error
	for _, br := range results {
		report := analysisReport{Symbol: br.Symbol}
		if br.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = br.Err
			}
			report.Error = br.Err.Error()
			symLogger := logging.WithSymbol(logger, br.Symbol)
			symLogger.Error().Err(br.Err).Msg("Analysis failed")
			reports = append(reports, report)
			continue
		}

		if opts.save {
			runID, err := saveRun(ctx, app, br.Symbol, opts.timeframe, engine.Config(), br.Result)
			if err != nil {
				return err
			}
			report.RunID = runID
		}
		fillReport(&report, br.Result, kind, opts.showBars)
		reports = append(reports, report)
	}

	for _, sym := range sortedKeys(loadErrs) {
		failed++
		if firstErr == nil {
			firstErr = loadErrs[sym]
		}
		reports = append(reports, analysisReport{Symbol: sym, Error: loadErrs[sym].Error()})
	}

	if opts.metrics != "" {
		if err := app.Metrics.WriteTextfile(opts.metrics); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if output.IsStructured() {
		var payload interface{} = reports
		if len(reports) == 1 {
			payload = reports[0]
		}
		if err := output.Structured(payload); err != nil {
			return err
		}
	} else {
		for i := range reports {
			if i > 0 {
				output.Println()
			}
			renderReport(output, &reports[i], app.Config.UI.DateFormat)
		}
	}

	if failed > 0 {
		if len(reports) == 1 {
			return firstErr
		}
		return fmt.Errorf("%d of %d series failed", failed, len(reports))
	}
	return nil
}

// loadSeries gathers every requested series keyed by symbol. CSV problems abort the
// command; a stored symbol that cannot be read is reported per symbol instead.
func loadSeries(ctx context.Context, app *App, opts *analyzeOptions, files []string, from, to time.Time) (map[string][]models.Candle, map[string]error, error) {
	series := make(map[string][]models.Candle, len(files)+len(opts.symbols))
	failed := make(map[string]error)
	req := datafeed.Request{Timeframe: opts.timeframe, From: from, To: to}

	for _, path := range files {
		symbol := datafeed.SymbolFromPath(path)
		if _, dup := series[symbol]; dup {
			return nil, nil, fmt.Errorf("duplicate symbol %s from %s", symbol, path)
		}
		bars, err := datafeed.NewCSVSource(path).Bars(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		series[symbol] = bars
	}

	if len(opts.symbols) > 0 {
		ds, err := app.Store()
		if err != nil {
			return nil, nil, err
		}
		src := datafeed.NewStoreSource(ds, app.RetryConfig())
		if cb := app.StoreBreaker(); cb != nil {
			src.WithBreaker(cb)
		}
		for _, sym := range opts.symbols {
			sym = strings.ToUpper(sym)
			if _, dup := series[sym]; dup {
				return nil, nil, fmt.Errorf("duplicate symbol %s", sym)
			}
			req.Symbol = sym
			bars, err := src.Bars(ctx, req)
			if err != nil {
				symLogger := logging.WithSymbol(app.Logger, sym)
				symLogger.Error().Err(err).Msg("Failed to load series")
				failed[sym] = err
				continue
			}
			series[sym] = bars
		}
		if cb := app.StoreBreaker(); cb != nil && cb.Rejected() > 0 {
			app.Logger.Warn().
				Str("breaker", cb.Name()).
				Int64("rejected", cb.Rejected()).
				Msg("Store reads skipped while the circuit was open")
		}
	}
	return series, failed, nil
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func saveRun(ctx context.Context, app *App, symbol, timeframe string, cfg config.EngineConfig, res *chanlun.Result) (string, error) {
	ds, err := app.Store()
	if err != nil {
		return "", err
	}

	started := time.Now()
	run, err := ds.SaveRun(ctx, store.RunMeta{
		Symbol:        symbol,
		Timeframe:     timeframe,
		FractalWindow: cfg.FractalWindow,
		Oscillator:    cfg.Oscillator,
	}, res)
	logger := logging.WithSymbol(app.Logger, symbol)
	logging.LogStoreCall(logger, "save_run", time.Since(started), err)
	if err != nil {
		return "", err
	}
	runLogger := logging.WithRun(logger, run.ID)
	runLogger.Info().Int("signals", run.Signals).Msg("Run saved")
	return run.ID, nil
}

// fillReport copies res into report. A non-empty kind narrows the signal list; the
// summary still counts every kind.
func fillReport(report *analysisReport, res *chanlun.Result, kind models.SignalKind, withBars bool) {
	summary := res.Summary()
	report.Summary = &summary
	report.Signals = res.Signals
	if kind != "" {
		report.Signals = res.SignalsOf(kind)
	}
	report.Hubs = res.Hubs
	report.Strokes = res.Strokes
	report.Segments = res.Segments
	if withBars {
		report.Bars = res.Bars
	}
}

// parseDate accepts the configured date format or RFC 3339. Empty means unbounded.
func parseDate(s, layout string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if layout == "" {
		layout = "2006-01-02"
	}
	if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, layout)
	}
	return t, nil
}
