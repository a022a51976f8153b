package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chan-analyzer/internal/analysis/chanlun"
	"chan-analyzer/internal/datafeed"
	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/store"
	"chan-analyzer/pkg/utils"
)

// addDataCommands adds commands managing stored bar series.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newSeriesCmd(app))
}

type importResult struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Timeframe string    `json:"timeframe" yaml:"timeframe"`
	Path      string    `json:"path" yaml:"path"`
	Bars      int       `json:"bars" yaml:"bars"`
	From      time.Time `json:"from" yaml:"from"`
	To        time.Time `json:"to" yaml:"to"`
}

func newImportCmd(app *App) *cobra.Command {
	var symbol, timeframe string

	cmd := &cobra.Command{
		Use:   "import <file.csv> [file.csv ...]",
		Short: "Import CSV bars into the local store",
		Long: `Validate and store OHLCV bars from CSV files. The symbol defaults to the file name.
Bars already stored for the same timestamp are replaced.`,
		Example: `  chan import data/sh600519.csv
  chan import btc_1h.csv --symbol BTCUSDT --timeframe 1h`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			defer app.Close()

			if symbol != "" && len(args) > 1 {
				return fmt.Errorf("--symbol applies to a single file")
			}

			ds, err := app.Store()
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), logging.WithOperation(app.Logger, "import"))
			var results []importResult
			for _, path := range args {
				sym := strings.ToUpper(symbol)
				if sym == "" {
					sym = datafeed.SymbolFromPath(path)
				}

				bars, err := datafeed.NewCSVSource(path).Bars(ctx, datafeed.Request{})
				if err != nil {
					return err
				}
				if err := chanlun.ValidateBars(bars); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				started := time.Now()
				err = ds.SaveCandles(ctx, sym, timeframe, bars)
				logging.LogStoreCall(logging.WithSymbol(app.Logger, sym), "save_candles", time.Since(started), err)
				if err != nil {
					return err
				}
				if err := ds.SetLastSync(store.ImportKey(sym, timeframe), time.Now()); err != nil {
					return err
				}

				results = append(results, importResult{
					Symbol:    sym,
					Timeframe: timeframe,
					Path:      path,
					Bars:      len(bars),
					From:      bars[0].Timestamp,
					To:        bars[len(bars)-1].Timestamp,
				})
			}

			if output.IsStructured() {
				return output.Structured(results)
			}
			for _, r := range results {
				output.Success("✓ Imported %s bars for %s (%s) %s .. %s",
					utils.FormatCount(int64(r.Bars)), r.Symbol, r.Timeframe,
					r.From.Format(app.Config.UI.DateFormat), r.To.Format(app.Config.UI.DateFormat))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to store the bars under")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1d", "timeframe label")

	return cmd
}

func newSeriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "List stored bar series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			defer app.Close()

			ds, err := app.Store()
			if err != nil {
				return err
			}
			series, err := ds.ListSeries(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(series)
			}
			if len(series) == 0 {
				output.Warning("No series stored. Use 'chan import' first.")
				return nil
			}

			table := NewTable(output, "Symbol", "TF", "Bars", "From", "To", "Imported")
			for _, s := range series {
				imported := "-"
				if t := ds.GetLastSync(store.ImportKey(s.Symbol, s.Timeframe)); !t.IsZero() {
					imported = t.Local().Format("2006-01-02 15:04")
				}
				table.AddRow(
					s.Symbol,
					s.Timeframe,
					utils.FormatCount(int64(s.Count)),
					s.From.Format(app.Config.UI.DateFormat),
					s.To.Format(app.Config.UI.DateFormat),
					imported,
				)
			}
			table.Render()
			return nil
		},
	}
}
