package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chan-analyzer/internal/models"
	"chan-analyzer/internal/store"
	"chan-analyzer/pkg/utils"
)

// addRunCommands adds commands reading stored analysis runs.
func addRunCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRunsCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
}

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Stored analysis runs",
		Long:  "List, inspect and delete runs saved with 'chan analyze --save'.",
	}

	var symbol, timeframe string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			defer app.Close()

			ds, err := app.Store()
			if err != nil {
				return err
			}
			runs, err := ds.GetRuns(cmd.Context(), store.RunFilter{
				Symbol:    strings.ToUpper(symbol),
				Timeframe: timeframe,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(runs)
			}
			if len(runs) == 0 {
				output.Warning("No stored runs")
				return nil
			}
			renderRuns(output, runs, app.Config.UI.DateFormat)
			return nil
		},
	}
	listCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "only runs for this symbol")
	listCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "only runs for this timeframe")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run with its hubs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			defer app.Close()

			ds, err := app.Store()
			if err != nil {
				return err
			}
			run, err := ds.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			hubs, err := ds.GetHubs(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(struct {
					Run  *models.AnalysisRun `json:"run" yaml:"run"`
					Hubs []models.HubRecord  `json:"hubs" yaml:"hubs"`
				}{run, hubs})
			}

			renderRuns(output, []models.AnalysisRun{*run}, app.Config.UI.DateFormat)
			if len(hubs) > 0 {
				output.Println()
				table := NewTable(output, "Hub", "From", "To", "Range", "Strength")
				for _, h := range hubs {
					table.AddRow(
						fmt.Sprintf("#%d", h.HubID),
						h.StartTime.Format(app.Config.UI.DateFormat),
						h.EndTime.Format(app.Config.UI.DateFormat),
						utils.FormatRange(h.Low, h.High, pricePlaces),
						utils.FormatPercent(h.Strength*100),
					)
				}
				table.Render()
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			defer app.Close()

			ds, err := app.Store()
			if err != nil {
				return err
			}
			if err := ds.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Deleted run %s", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}

func newSignalsCmd(app *App) *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "signals <run-id>",
		Short: "List the signals of a stored run",
		Example: `  chan signals 3f1c2d9e-...
  chan signals 3f1c2d9e-... --kind buy1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			defer app.Close()

			filter := store.SignalFilter{Limit: limit}
			if kind != "" {
				k, ok := models.ParseSignalKind(kind)
				if !ok {
					return fmt.Errorf("unknown signal kind %q", kind)
				}
				filter.Kind = k
			}

			ds, err := app.Store()
			if err != nil {
				return err
			}
			// Resolve the run first so an unknown ID is an error rather than an empty list.
			if _, err := ds.GetRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			signals, err := ds.GetSignals(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(signals)
			}
			if len(signals) == 0 {
				output.Warning("No signals")
				return nil
			}
			renderSignalRecords(output, signals, app.Config.UI.DateFormat)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only this signal kind (BUY1..SELL3)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of signals")

	return cmd
}
