package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds workflow documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newExamplesCmd(app))
}

type workflow struct {
	Title    string   `json:"title" yaml:"title"`
	Commands []string `json:"commands" yaml:"commands"`
}

var workflows = []workflow{
	{
		Title: "Analyse an exported CSV",
		Commands: []string{
			"chan analyze data/sh600519.csv",
			"chan analyze data/sh600519.csv --bars --window 2",
		},
	},
	{
		Title: "Keep series in the store and track results",
		Commands: []string{
			"chan import btc_1h.csv --symbol BTCUSDT --timeframe 1h",
			"chan analyze --symbol BTCUSDT --timeframe 1h --save",
			"chan runs list --symbol BTCUSDT",
			"chan signals <run-id> --kind BUY2",
		},
	},
	{
		Title: "Scan many instruments",
		Commands: []string{
			"chan analyze data/*.csv --json > results.json",
			"chan analyze data/*.csv --metrics-file /var/lib/node_exporter/chan.prom",
		},
	},
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if output.IsStructured() {
				return output.Structured(workflows)
			}
			for i, w := range workflows {
				if i > 0 {
					output.Println()
				}
				output.Bold("%s", w.Title)
				for _, c := range w.Commands {
					output.Printf("  %s\n", c)
				}
			}
			return nil
		},
	}
}
