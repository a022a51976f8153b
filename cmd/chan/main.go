// Command chan analyses OHLC bar series with Chan theory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chan-analyzer/internal/cli"
	"chan-analyzer/internal/config"
	"chan-analyzer/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.LogConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
