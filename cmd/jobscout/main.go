// Package main is the jobscout CLI: one-shot operational commands next to
// the long-running scraper and processor services.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/jobscout/internal/config"
	"github.com/fairyhunter13/jobscout/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "jobscout",
		Short:         "Job-posting ingestion pipeline operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(),
		batchCmd(),
		processCmd(),
		scoreChannelsCmd(),
		retrainCmd(),
		verifyCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// loadConfig parses the environment and installs the logger; every
// subcommand starts here.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()
	return cfg, nil
}
