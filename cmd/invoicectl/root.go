package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"invoice-tracker/internal/common"
	"invoice-tracker/internal/repository"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "invoicectl - receipt extraction and invoice tracking from the command line",
	Long: `invoicectl runs the receipt extraction pipeline without the daemon:
extract fields from a single document, batch-process a directory into
the database, or export stored receipts to XLSX.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info-level logging")
}

func cmdLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openDatabase loads config and opens the configured database, which
// also applies migrations. Caller closes via the returned function.
func openDatabase(ctx context.Context, logger *slog.Logger) (*common.Config, *repository.DB, func(), error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, func() { db.Close(logger) }, nil
}
