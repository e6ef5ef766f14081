package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"invoice-tracker/internal/export"
	"invoice-tracker/internal/repository"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored receipts to an XLSX workbook",
	Example: `  # everything under a profile
  invoicectl export --profile "Local Batch" -o receipts.xlsx

  # only receipts ingested in April 2025
  invoicectl export --profile "Local Batch" --from 2025-04-01 --to 2025-04-30 -o april.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("profile", "", "profile name (required)")
	exportCmd.Flags().StringP("output", "o", "receipts.xlsx", "output XLSX path")
	exportCmd.Flags().String("from", "", "ingestion window start, YYYY-MM-DD")
	exportCmd.Flags().String("to", "", "ingestion window end, YYYY-MM-DD")
	_ = exportCmd.MarkFlagRequired("profile")
}

func runExport(cmd *cobra.Command, _ []string) error {
	logger := cmdLogger()
	ctx := cmd.Context()

	profileName, _ := cmd.Flags().GetString("profile")
	out, _ := cmd.Flags().GetString("output")
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}

	_, db, closeDB, err := openDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	profilesRepo := repository.NewProfileRepository(db, logger)
	receiptsRepo := repository.NewReceiptRepository(db, logger)

	profile, err := profilesRepo.GetOrCreateByName(ctx, profileName, "USD")
	if err != nil {
		return fmt.Errorf("resolve profile: %w", err)
	}

	b, err := export.NewService(receiptsRepo, logger).ExportReceiptsXLSX(ctx, profile.ID, from, to)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}
