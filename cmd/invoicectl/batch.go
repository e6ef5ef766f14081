package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"invoice-tracker/internal/extract"
	"invoice-tracker/internal/export"
	"invoice-tracker/internal/ingest"
	"invoice-tracker/internal/ocr"
	processor "invoice-tracker/internal/pipeline"
	"invoice-tracker/internal/pipeline/parsefields"
	"invoice-tracker/internal/pipeline/textextract"
	"invoice-tracker/internal/repository"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Ingest and process a directory of receipts, then export XLSX",
	Long: `Batch walks a directory, records every supported receipt file,
runs the extraction pipeline over each one synchronously, and writes an
XLSX workbook with the results. Files already known by content hash are
skipped.`,
	Example: `  # process ~/receipts into the configured database
  invoicectl batch --dir ~/receipts

  # export to a specific workbook under a named profile
  invoicectl batch --dir ./scans --profile "ACME 2025" --out acme.xlsx`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().String("dir", "", "directory to process (required)")
	batchCmd.Flags().String("profile", "Local Batch", "profile name, created on first use")
	batchCmd.Flags().String("out", "", "output XLSX path (default: <dir>/../receipts.xlsx)")
	batchCmd.Flags().Bool("reprocess", false, "re-run extraction for deduplicated files too")
	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	logger := cmdLogger()
	ctx := cmd.Context()

	dir, _ := cmd.Flags().GetString("dir")
	profileName, _ := cmd.Flags().GetString("profile")
	out, _ := cmd.Flags().GetString("out")
	reprocess, _ := cmd.Flags().GetBool("reprocess")
	if out == "" {
		out = filepath.Join(filepath.Dir(dir), "receipts.xlsx")
	}

	cfg, db, closeDB, err := openDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	profilesRepo := repository.NewProfileRepository(db, logger)
	filesRepo := repository.NewReceiptFileRepository(db, logger)
	jobsRepo := repository.NewExtractJobRepository(db, logger)
	receiptsRepo := repository.NewReceiptRepository(db, logger)

	profile, err := profilesRepo.GetOrCreateByName(ctx, profileName, "USD")
	if err != nil {
		return fmt.Errorf("get or create profile: %w", err)
	}

	ocrExtractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:        cfg.OCR.Pdftotext,
		Pdftoppm:         cfg.OCR.Pdftoppm,
		Tesseract:        cfg.OCR.Tesseract,
		TesseractLang:    cfg.OCR.TesseractLang,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPages,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)
	if cfg.OCR.CachePath != "" {
		cache, err := ocr.OpenCache(cfg.OCR.CachePath)
		if err != nil {
			return fmt.Errorf("open ocr cache: %w", err)
		}
		defer func() { _ = cache.Close() }()
		ocrExtractor = ocrExtractor.WithCache(cache)
	}

	fieldExtractor := extract.NewRulesExtractor(extract.ExtraLabels{
		Total:    cfg.Parser.ExtraTotalLabels,
		Tax:      cfg.Parser.ExtraTaxLabels,
		Subtotal: cfg.Parser.ExtraSubtotalLabels,
	}, logger)

	proc := processor.NewProcessor(logger,
		textextract.NewPipeline(filesRepo, jobsRepo, extract.NewOCRAdapter(ocrExtractor, logger), logger),
		parsefields.NewPipeline(logger, parsefields.Config{}, jobsRepo, filesRepo, profilesRepo, receiptsRepo, fieldExtractor),
	)

	ingestor := ingest.NewFSIngestor(profilesRepo, filesRepo, logger)
	results, stats, err := ingestor.IngestDirectory(ctx, profile.ID, dir, true)
	if err != nil {
		return fmt.Errorf("ingest directory: %w", err)
	}
	fmt.Fprintf(os.Stderr, "ingested: scanned=%d matched=%d succeeded=%d deduplicated=%d failed=%d\n",
		stats.Scanned, stats.Matched, stats.Succeeded, stats.Deduplicated, stats.Failed)

	var processed, failed int
	for _, res := range results {
		if res.Err != "" {
			continue
		}
		if res.Deduplicated && !reprocess {
			continue
		}
		if _, err := proc.ProcessFile(ctx, res.FileID); err != nil {
			logger.Error("processing failed", "path", res.SourcePath, "error", err)
			failed++
			continue
		}
		processed++
	}
	fmt.Fprintf(os.Stderr, "processed=%d failed=%d\n", processed, failed)

	b, err := export.NewService(receiptsRepo, logger).ExportReceiptsXLSX(ctx, profile.ID, nil, nil)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}
