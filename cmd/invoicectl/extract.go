package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"invoice-tracker/internal/common"
	"invoice-tracker/internal/extract"
	"invoice-tracker/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract structured fields from one receipt document",
	Long: `Extract runs the full two-stage extraction on a single file and
prints the structured record as JSON, without touching the database.

PDF files use their embedded text layer when present; scanned PDFs and
images go through tesseract. Plain .txt files skip OCR entirely.`,
	Example: `  # extract from a scanned receipt
  invoicectl extract receipt.jpg

  # extract from already-OCR'd text on stdin
  cat receipt.txt | invoicectl extract -

  # write the record to a file
  invoicectl extract invoice.pdf -o record.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	extractCmd.Flags().Bool("pretty", false, "indent the JSON output")
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger := cmdLogger()
	outputPath, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")

	cfg, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var text string
	if args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	} else {
		extractor := ocr.NewExtractor(ocr.Config{
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
		res, err := extractor.Extract(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
		text = res.Text
	}

	rules := extract.NewRulesExtractor(extract.ExtraLabels{
		Total:    cfg.Parser.ExtraTotalLabels,
		Tax:      cfg.Parser.ExtraTaxLabels,
		Subtotal: cfg.Parser.ExtraSubtotalLabels,
	}, logger)
	fields, err := rules.ExtractFields(cmd.Context(), text)
	if err != nil {
		return err
	}

	out := fields.JSON
	if pretty {
		out, err = json.MarshalIndent(fields.Record, "", "  ")
		if err != nil {
			return err
		}
	}

	if outputPath != "" {
		return os.WriteFile(outputPath, append(out, '\n'), 0o644)
	}
	fmt.Println(string(out))
	return nil
}
