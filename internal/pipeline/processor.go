// Package processor coordinates the two extraction stages: text
// acquisition (OCR or embedded text) followed by rule-based field
// parsing, each recorded on the file's extract_job row.
package processor

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	parse "invoice-tracker/internal/pipeline/parsefields"
	"invoice-tracker/internal/pipeline/textextract"
)

type Processor struct {
	Logger *slog.Logger
	OCR    *textextract.Pipeline
	Parse  *parse.Pipeline
}

func NewProcessor(logger *slog.Logger, ocr *textextract.Pipeline, parse *parse.Pipeline) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, Parse: parse}
}

// ProcessFile runs text extraction for a fileID (creating/advancing the
// extract_job), then parses the resulting text and upserts the receipt.
// Returns the jobID started by the first stage.
func (p *Processor) ProcessFile(ctx context.Context, fileID uuid.UUID) (uuid.UUID, error) {
	jobID, ocrRes, err := p.OCR.Run(ctx, fileID)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "file_id", fileID, "err", err)
		return jobID, err
	}
	p.Logger.Info("processor.ocr.ok",
		"file_id", fileID,
		"job_id", jobID,
		"method", ocrRes.Method,
		"pages", ocrRes.Pages,
		"confidence", ocrRes.Confidence,
	)

	if _, err := p.Parse.Run(ctx, jobID); err != nil {
		p.Logger.Error("processor.parse.failed", "job_id", jobID, "err", err)
		return jobID, err
	}
	p.Logger.Info("processor.parse.ok", "job_id", jobID)
	return jobID, nil
}
