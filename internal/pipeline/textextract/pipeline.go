package textextract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"invoice-tracker/constants"
	"invoice-tracker/internal/extract"
	"invoice-tracker/internal/repository"
)

type Pipeline struct {
	FilesRepo     repository.ReceiptFileRepository
	JobsRepo      repository.ExtractJobRepository
	TextExtractor extract.TextExtractor
	Log           *slog.Logger
}

func NewPipeline(files repository.ReceiptFileRepository, jobs repository.ExtractJobRepository, tx extract.TextExtractor, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{FilesRepo: files, JobsRepo: jobs, TextExtractor: tx, Log: log}
}

// Run starts an extract_job for the file, acquires its text, and
// persists the result. The parse stage is NOT called here.
func (p *Pipeline) Run(ctx context.Context, fileID uuid.UUID) (uuid.UUID, extract.TextExtractionResult, error) {
	row, err := p.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		return uuid.Nil, extract.TextExtractionResult{}, fmt.Errorf("get file: %w", err)
	}

	format := constants.MapExtToFormat(row.FileExt)
	if format == "" {
		return uuid.Nil, extract.TextExtractionResult{}, fmt.Errorf("unsupported format: %s", row.FileExt)
	}

	job, err := p.JobsRepo.Start(ctx, row.ID, row.ProfileID, format)
	if err != nil {
		return uuid.Nil, extract.TextExtractionResult{}, err
	}

	res, err := p.TextExtractor.Extract(ctx, row.SourcePath)
	if err != nil {
		_ = p.JobsRepo.FinishFailure(ctx, job.ID, err.Error())
		return job.ID, res, err
	}

	if err := p.JobsRepo.FinishOCRSuccess(ctx, job.ID, res.Text, res.Method, res.Confidence); err != nil {
		return job.ID, res, err
	}

	p.Log.Info("textextract.ok",
		"file_id", fileID, "job_id", job.ID,
		"method", res.Method, "pages", res.Pages, "confidence", res.Confidence,
	)
	return job.ID, res, nil
}
