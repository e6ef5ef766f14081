package parsefields

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"invoice-tracker/constants"
	"invoice-tracker/internal/extract"
	"invoice-tracker/internal/parser"
	"invoice-tracker/internal/repository"
)

// Config holds thresholds and behavior flags for the parse stage.
type Config struct {
	MinConfidence float32 // default 0.60
}

type Pipeline struct {
	Logger       *slog.Logger
	Cfg          Config
	JobsRepo     repository.ExtractJobRepository
	FilesRepo    repository.ReceiptFileRepository
	ProfilesRepo repository.ProfileRepository
	ReceiptsRepo repository.ReceiptRepository
	Extractor    extract.FieldExtractor

	schema map[string]any
}

func NewPipeline(
	logger *slog.Logger,
	cfg Config,
	jobs repository.ExtractJobRepository,
	files repository.ReceiptFileRepository,
	profiles repository.ProfileRepository,
	recs repository.ReceiptRepository,
	fe extract.FieldExtractor,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.60
	}
	return &Pipeline{
		Logger:       logger,
		Cfg:          cfg,
		JobsRepo:     jobs,
		FilesRepo:    files,
		ProfilesRepo: profiles,
		ReceiptsRepo: recs,
		Extractor:    fe,
		schema:       parser.BuildReceiptJSONSchema(),
	}
}

// Run executes the parse stage for an existing job.
// Preconditions: job is OCR_OK with non-empty ocr_text and a valid file link.
// Effects: writes extracted_json and needs_review on the job, upserts
// the receipts row with its items, and links file -> receipt.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	job, file, err := p.JobsRepo.GetWithFile(ctx, jobID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load job: %w", err)
	}
	if job.Status != string(constants.JobStatusOCROK) || job.OCRText == nil {
		return job.ID, fmt.Errorf("job not ready for parse: status=%s ocr_text_empty=%t", job.Status, job.OCRText == nil)
	}

	prof, err := p.ProfilesRepo.GetByID(ctx, file.ProfileID)
	if err != nil {
		return job.ID, fmt.Errorf("load profile: %w", err)
	}

	p.Logger.Info("parsefields.start",
		"job_id", job.ID, "file_id", file.ID, "ocr_bytes", len(*job.OCRText),
	)

	fields, err := p.Extractor.ExtractFields(ctx, *job.OCRText)
	if err != nil {
		_ = p.JobsRepo.FinishFailure(ctx, job.ID, err.Error())
		return job.ID, fmt.Errorf("extract fields: %w", err)
	}

	needsReview := false
	if err := parser.ValidateJSON(p.schema, fields.JSON); err != nil {
		p.Logger.Warn("extracted record failed schema validation", "job_id", job.ID, "error", err)
		needsReview = true
	}

	rec := fields.Record
	if rec.Merchant == "" || rec.Date == "" || rec.Total == nil {
		needsReview = true
	}
	if fields.Confidence > 0 && fields.Confidence < p.Cfg.MinConfidence {
		needsReview = true
	}
	if job.Confidence != nil && *job.Confidence > 0 && *job.Confidence < p.Cfg.MinConfidence {
		needsReview = true
	}

	// Category comes from keyword heuristics over the recovered text.
	category := string(constants.Other)
	if c, ok := constants.GuessFromText(merchantAndItems(rec)...); ok {
		category = string(c)
	}

	stored, err := p.ReceiptsRepo.UpsertFromRecord(ctx, &repository.UpsertReceiptRequest{
		File:         file,
		Record:       rec,
		CurrencyCode: prof.DefaultCurrency,
		CategoryName: category,
	})
	if err != nil {
		_ = p.JobsRepo.FinishFailure(ctx, job.ID, err.Error())
		return job.ID, fmt.Errorf("upsert receipt: %w", err)
	}

	// idempotent file -> receipt link
	if err := p.FilesRepo.SetReceiptID(ctx, file.ID, stored.ID); err != nil {
		_ = p.JobsRepo.FinishFailure(ctx, job.ID, fmt.Sprintf("link file->receipt: %v", err))
		return job.ID, err
	}

	if err := p.JobsRepo.FinishParseSuccess(ctx, job.ID, stored.ID, fields.JSON, needsReview); err != nil {
		return job.ID, err
	}

	p.Logger.Info("parsefields.ok",
		"job_id", job.ID, "receipt_id", stored.ID,
		"merchant", rec.Merchant, "date", rec.Date,
		"category", category, "needs_review", needsReview,
		"confidence", fields.Confidence,
	)
	return job.ID, nil
}

func merchantAndItems(rec parser.Receipt) []string {
	texts := make([]string, 0, len(rec.Items)+1)
	if rec.Merchant != "" {
		texts = append(texts, rec.Merchant)
	}
	for _, it := range rec.Items {
		texts = append(texts, it.Name)
	}
	return texts
}
