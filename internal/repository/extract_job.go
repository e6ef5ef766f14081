package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"invoice-tracker/constants"
	"invoice-tracker/internal/common"
	"invoice-tracker/internal/entity"
)

type ExtractJobRepository interface {
	Start(ctx context.Context, fileID, profileID uuid.UUID, format string) (*entity.ExtractJob, error)
	GetWithFile(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, *entity.ReceiptFile, error)
	FinishOCRSuccess(ctx context.Context, jobID uuid.UUID, ocrText, method string, confidence float32) error
	FinishParseSuccess(ctx context.Context, jobID, receiptID uuid.UUID, extracted json.RawMessage, needsReview bool) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
}

type extractJobRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewExtractJobRepository(db *DB, logger *slog.Logger) ExtractJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractJobRepository{db: db, logger: logger}
}

func (r *extractJobRepository) Start(ctx context.Context, fileID, profileID uuid.UUID, format string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		FileID:    fileID,
		ProfileID: profileID,
		Format:    format,
		Status:    string(constants.JobStatusRunning),
		StartedAt: time.Now().UTC(),
	}
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO extract_jobs (id, file_id, profile_id, format, status, started_at, needs_review)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		job.ID, job.FileID, job.ProfileID, job.Format, job.Status, job.StartedAt)
	if err != nil {
		r.logger.Error("extract_job start failed", "file_id", fileID, "error", err)
		return nil, common.WrapError(err, "start extract job")
	}
	r.logger.Info("extract_job started", "job_id", job.ID, "file_id", fileID, "format", format)
	return job, nil
}

func (r *extractJobRepository) GetWithFile(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, *entity.ReceiptFile, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, file_id, profile_id, receipt_id, format, status, started_at, finished_at,
		        error_message, confidence, needs_review, ocr_text, ocr_method, extracted_json
		 FROM extract_jobs WHERE id = $1`, jobID)

	var (
		job        entity.ExtractJob
		receiptID  sql.NullString
		finishedAt sql.NullTime
		errMsg     sql.NullString
		conf       sql.NullFloat64
		ocrText    sql.NullString
		ocrMethod  sql.NullString
		extracted  sql.NullString
	)
	err := row.Scan(&job.ID, &job.FileID, &job.ProfileID, &receiptID, &job.Format, &job.Status,
		&job.StartedAt, &finishedAt, &errMsg, &conf, &job.NeedsReview, &ocrText, &ocrMethod, &extracted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, common.ErrNotFound
	}
	if err != nil {
		return nil, nil, common.WrapError(err, "scan extract job")
	}
	if receiptID.Valid {
		if id, perr := uuid.Parse(receiptID.String); perr == nil {
			job.ReceiptID = &id
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if errMsg.Valid {
		s := errMsg.String
		job.ErrorMessage = &s
	}
	if conf.Valid {
		c := float32(conf.Float64)
		job.Confidence = &c
	}
	if ocrText.Valid {
		s := ocrText.String
		job.OCRText = &s
	}
	if ocrMethod.Valid {
		s := ocrMethod.String
		job.OCRMethod = &s
	}
	if extracted.Valid {
		job.ExtractedJSON = json.RawMessage(extracted.String)
	}

	fileRow := r.db.SQL.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM receipt_files WHERE id = $1`, job.FileID)
	file, err := scanFile(fileRow)
	if err != nil {
		return nil, nil, err
	}
	return &job, file, nil
}

func (r *extractJobRepository) FinishOCRSuccess(ctx context.Context, jobID uuid.UUID, ocrText, method string, confidence float32) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE extract_jobs SET ocr_text = $1, ocr_method = $2, confidence = $3, status = $4 WHERE id = $5`,
		ocrText, method, confidence, string(constants.JobStatusOCROK), jobID)
	if err != nil {
		r.logger.Error("extract_job finish(OCR_OK) failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "finish ocr")
	}
	r.logger.Info("extract_job finished (OCR_OK)", "job_id", jobID, "method", method, "confidence", confidence)
	return nil
}

func (r *extractJobRepository) FinishParseSuccess(ctx context.Context, jobID, receiptID uuid.UUID, extracted json.RawMessage, needsReview bool) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE extract_jobs SET receipt_id = $1, extracted_json = $2, needs_review = $3, finished_at = $4, status = $5 WHERE id = $6`,
		receiptID, string(extracted), needsReview, time.Now().UTC(), string(constants.JobStatusParseOK), jobID)
	if err != nil {
		r.logger.Error("extract_job finish(PARSE_OK) failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "finish parse")
	}
	r.logger.Info("extract_job finished (PARSE_OK)", "job_id", jobID, "receipt_id", receiptID, "needs_review", needsReview)
	return nil
}

func (r *extractJobRepository) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE extract_jobs SET finished_at = $1, status = $2, error_message = $3 WHERE id = $4`,
		time.Now().UTC(), string(constants.JobStatusFailed), message, jobID)
	if err != nil {
		r.logger.Error("extract_job finish(FAILED) failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "finish failure")
	}
	r.logger.Warn("extract_job finished (FAILED)", "job_id", jobID, "reason", message)
	return nil
}
