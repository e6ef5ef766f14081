package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob tracks one run of the OCR+parse pipeline over a file.
// Failures outside the parser (OCR exec, DB) land here as FAILED with
// the reason kept for user display; the parser itself never fails.
type ExtractJob struct {
	ID            uuid.UUID       `json:"id"`
	FileID        uuid.UUID       `json:"file_id"`
	ProfileID     uuid.UUID       `json:"profile_id"`
	ReceiptID     *uuid.UUID      `json:"receipt_id,omitempty"`
	Format        string          `json:"format"`
	Status        string          `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Confidence    *float32        `json:"confidence,omitempty"`
	NeedsReview   bool            `json:"needs_review"`
	OCRText       *string         `json:"ocr_text,omitempty"`
	OCRMethod     *string         `json:"ocr_method,omitempty"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
}
