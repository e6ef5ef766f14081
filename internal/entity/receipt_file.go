package entity

import (
	"time"

	"github.com/google/uuid"
)

// ReceiptFile is one ingested source document on disk.
type ReceiptFile struct {
	ID          uuid.UUID  `json:"id"`
	ProfileID   uuid.UUID  `json:"profile_id"`
	ReceiptID   *uuid.UUID `json:"receipt_id,omitempty"`
	SourcePath  string     `json:"source_path"`
	Filename    string     `json:"filename"`
	FileExt     string     `json:"file_ext"`
	FileSize    int64      `json:"file_size"`
	ContentHash string     `json:"content_hash"` // sha256 hex
	UploadedAt  time.Time  `json:"uploaded_at"`
}
