// Package extract defines the two-stage extraction contracts: stage 1
// turns a file into raw text, stage 2 turns raw text into structured
// receipt fields.
package extract

import (
	"context"
	"time"

	"invoice-tracker/internal/parser"
)

// TextExtractor is stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE | constants.TXT
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "plain-text" | "cache"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// FieldExtractor is stage 2: text -> structured fields. Implementations
// must be total over arbitrary text: missing fields stay absent, the
// call itself does not fail on unrecognizable input.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (FieldsResult, error)
}

type FieldsResult struct {
	Record     parser.Receipt
	JSON       []byte // canonical serialized form of Record
	Confidence float32
	Engine     string // extraction engine identifier, e.g. "rules/v1"
}
