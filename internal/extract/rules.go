package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"invoice-tracker/internal/parser"
)

const rulesEngineName = "rules/v1"

// ExtraLabels carries deployment-configured amount labels that are
// tried only when the built-in tables find nothing.
type ExtraLabels struct {
	Total    []string
	Tax      []string
	Subtotal []string
}

// RulesExtractor implements FieldExtractor on top of the deterministic
// parser. It is total: any text yields a result, with unfound fields
// left absent.
type RulesExtractor struct {
	extraTotal    []*regexp.Regexp
	extraTax      []*regexp.Regexp
	extraSubtotal []*regexp.Regexp
	logger        *slog.Logger
}

func NewRulesExtractor(extra ExtraLabels, l *slog.Logger) *RulesExtractor {
	if l == nil {
		l = slog.Default()
	}
	return &RulesExtractor{
		extraTotal:    parser.CompileAmountLabels(extra.Total),
		extraTax:      parser.CompileAmountLabels(extra.Tax),
		extraSubtotal: parser.CompileAmountLabels(extra.Subtotal),
		logger:        l,
	}
}

func (r *RulesExtractor) ExtractFields(_ context.Context, text string) (FieldsResult, error) {
	rec := parser.Parse(text)

	lines := parser.SplitLines(text)
	if rec.Total == nil && len(r.extraTotal) > 0 {
		rec.Total = parser.ExtractAmountWith(lines, r.extraTotal)
	}
	if rec.Tax == nil && len(r.extraTax) > 0 {
		rec.Tax = parser.ExtractAmountWith(lines, r.extraTax)
	}
	if rec.Subtotal == nil && len(r.extraSubtotal) > 0 {
		rec.Subtotal = parser.ExtractAmountWith(lines, r.extraSubtotal)
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return FieldsResult{}, fmt.Errorf("marshal record: %w", err)
	}
	return FieldsResult{
		Record:     rec,
		JSON:       b,
		Confidence: fieldConfidence(rec),
		Engine:     rulesEngineName,
	}, nil
}

// fieldConfidence scores a record by which fields were recovered. The
// total carries the most weight since downstream reporting keys on it.
func fieldConfidence(rec parser.Receipt) float32 {
	var score float32
	if rec.Merchant != "" {
		score += 0.2
	}
	if rec.Date != "" {
		score += 0.2
	}
	if rec.Total != nil {
		score += 0.35
	}
	if rec.Tax != nil || rec.Subtotal != nil {
		score += 0.1
	}
	if len(rec.Items) > 0 {
		score += 0.15
	}
	return score
}
