// Package parser turns raw OCR text from a receipt into a structured
// record. It is rule-based: ordered regexp tables per field, first match
// wins for single-valued fields, exhaustive matching for line items.
// Parse is a pure function and never fails; fields that cannot be read
// from the text are simply absent.
package parser

import "strings"

// LineItem is a single purchased item parsed from a receipt line.
// Price is a pointer only to tolerate emitters that produce name-only
// rows; the extractor in this package always sets it.
type LineItem struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

// Receipt is the best-effort structured view of one receipt.
// RawText always carries the original input verbatim so callers can fall
// back to displaying it. All other fields are independently optional.
type Receipt struct {
	Merchant string     `json:"merchant,omitempty"`
	Date     string     `json:"date,omitempty"`
	Total    *float64   `json:"total,omitempty"`
	Tax      *float64   `json:"tax,omitempty"`
	Subtotal *float64   `json:"subtotal,omitempty"`
	Items    []LineItem `json:"items"`
	RawText  string     `json:"raw_text"`
}

// SplitLines normalizes raw OCR output into trimmed, non-empty lines in
// document order. It never fails; an empty or blank input yields an
// empty slice.
func SplitLines(raw string) []string {
	parts := strings.Split(raw, "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines = append(lines, p)
	}
	return lines
}

// Parse runs every extractor over the same normalized lines and merges
// the results. It is total: any input, including the empty string,
// produces a valid Receipt. Missing data is represented by absent
// fields, never by an error.
func Parse(raw string) Receipt {
	lines := SplitLines(raw)
	return Receipt{
		Merchant: ExtractMerchant(lines),
		Date:     ExtractDate(lines),
		Total:    ExtractAmount(lines, FieldTotal),
		Tax:      ExtractAmount(lines, FieldTax),
		Subtotal: ExtractAmount(lines, FieldSubtotal),
		Items:    ExtractItems(lines),
		RawText:  raw,
	}
}
