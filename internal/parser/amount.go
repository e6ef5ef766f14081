package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// AmountField selects which labeled amount to look for.
type AmountField string

const (
	FieldTotal    AmountField = "total"
	FieldTax      AmountField = "tax"
	FieldSubtotal AmountField = "subtotal"
)

// amountGroup is the numeric tail shared by every label pattern:
// optional colon, optional currency symbol, digits with thousands
// separators and up to two decimals.
const amountGroup = `\s*:?\s*[$€£]?\s*(\d[\d,]*(?:\.\d{1,2})?)`

// amountPatterns holds one ordered label list per field. Word
// boundaries keep "total" from firing inside "Subtotal". The three
// fields are scanned independently; no cross-field arithmetic is ever
// checked, since OCR noise makes subtotal+tax==total validation reject
// good receipts more often than it catches bad ones.
var amountPatterns = map[AmountField][]*regexp.Regexp{
	FieldTotal: {
		regexp.MustCompile(`(?i)\btotal\b` + amountGroup),
		regexp.MustCompile(`(?i)\bamount\b` + amountGroup),
		regexp.MustCompile(`(?i)\bbalance\b` + amountGroup),
	},
	FieldTax: {
		regexp.MustCompile(`(?i)\btax\b` + amountGroup),
		regexp.MustCompile(`(?i)\bgst\b` + amountGroup),
		regexp.MustCompile(`(?i)\bvat\b` + amountGroup),
	},
	FieldSubtotal: {
		regexp.MustCompile(`(?i)\bsub[\s-]?total\b` + amountGroup),
		regexp.MustCompile(`(?i)\bsubtotal\b` + amountGroup),
	},
}

// ExtractAmount scans lines in order for the given field's labels in
// priority order and returns the first value that parses as a number.
// A label match whose digits fail to parse is treated as a non-match
// and the scan continues, so one garbled line cannot poison the field.
// Returns nil when no line yields a valid number.
func ExtractAmount(lines []string, field AmountField) *float64 {
	return ExtractAmountWith(lines, amountPatterns[field])
}

// ExtractAmountWith runs the amount scan against caller-supplied label
// patterns, for deployments that configure extra labels on top of the
// built-in tables.
func ExtractAmountWith(lines []string, patterns []*regexp.Regexp) *float64 {
	for _, line := range lines {
		for _, re := range patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			return &v
		}
	}
	return nil
}

// CompileAmountLabels builds label patterns sharing the built-in
// numeric tail. Labels are treated as literal words, matched
// case-insensitively on a word boundary.
func CompileAmountLabels(labels []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(l)+`\b`+amountGroup))
	}
	return out
}
