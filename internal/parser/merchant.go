package parser

import "unicode/utf8"

// Merchant names are conventionally the first clearly-alphabetic,
// moderately short line near the top of a receipt. The uppercase
// requirement filters symbol-only or lowercase noise lines that OCR
// sometimes emits first.

const (
	merchantMinLen = 3  // exclusive, in runes
	merchantMaxLen = 50 // exclusive, in runes
)

// ExtractMerchant returns the first line that looks like a merchant
// name, or "" when no line qualifies. First qualifying line wins; there
// is no scoring among candidates.
func ExtractMerchant(lines []string) string {
	for _, line := range lines {
		if n := utf8.RuneCountInString(line); n <= merchantMinLen || n >= merchantMaxLen {
			continue
		}
		if line[0] >= '0' && line[0] <= '9' {
			continue
		}
		if !hasUpper(line) {
			continue
		}
		return line
	}
	return ""
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
