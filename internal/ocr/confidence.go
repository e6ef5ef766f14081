package ocr

import (
	"regexp"
	"strings"
)

var (
	reDateHint   = regexp.MustCompile(`\b\d{1,4}[-/]\d{1,2}[-/]\d{1,4}\b`)
	reCurrHint   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud)\b|[$£€]`)
	reAmountHint = regexp.MustCompile(`\b\d{1,3}(,\d{3})*\.\d{2}\b|\b\d+\.\d{2}\b`)
)

// heuristicConfidence scores decoded text by how receipt-like it looks.
// Each signal (date-ish, currency-ish, amount-ish, enough content) adds a
// fixed bump on top of a small base, capped at 1.0.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2)
	if reDateHint.MatchString(txtL) {
		score += 0.2
	}
	if reCurrHint.MatchString(txtL) {
		score += 0.15
	}
	if reAmountHint.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
