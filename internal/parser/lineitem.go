package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// itemPattern anchors a candidate line to a trailing decimal amount:
// free-form name, whitespace, optional currency symbol, amount with
// exactly two decimals.
var itemPattern = regexp.MustCompile(`^(.+?)\s+[$€£]?(\d[\d,]*\.\d{2})\s*$`)

// itemMaxPrice rejects OCR artifacts like page numbers or phone digits
// glued to text; receipts do not carry five-figure line items.
const itemMaxPrice = 10000

// summaryKeywords excludes totals/tax/subtotal restated as if they were
// purchasable items. Substring match on the lowercased name, not whole
// word, so "Subtotal:" and "GRAND TOTAL" are both caught.
var summaryKeywords = []string{"total", "tax", "subtotal", "amount", "balance"}

// ExtractItems evaluates every line against the item pattern and
// returns all qualifying lines as items in document order. Unlike the
// single-valued extractors there is no first-match cutoff: receipts
// list many items.
func ExtractItems(lines []string) []LineItem {
	items := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			continue
		}
		if price <= 0 || price >= itemMaxPrice {
			continue
		}
		if isSummaryLine(name) {
			continue
		}
		p := price
		items = append(items, LineItem{Name: name, Price: &p})
	}
	return items
}

func isSummaryLine(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
