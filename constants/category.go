package constants

import "strings"

type Category string

const (
	Groceries            Category = "Groceries"
	Meals                Category = "Meals"
	OfficeSupplies       Category = "OfficeSupplies"
	OfficeEquipment      Category = "OfficeEquipment"
	SoftwareSubscription Category = "SoftwareSubscription"
	TravelExpenses       Category = "TravelExpenses"
	ShippingExpenses     Category = "ShippingExpenses"
	Utilities            Category = "Utilities"
	Other                Category = "Other"
)

var allCategories = []Category{
	Groceries,
	Meals,
	OfficeSupplies,
	OfficeEquipment,
	SoftwareSubscription,
	TravelExpenses,
	ShippingExpenses,
	Utilities,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

type categoryKeyword struct {
	substr   string
	category Category
}

// categoryKeywords maps lowercase substrings to a category, in match
// priority order. Receipts carry no category label, so this is keyed
// off merchant and item text.
var categoryKeywords = []categoryKeyword{
	{"supermark", Groceries},
	{"grocer", Groceries},
	{"market", Groceries},
	{"mart", Groceries},
	{"restaurant", Meals},
	{"coffee", Meals},
	{"cafe", Meals},
	{"pizza", Meals},
	{"diner", Meals},
	{"staples", OfficeSupplies},
	{"office", OfficeSupplies},
	{"depot", OfficeSupplies},
	{"subscript", SoftwareSubscription},
	{"software", SoftwareSubscription},
	{"saas", SoftwareSubscription},
	{"airline", TravelExpenses},
	{"airways", TravelExpenses},
	{"hotel", TravelExpenses},
	{"taxi", TravelExpenses},
	{"uber", TravelExpenses},
	{"lyft", TravelExpenses},
	{"parking", TravelExpenses},
	{"shipping", ShippingExpenses},
	{"postage", ShippingExpenses},
	{"courier", ShippingExpenses},
	{"electric", Utilities},
	{"internet", Utilities},
	{"telecom", Utilities},
	{"water", Utilities},
}

// Canonicalize maps free-form input to a known category. Returns Other
// and false when nothing matches.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}
	return Other, false
}

// GuessFromText picks a category by keyword over merchant and item
// names. A blunt heuristic, good enough for a default the user can
// correct; returns Other and false when no keyword hits.
func GuessFromText(texts ...string) (Category, bool) {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, kw := range categoryKeywords {
			if strings.Contains(lower, kw.substr) {
				return kw.category, true
			}
		}
	}
	return Other, false
}
