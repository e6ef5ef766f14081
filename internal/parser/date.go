package parser

import "regexp"

// datePatterns is an ordered priority list of date shapes. The first
// pattern that matches on the first line where any pattern matches wins.
// The matched substring is kept verbatim: 03/04/2025 could be March 4 or
// April 3 depending on locale, and committing to one ordering here would
// silently corrupt the other. Detection, not disambiguation.
var datePatterns = []*regexp.Regexp{
	// day/month/year or day-month-year, 2 or 4 digit year
	regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/](?:\d{4}|\d{2})\b`),
	// year-first variant
	regexp.MustCompile(`\b(?:\d{4}|\d{2})[-/]\d{1,2}[-/]\d{1,2}\b`),
	// month name (3+ letter abbreviation or full), day, year. The
	// alternates are enumerated rather than prefix-matched so that
	// words like "Maybe" or "Marble" cannot pass as months.
	regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b\s+\d{1,2}(?:\s*,\s*|\s+)(?:\d{4}|\d{2})\b`),
}

// ExtractDate scans lines in order, trying the patterns in priority
// order on each line, and returns the first matched substring verbatim.
// Returns "" when no line matches any pattern. Callers that need a
// calendar date must re-parse the value themselves.
func ExtractDate(lines []string) string {
	for _, line := range lines {
		for _, re := range datePatterns {
			if m := re.FindString(line); m != "" {
				return m
			}
		}
	}
	return ""
}
