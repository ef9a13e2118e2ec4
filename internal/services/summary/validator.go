package summary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"SignalForge/internal/domain/models"
)

const (
	MinChars = 30
	MaxChars = 300
	MinWords = 5
	MaxWords = 60
)

type rule struct {
	label string
	re    *regexp.Regexp
}

func terms(patterns ...string) []rule {
	out := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		label := strings.TrimSuffix(strings.TrimPrefix(p, `\b`), `\b`)
		out = append(out, rule{label: label, re: regexp.MustCompile(`(?i)` + p)})
	}
	return out
}

var (
	// Indicators the pipeline never computes.
	fabricatedTerms = terms("fibonacci", "elliott wave", "ichimoku", "bollinger", `\bmacd\b`, "stochastic", "golden cross", "death cross")

	disclaimerTerms = terms("disclaimer", `\bdyor\b`, "not financial advice", `\bnfa\b`, "do your own research", "financial advisor")

	sensationalTerms = terms("guaranteed", "mooning", "to the moon", "buy now", "sell now", `can'?t lose`, `\b100x\b`)

	emojiRe = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{FE0F}\x{200D}\x{20E3}]`)

	markdownRules = []rule{
		{"bold", regexp.MustCompile(`\*\*[^*]+\*\*|__[^_]+__`)},
		{"italic", regexp.MustCompile(`\*[^*\s][^*]*\*|(^|\s)_[^_\s][^_]*_`)},
		{"code", regexp.MustCompile("`")},
		{"header", regexp.MustCompile(`(?m)^\s*#{1,6}\s`)},
		{"bullet", regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+`)},
		{"link", regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)},
	}
)

// ValidateSummary checks length, word count, banned phrasing and formatting.
// Too short is an error and too long only a warning.
func ValidateSummary(s string) models.ValidationResult {
	var res models.ValidationResult
	text := strings.TrimSpace(s)

	switch n := utf8.RuneCountInString(text); {
	case n < MinChars:
		res.Errors = append(res.Errors, fmt.Sprintf("too short: %d chars, min %d", n, MinChars))
	case n > MaxChars:
		res.Warnings = append(res.Warnings, fmt.Sprintf("too long: %d chars, max %d", n, MaxChars))
	}
	switch n := len(strings.Fields(text)); {
	case n < MinWords:
		res.Errors = append(res.Errors, fmt.Sprintf("too few words: %d, min %d", n, MinWords))
	case n > MaxWords:
		res.Warnings = append(res.Warnings, fmt.Sprintf("too many words: %d, max %d", n, MaxWords))
	}

	for _, r := range fabricatedTerms {
		if r.re.MatchString(text) {
			res.Errors = append(res.Errors, "mentions uncomputed indicator: "+r.label)
		}
	}
	for _, r := range disclaimerTerms {
		if r.re.MatchString(text) {
			res.Errors = append(res.Errors, "contains disclaimer phrasing: "+r.label)
		}
	}
	if emojiRe.MatchString(text) {
		res.Errors = append(res.Errors, "contains emoji")
	}
	for _, r := range markdownRules {
		if r.re.MatchString(text) {
			res.Errors = append(res.Errors, "contains markdown: "+r.label)
		}
	}
	for _, r := range sensationalTerms {
		if r.re.MatchString(text) {
			res.Warnings = append(res.Warnings, "sensational language: "+r.label)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// MeetsMinimumQuality reports whether s has no hard validation errors.
func MeetsMinimumQuality(s string) bool {
	return ValidateSummary(s).Valid
}
