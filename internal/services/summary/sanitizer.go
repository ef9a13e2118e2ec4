package summary

import (
	"regexp"
	"strings"
)

var (
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	lineMarkerRe = regexp.MustCompile(`(?m)^(\s*(#{1,6}|[-*+]|\d+\.)\s+)+`)
	underscoreRe = regexp.MustCompile(`(^|[\s(])_+|_+($|[\s).,!?;:])`)
)

// SanitizeSummary strips emoji and markdown markers and collapses whitespace.
// It runs to a fixed point, so it is idempotent. Every pass only removes
// characters or canonicalises whitespace, so the loop terminates.
func SanitizeSummary(s string) string {
	for {
		next := sanitizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func sanitizeOnce(s string) string {
	s = emojiRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	s = lineMarkerRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("*", "", "`", "", "__", "").Replace(s)
	s = underscoreRe.ReplaceAllString(s, "$1$2")
	return strings.Join(strings.Fields(s), " ")
}
