package document

import (
	"regexp"
	"strings"
)

var (
	spacePattern   = regexp.MustCompile(`[^\S\n]+`)
	newlinePattern = regexp.MustCompile(`\n+`)
)

// NormalizeText collapses consecutive whitespace to single spaces and
// consecutive newlines to single newlines, then trims the result.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spacePattern.ReplaceAllString(text, " ")
	text = newlinePattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
