package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTitleRunes = 120

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ValidateTitle cleans a model-suggested chapter title. It returns the
// trimmed title and whether it may be used. Titles must be a single line of
// at most 120 runes and must not look like an instruction to a model, since
// they end up inside later prompts and file contents.
func ValidateTitle(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "\r\n") {
		return "", false
	}
	if utf8.RuneCountInString(s) > maxTitleRunes {
		return "", false
	}
	if injectionPattern.MatchString(s) {
		return "", false
	}
	return s, true
}
