package chunker

import (
	"strings"
	"unicode"
)

// EstimateTokens gives a rough token count for prompt budgeting. Latin text
// is counted by words; Hangul and CJK text costs roughly a token per
// character, so the larger of the two estimates wins.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)

	wide := 0
	for _, r := range text {
		if unicode.In(r, unicode.Hangul, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			wide++
		}
	}
	if wide > tokens {
		tokens = wide
	}
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
