package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/novelsplit/internal/segment"
)

// Body length bands used to hint the verifier about likely split errors.
const (
	typicalMinRunes = 5000
	typicalMaxRunes = 10000
	longBodyRunes   = 15000
	shortBodyRunes  = 3000
)

const verifyInstructions = `Check whether the text below is exactly one correctly split chapter of a web novel.

Judge by these criteria:
1. Is it one complete chapter?
2. Does it contain several chapters merged together?
3. Is it cut off in the middle of a chapter?
4. Is the length reasonable? (%d-%d characters is typical)

Answer "yes" or "no", then suggest a better title for the chapter.
Reply on a single line in the form: yes|suggested title`

const proposalInstructions = `The text below is part of a web novel. Find every line that starts a new chapter (for example "1화", "2화", "1.", "2.", or a standalone title surrounded by blank lines) and give each chapter a short descriptive title.

Rules:
- "label" must be the chapter heading line exactly as it appears in the text
- "number" is the chapter number written in the heading, or null if there is none
- "title" is the title to use for that chapter, in the language of the novel
- Do not return chapter content
- Return {"episodes": []} if the text contains no chapter headings

Respond with ONLY this JSON, no other text:
{"episodes": [{"label": "...", "number": 1, "title": "..."}]}`

// BuildVerifyPrompt creates the hybrid verification prompt for one chapter.
// Long chapters get a longer excerpt since they are the likeliest to hide a
// missed boundary.
func BuildVerifyPrompt(ch segment.Chapter) string {
	n := utf8.RuneCountInString(ch.Body)

	var note string
	switch {
	case n > longBodyRunes:
		note = " (warning: very long, several chapters were probably merged)"
	case n > typicalMaxRunes:
		note = " (long, check for a missed split)"
	case n < shortBodyRunes:
		note = " (short, possibly a split error)"
	}

	preview := 1000
	if n > longBodyRunes {
		preview = 2000
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(verifyInstructions, typicalMinRunes, typicalMaxRunes))
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("Length: %d characters%s\n", n, note))
	sb.WriteString("---\n")
	sb.WriteString(ch.Title)
	sb.WriteString("\n\n")
	sb.WriteString(headRunes(ch.Body, preview))
	if n > preview {
		sb.WriteString("...")
	}
	return sb.String()
}

// BuildProposalPrompt creates the title proposal prompt for one chunk.
func BuildProposalPrompt(docTitle, chunkText string) string {
	var sb strings.Builder
	sb.WriteString(proposalInstructions)
	sb.WriteString("\n\n---\n")
	if docTitle != "" {
		sb.WriteString(fmt.Sprintf("Novel: %q\n", docTitle))
		sb.WriteString("---\n")
	}
	sb.WriteString(chunkText)
	return sb.String()
}

func headRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
