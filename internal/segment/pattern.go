package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Candidate is a raw boundary match before line validation.
type Candidate struct {
	LineStart  int    `json:"line_start"`
	LabelStart int    `json:"label_start"`
	LabelEnd   int    `json:"label_end"`
	Label      string `json:"label"`
	Line       string `json:"line"`
}

// Recognizer finds boundary candidates in a whole text. Candidates must be
// returned in increasing position order.
type Recognizer interface {
	Find(text string) []Candidate
}

// BoundaryPattern is a named rule recognizing a chapter marker at the start of a line.
type BoundaryPattern struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Recognizer  Recognizer `json:"-"`

	// Fallback patterns accept every line they match, so a pass rate says
	// nothing about them. Scored selection only uses one when no other
	// pattern produced a marker.
	Fallback bool `json:"fallback,omitempty"`
}

// lineIndent is the horizontal whitespace allowed before a marker, including
// the ideographic space used for indentation in Korean text.
const lineIndent = `[\t \x{3000}]*`

var (
	koreanEpisode         = lineStart(`\p{Nd}+화`, false)
	koreanPrefixedEpisode = lineStart(`제[\t ]*\p{Nd}+[\t ]*화`, false)
	englishEpisode        = lineStart(`episode[\t ]*\p{Nd}+`, true)
	koreanPart            = lineStart(`\p{Nd}+장`, false)
	englishChapter        = lineStart(`chapter[\t ]*\p{Nd}+`, true)
	dottedNumber          = lineStart(`\p{Nd}+\.`, false)
)

// DefaultPatterns returns the automatic detection table in priority order.
func DefaultPatterns() []BoundaryPattern {
	return []BoundaryPattern{
		{ID: "korean_episode", Description: "1화, 2화 ...", Recognizer: koreanEpisode},
		{ID: "korean_prefixed_episode", Description: "제1화, 제 2 화 ...", Recognizer: koreanPrefixedEpisode},
		{ID: "english_episode", Description: "Episode 1, Episode 2 ...", Recognizer: englishEpisode},
		{ID: "korean_part", Description: "1장, 2장 ...", Recognizer: koreanPart},
		{ID: "english_chapter", Description: "Chapter 1, Chapter 2 ...", Recognizer: englishChapter},
		{ID: "blank_line_title", Description: "short standalone line between blank lines", Recognizer: BlankLineRecognizer{MinRunes: 2, MaxRunes: 50}, Fallback: true},
	}
}

// ExtraPatterns are never tried automatically; they can only be requested by ID.
func ExtraPatterns() []BoundaryPattern {
	return []BoundaryPattern{
		{ID: "dotted_number", Description: "1. 2. ... numbered headings", Recognizer: dottedNumber},
	}
}

// LookupPattern finds a pattern by ID in the given table, then in the extra patterns.
func LookupPattern(patterns []BoundaryPattern, id string) (BoundaryPattern, bool) {
	for _, p := range patterns {
		if p.ID == id {
			return p, true
		}
	}
	for _, p := range ExtraPatterns() {
		if p.ID == id {
			return p, true
		}
	}
	return BoundaryPattern{}, false
}

// RegexRecognizer matches a line-anchored regular expression. The first
// capture group is the marker label.
type RegexRecognizer struct {
	re *regexp.Regexp
}

// NewRegexRecognizer compiles expr in multi-line mode. expr must contain one
// capture group for the label.
func NewRegexRecognizer(expr string) (*RegexRecognizer, error) {
	re, err := regexp.Compile("(?m)" + expr)
	if err != nil {
		return nil, err
	}
	return &RegexRecognizer{re: re}, nil
}

func lineStart(label string, foldCase bool) *RegexRecognizer {
	expr := "^" + lineIndent + "(" + label + ")"
	if foldCase {
		expr = "(?i)" + expr
	}
	r, err := NewRegexRecognizer(expr)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RegexRecognizer) Find(text string) []Candidate {
	var out []Candidate
	for _, idx := range r.re.FindAllStringSubmatchIndex(text, -1) {
		if len(idx) < 4 || idx[2] < 0 {
			continue
		}
		start, end := idx[2], idx[3]
		lineStart := strings.LastIndexByte(text[:start], '\n') + 1
		out = append(out, Candidate{
			LineStart:  lineStart,
			LabelStart: start,
			LabelEnd:   end,
			Label:      text[start:end],
			Line:       lineAt(text, lineStart),
		})
	}
	return out
}

// BlankLineRecognizer treats a short line surrounded by blank lines as a
// chapter title. It is the loosest rule and sits last in the default table.
type BlankLineRecognizer struct {
	MinRunes int
	MaxRunes int
}

func (r BlankLineRecognizer) Find(text string) []Candidate {
	var out []Candidate
	prevBlank := true
	for pos := 0; pos < len(text); {
		end := strings.IndexByte(text[pos:], '\n')
		if end < 0 {
			// The last line has no blank line after it.
			break
		}
		end += pos
		line := strings.TrimRight(text[pos:end], "\r")
		trimmed := strings.TrimSpace(line)
		blank := trimmed == ""

		if !blank && prevBlank && r.isTitle(trimmed) && nextLineBlank(text, end+1) {
			labelStart := pos + strings.Index(line, trimmed)
			out = append(out, Candidate{
				LineStart:  pos,
				LabelStart: labelStart,
				LabelEnd:   labelStart + len(trimmed),
				Label:      trimmed,
				Line:       line,
			})
		}
		prevBlank = blank
		pos = end + 1
	}
	return out
}

func (r BlankLineRecognizer) isTitle(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < r.MinRunes || (r.MaxRunes > 0 && n > r.MaxRunes) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	switch last {
	case '.', '!', '?', '。', '…', '"', '\'', '”', '’', ',':
		return false
	}
	return true
}

// nextLineBlank reports whether the line starting at pos is blank and is
// followed by more text.
func nextLineBlank(text string, pos int) bool {
	if pos >= len(text) {
		return false
	}
	end := strings.IndexByte(text[pos:], '\n')
	if end < 0 {
		return false
	}
	if strings.TrimSpace(text[pos:pos+end]) != "" {
		return false
	}
	return strings.TrimSpace(text[pos+end:]) != ""
}

func lineAt(text string, lineStart int) string {
	end := strings.IndexByte(text[lineStart:], '\n')
	if end < 0 {
		return strings.TrimRight(text[lineStart:], "\r")
	}
	return strings.TrimRight(text[lineStart:lineStart+end], "\r")
}

// validLine accepts a candidate only when the marker is the whole line or
// opens it followed by a separator. This rejects "1화면" style collisions.
func validLine(c Candidate) bool {
	line := strings.TrimSpace(c.Line)
	label := strings.TrimSpace(c.Label)
	if label == "" {
		return false
	}
	if line == label {
		return true
	}
	if !strings.HasPrefix(line, label) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(line[len(label):])
	return unicode.IsSpace(next) || unicode.IsPunct(next) || unicode.IsSymbol(next)
}
