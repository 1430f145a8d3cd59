// Package segment partitions a novel text into ordered chapter records.
//
// Boundaries are found by line-anchored patterns tried in a fixed priority
// order. Chapters always follow the order in which their markers appear in the
// text; the number embedded in a marker label is carried along but never used
// to reorder anything.
package segment

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrNoBoundaryPatternMatched means no pattern produced a single raw match.
	ErrNoBoundaryPatternMatched = errors.New("no boundary pattern matched")
	// ErrNoValidBoundaryFound means a pattern matched but every candidate failed line validation.
	ErrNoValidBoundaryFound = errors.New("no valid boundary found")
	// ErrUnknownPattern is returned when Options.PatternID names no known pattern.
	ErrUnknownPattern = errors.New("unknown boundary pattern")
)

// NoValidBoundaryError carries the candidates that were rejected so callers
// can show them for manual review.
type NoValidBoundaryError struct {
	PatternID string
	Rejected  []Candidate
}

func (e *NoValidBoundaryError) Error() string {
	return fmt.Sprintf("%s: pattern %q matched %d line(s), none valid", ErrNoValidBoundaryFound, e.PatternID, len(e.Rejected))
}

func (e *NoValidBoundaryError) Is(target error) bool {
	return target == ErrNoValidBoundaryFound
}

// Reason maps a segmentation error to a stable machine-readable code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoBoundaryPatternMatched):
		return "no_boundary_pattern_matched"
	case errors.Is(err, ErrNoValidBoundaryFound):
		return "no_valid_boundary_found"
	case errors.Is(err, ErrUnknownPattern):
		return "unknown_pattern"
	}
	return "error"
}

// PreludePolicy controls what happens to text before the first marker.
type PreludePolicy string

const (
	PreludeDrop PreludePolicy = "drop"
	PreludeKeep PreludePolicy = "keep"
)

// Options configures a Segment call. The zero value uses the default pattern
// table with first-match selection and drops the prelude.
type Options struct {
	Patterns  []BoundaryPattern
	PatternID string
	Selection SelectionMode
	Prelude   PreludePolicy

	// Body length thresholds in runes for short/long warnings. Zero disables.
	MinBodyRunes int
	MaxBodyRunes int
}

// Marker is an accepted chapter boundary.
type Marker struct {
	Position int    `json:"position"`
	Label    string `json:"label"`
	Number   *int   `json:"number"`
	Line     string `json:"line"`
}

// Chapter is one output unit. [Start, End) is its raw span in the source text.
type Chapter struct {
	Index    int       `json:"index"`
	Label    string    `json:"label"`
	Number   *int      `json:"original_number"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Start    int       `json:"start"`
	End      int       `json:"end"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Content renders the chapter as it is written to a chapter file.
func (c Chapter) Content() string {
	return c.Title + "\n\n" + c.Body
}

// Prelude is the text preceding the first marker.
type Prelude struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Result is a successful segmentation.
type Result struct {
	PatternID string      `json:"pattern_id"`
	Chapters  []Chapter   `json:"chapters"`
	Prelude   *Prelude    `json:"prelude,omitempty"`
	Rejected  []Candidate `json:"rejected,omitempty"`
	Warnings  []Warning   `json:"warnings,omitempty"`
}

// Segment splits text into chapters. Recoverable conditions come back as
// ErrNoBoundaryPatternMatched or a *NoValidBoundaryError; warnings are data on
// the result.
func Segment(text string, opts Options) (*Result, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	var ev evaluation
	if opts.PatternID != "" {
		p, ok := LookupPattern(patterns, opts.PatternID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, opts.PatternID)
		}
		ev = evaluate(p, text)
		if len(ev.candidates) == 0 {
			return nil, ErrNoBoundaryPatternMatched
		}
	} else {
		var err error
		ev, err = selectPattern(patterns, text, opts.Selection)
		if err != nil {
			return nil, err
		}
	}

	if len(ev.markers) == 0 {
		return nil, &NoValidBoundaryError{PatternID: ev.pattern.ID, Rejected: ev.rejected}
	}

	r := &Result{
		PatternID: ev.pattern.ID,
		Rejected:  ev.rejected,
	}
	if opts.Prelude == PreludeKeep {
		first := ev.markers[0].Position
		if t := strings.TrimSpace(text[:first]); t != "" {
			r.Prelude = &Prelude{Text: t, Start: 0, End: first}
		}
	}
	r.Chapters = slice(text, ev.markers)
	for i := range r.Chapters {
		r.checkBody(i, opts)
	}
	return r, nil
}

// DiscoverMarkers validates candidates in scan order.
func DiscoverMarkers(candidates []Candidate) (markers []Marker, rejected []Candidate) {
	last := -1
	for _, c := range candidates {
		if c.LineStart <= last {
			continue
		}
		if !validLine(c) {
			rejected = append(rejected, c)
			continue
		}
		markers = append(markers, Marker{
			Position: c.LineStart,
			Label:    strings.TrimSpace(c.Label),
			Number:   ParseNumber(c.Label),
			Line:     strings.TrimSpace(c.Line),
		})
		last = c.LineStart
	}
	return markers, rejected
}

// ParseNumber returns the integer of the first decimal digit run in label,
// or nil. Digits of any script count, so "１２화" is 12.
func ParseNumber(label string) *int {
	start := strings.IndexFunc(label, isDecimal)
	if start < 0 {
		return nil
	}
	n := 0
	for _, r := range label[start:] {
		if !isDecimal(r) {
			break
		}
		if n > (math.MaxInt-9)/10 {
			return nil
		}
		n = n*10 + digitValue(r)
	}
	return &n
}

func isDecimal(r rune) bool { return unicode.Is(unicode.Nd, r) }

// digitValue maps a decimal digit to 0-9. Unicode lays out each script's
// digits as runs of ten starting at zero, and adjacent runs all start at a
// zero too, so the offset into the run gives the value.
func digitValue(r rune) int {
	k := 0
	for isDecimal(r - rune(k) - 1) {
		k++
	}
	return k % 10
}

func slice(text string, markers []Marker) []Chapter {
	chapters := make([]Chapter, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].Position
		}
		span := text[m.Position:end]
		titleLine, rest := span, ""
		if nl := strings.IndexByte(span, '\n'); nl >= 0 {
			titleLine, rest = span[:nl], span[nl+1:]
		}
		chapters = append(chapters, Chapter{
			Index:  i + 1,
			Label:  m.Label,
			Number: m.Number,
			Title:  strings.TrimSpace(titleLine),
			Body:   strings.TrimSpace(rest),
			Start:  m.Position,
			End:    end,
		})
	}
	return chapters
}

func (r *Result) checkBody(i int, opts Options) {
	ch := &r.Chapters[i]
	if ch.Body == "" {
		r.warn(i, WarnEmptyBody, fmt.Sprintf("%s has an empty body", ch.Title))
		return
	}
	n := utf8.RuneCountInString(ch.Body)
	if opts.MinBodyRunes > 0 && n < opts.MinBodyRunes {
		r.warn(i, WarnShortBody, fmt.Sprintf("%s is short (%d chars)", ch.Title, n))
	}
	if opts.MaxBodyRunes > 0 && n > opts.MaxBodyRunes {
		r.warn(i, WarnLongBody, fmt.Sprintf("%s is long (%d chars)", ch.Title, n))
	}
}

func (r *Result) warn(i int, code WarningCode, msg string) {
	w := Warning{Code: code, ChapterIndex: r.Chapters[i].Index, Message: msg}
	r.Chapters[i].Warnings = append(r.Chapters[i].Warnings, w)
	r.Warnings = append(r.Warnings, w)
}
