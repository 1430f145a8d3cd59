package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls chunking behavior.
type Config struct {
	MaxRunes int // Upper bound on chunk size in runes.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxRunes: 20000}
}

// Chunk is a contiguous slice of the source text. Consecutive chunks abut and
// together cover the whole input.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type span struct {
	start, end int
}

// Split packs paragraphs into chunks of at most cfg.MaxRunes. A paragraph
// that is too large on its own is broken at line ends, then at sentence ends,
// and only as a last resort in the middle of a sentence. Chapter heading lines
// are therefore never cut in half.
func Split(text string, cfg Config) []Chunk {
	if cfg.MaxRunes <= 0 {
		cfg.MaxRunes = DefaultConfig().MaxRunes
	}

	var chunks []Chunk
	cur := span{}
	curRunes := 0
	flush := func() {
		if cur.end > cur.start {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  text[cur.start:cur.end],
				Start: cur.start,
				End:   cur.end,
			})
		}
		cur = span{cur.end, cur.end}
		curRunes = 0
	}

	for _, p := range fit(text, paragraphSpans(text), cfg.MaxRunes) {
		n := utf8.RuneCountInString(text[p.start:p.end])
		if curRunes+n > cfg.MaxRunes && curRunes > 0 {
			flush()
		}
		cur.end = p.end
		curRunes += n
	}
	flush()

	return chunks
}

// fit breaks spans that exceed max into progressively smaller pieces.
func fit(text string, spans []span, max int) []span {
	var out []span
	for _, s := range spans {
		if utf8.RuneCountInString(text[s.start:s.end]) <= max {
			out = append(out, s)
			continue
		}
		for _, l := range lineSpans(text, s) {
			if utf8.RuneCountInString(text[l.start:l.end]) <= max {
				out = append(out, l)
				continue
			}
			for _, st := range sentenceSpans(text, l) {
				if utf8.RuneCountInString(text[st.start:st.end]) <= max {
					out = append(out, st)
					continue
				}
				out = append(out, hardCut(text, st, max)...)
			}
		}
	}
	return out
}

// paragraphSpans splits text at the first non-blank line after a blank line.
// Trailing blank lines stay with the paragraph they follow.
func paragraphSpans(text string) []span {
	var out []span
	start, pos := 0, 0
	sawText, sawBlank := false, false
	for pos < len(text) {
		next := len(text)
		if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
			next = pos + i + 1
		}
		blank := strings.TrimSpace(text[pos:next]) == ""
		switch {
		case blank:
			sawBlank = sawText
		case sawBlank:
			out = append(out, span{start, pos})
			start = pos
			sawBlank = false
		default:
			sawText = true
		}
		pos = next
	}
	if start < len(text) {
		out = append(out, span{start, len(text)})
	}
	return out
}

func lineSpans(text string, s span) []span {
	var out []span
	pos := s.start
	for pos < s.end {
		next := s.end
		if i := strings.IndexByte(text[pos:s.end], '\n'); i >= 0 {
			next = pos + i + 1
		}
		out = append(out, span{pos, next})
		pos = next
	}
	return out
}

// sentenceSpans cuts after terminal punctuation that is followed by a space.
func sentenceSpans(text string, s span) []span {
	var out []span
	start := s.start
	for i := s.start; i < s.end; {
		r, size := utf8.DecodeRuneInString(text[i:s.end])
		i += size
		if (r == '.' || r == '!' || r == '?' || r == '。') && i < s.end && text[i] == ' ' {
			out = append(out, span{start, i})
			start = i
		}
	}
	if start < s.end {
		out = append(out, span{start, s.end})
	}
	return out
}

func hardCut(text string, s span, max int) []span {
	var out []span
	start, n := s.start, 0
	for i := range text[s.start:s.end] {
		if n == max {
			out = append(out, span{start, s.start + i})
			start, n = s.start+i, 0
		}
		n++
	}
	if start < s.end {
		out = append(out, span{start, s.end})
	}
	return out
}
