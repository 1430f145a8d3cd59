package segment

import "strings"

// TitleProposal is a chapter title suggested by an external collaborator
// (typically a language model) for a marker it believes it saw.
type TitleProposal struct {
	Label  string `json:"label"`
	Number *int   `json:"number,omitempty"`
	Title  string `json:"title"`
}

// Verdict is the outcome of checking a single chapter with an external collaborator.
type Verdict struct {
	Index    int
	Accepted bool
	Title    string
}

// maxProposalSkip is how many chapters a proposal may pass over and still
// move the match cursor. Proposals lost in a chunk skip a few; a number quoted
// in dialogue usually jumps much further.
const maxProposalSkip = 3

// MergeTitles applies proposals to a copy of chapters. Positions, bodies and
// order never change; only titles do. Each proposal is matched to the first
// chapter at or after the cursor with the same number (or, when the proposal
// has no number, the same label). A match more than maxProposalSkip chapters
// ahead still sets the title but leaves the cursor alone, so the chapters in
// between stay reachable and a later in-order proposal overrides it. It
// returns the merged chapters and the number of proposals that matched
// nothing.
func MergeTitles(chapters []Chapter, proposals []TitleProposal) ([]Chapter, int) {
	out := append([]Chapter(nil), chapters...)
	unmatched := 0
	cursor := 0

	for _, p := range proposals {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			unmatched++
			continue
		}
		num := p.Number
		if num == nil {
			num = ParseNumber(p.Label)
		}
		j := findProposalTarget(out, cursor, num, strings.TrimSpace(p.Label))
		if j < 0 {
			unmatched++
			continue
		}
		out[j].Title = title
		if j-cursor <= maxProposalSkip {
			cursor = j + 1
		}
	}
	return out, unmatched
}

func findProposalTarget(chapters []Chapter, from int, num *int, label string) int {
	for j := from; j < len(chapters); j++ {
		ch := chapters[j]
		if num != nil {
			if ch.Number != nil && *ch.Number == *num {
				return j
			}
			continue
		}
		if label != "" && ch.Label == label {
			return j
		}
	}
	return -1
}

// ApplyVerdicts applies per-chapter verification results to a copy of
// chapters. Accepted verdicts may rename a chapter; rejected ones only add a
// warning, the chapter is kept.
func ApplyVerdicts(chapters []Chapter, verdicts []Verdict) ([]Chapter, []Warning) {
	out := append([]Chapter(nil), chapters...)
	byIndex := make(map[int]int, len(out))
	for i, ch := range out {
		byIndex[ch.Index] = i
	}

	var warnings []Warning
	for _, v := range verdicts {
		i, ok := byIndex[v.Index]
		if !ok {
			continue
		}
		if !v.Accepted {
			w := Warning{Code: WarnLLMRejected, ChapterIndex: v.Index, Message: out[i].Title + " failed verification"}
			out[i].Warnings = append(append([]Warning(nil), out[i].Warnings...), w)
			warnings = append(warnings, w)
			continue
		}
		if t := strings.TrimSpace(v.Title); t != "" {
			out[i].Title = t
		}
	}
	return out, warnings
}
