package segment

import "fmt"

// NumberingPolicy decides the number used in a chapter's file name.
type NumberingPolicy string

const (
	// NumberSequential numbers chapters 1..n in appearance order.
	NumberSequential NumberingPolicy = "sequential"
	// NumberOriginal reuses the number parsed from each chapter's marker label.
	NumberOriginal NumberingPolicy = "original"
)

// DefaultSuffix is appended to the zero-padded chapter number.
const DefaultSuffix = "화.txt"

// Assignment pairs a chapter with its output file name.
type Assignment struct {
	Index  int    `json:"index"`
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// FileName formats n as a zero-padded three digit number plus suffix.
func FileName(n int, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return fmt.Sprintf("%03d%s", n, suffix)
}

// Assign derives file names for chapters in their given order. Under
// NumberOriginal, chapters sharing a number keep the same name (the later
// write wins in the sink) and chapters without a number fall back to their
// sequence index; both cases are reported as warnings.
func Assign(chapters []Chapter, policy NumberingPolicy, suffix string) ([]Assignment, []Warning) {
	out := make([]Assignment, 0, len(chapters))
	var warnings []Warning
	seen := make(map[int]int)

	for _, ch := range chapters {
		n := ch.Index
		if policy == NumberOriginal {
			switch {
			case ch.Number == nil:
				warnings = append(warnings, Warning{
					Code:         WarnMissingNumber,
					ChapterIndex: ch.Index,
					Message:      fmt.Sprintf("%q has no number, using sequence %d", ch.Title, ch.Index),
				})
			default:
				n = *ch.Number
				if first, dup := seen[n]; dup {
					warnings = append(warnings, Warning{
						Code:         WarnDuplicateNumber,
						ChapterIndex: ch.Index,
						Message:      fmt.Sprintf("number %d already used by chapter %d", n, first),
					})
				} else {
					seen[n] = ch.Index
				}
			}
		}
		out = append(out, Assignment{Index: ch.Index, Number: n, Name: FileName(n, suffix)})
	}
	return out, warnings
}
