package segment

// WarningCode identifies a non-fatal condition on a chapter.
type WarningCode string

const (
	WarnDuplicateNumber WarningCode = "duplicate_numeric_label"
	WarnEmptyBody       WarningCode = "empty_chapter_body"
	WarnShortBody       WarningCode = "short_chapter_body"
	WarnLongBody        WarningCode = "long_chapter_body"
	WarnMissingNumber   WarningCode = "missing_numeric_label"
	WarnLLMRejected     WarningCode = "llm_rejected"
)

// Warning flags a chapter without dropping it.
type Warning struct {
	Code         WarningCode `json:"code"`
	ChapterIndex int         `json:"chapter_index"`
	Message      string      `json:"message"`
}
