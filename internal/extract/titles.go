package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/novelsplit/internal/segment"
)

// Verify asks the model whether ch is a correctly split chapter. The verdict
// can only ever change the title; a "no" leaves the chapter in place.
func Verify(ctx context.Context, c Client, ch segment.Chapter) (segment.Verdict, error) {
	raw, err := c.Complete(WithOperation(ctx, OpVerify), BuildVerifyPrompt(ch))
	if err != nil {
		return segment.Verdict{}, err
	}
	accepted, title, err := ParseVerdict(raw)
	if err != nil {
		return segment.Verdict{}, err
	}
	return segment.Verdict{Index: ch.Index, Accepted: accepted, Title: title}, nil
}

// ParseVerdict reads a "yes|title" or "no" reply. A title that fails
// ValidateTitle is dropped without failing the verdict.
func ParseVerdict(raw string) (bool, string, error) {
	line := stripCodeBlock(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	answer, title, _ := strings.Cut(line, "|")
	answer = strings.ToLower(strings.Trim(strings.TrimSpace(answer), `"'.`))

	var accepted bool
	switch answer {
	case "yes", "y":
		accepted = true
	case "no", "n":
	default:
		return false, "", fmt.Errorf("unrecognized verdict %q", truncate(line, 80))
	}

	title, ok := ValidateTitle(title)
	if !ok {
		title = ""
	}
	return accepted, title, nil
}

type proposalReply struct {
	Episodes []struct {
		Label  string `json:"label"`
		Number *int   `json:"number"`
		Title  string `json:"title"`
	} `json:"episodes"`
}

// ProposeTitles asks the model to name the chapter headings in one chunk.
func ProposeTitles(ctx context.Context, c Client, docTitle, chunk string) ([]segment.TitleProposal, error) {
	raw, err := c.Complete(WithOperation(ctx, OpPropose), BuildProposalPrompt(docTitle, chunk))
	if err != nil {
		return nil, err
	}
	return ParseProposals(raw)
}

// ParseProposals decodes an episodes reply. Entries whose title fails
// validation or that name no label are skipped.
func ParseProposals(raw string) ([]segment.TitleProposal, error) {
	text := stripCodeBlock(raw)

	var reply proposalReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, fmt.Errorf("parse episodes json: %w (raw: %s)", err, truncate(text, 200))
	}

	var out []segment.TitleProposal
	for _, ep := range reply.Episodes {
		label := strings.TrimSpace(ep.Label)
		title, ok := ValidateTitle(ep.Title)
		if label == "" || !ok {
			continue
		}
		num := ep.Number
		if num == nil {
			num = segment.ParseNumber(label)
		}
		out = append(out, segment.TitleProposal{Label: label, Number: num, Title: title})
	}
	return out, nil
}
