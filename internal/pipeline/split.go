package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/novelsplit/internal/chunker"
	"github.com/dgallion1/novelsplit/internal/extract"
	"github.com/dgallion1/novelsplit/internal/segment"
)

// LLMMode selects how a language model takes part in a split.
type LLMMode string

const (
	LLMOff     LLMMode = "off"
	LLMVerify  LLMMode = "verify"
	LLMPropose LLMMode = "propose"
)

// ErrNoLLM is returned when a split asks for a model but none is configured.
var ErrNoLLM = errors.New("no language model configured")

// ParseLLMMode accepts "", "off", "verify" and "propose".
func ParseLLMMode(s string) (LLMMode, error) {
	switch LLMMode(s) {
	case "", LLMOff:
		return LLMOff, nil
	case LLMVerify, LLMPropose:
		return LLMMode(s), nil
	}
	return "", fmt.Errorf("unknown llm mode %q", s)
}

// SplitOptions configures one split run.
type SplitOptions struct {
	Segment   segment.Options
	Numbering segment.NumberingPolicy
	Suffix    string
	LLM       LLMMode
}

// Plan is a segmented novel with file names assigned, ready to be written.
type Plan struct {
	Title     string               `json:"title"`
	PatternID string               `json:"pattern_id"`
	Chapters  []segment.Chapter    `json:"chapters"`
	Files     []segment.Assignment `json:"files"`
	Prelude   *segment.Prelude     `json:"prelude,omitempty"`
	Rejected  []segment.Candidate  `json:"rejected,omitempty"`
	Warnings  []segment.Warning    `json:"warnings,omitempty"`

	// LLMFailures counts model calls that failed; the affected chapters keep
	// their detected titles.
	LLMFailures int `json:"llm_failures,omitempty"`
}

// ProgressFunc is called after each model call with the number done so far.
type ProgressFunc func(done, total int)

// Splitter turns decoded novel text into a Plan. It is shared by the job
// workers, the preview endpoint and the CLI.
type Splitter struct {
	llm              extract.Client
	log              *slog.Logger
	chunkCfg         chunker.Config
	maxConcurrentLLM int
	backoff          func(attempt int) time.Duration
}

// NewSplitter creates a splitter. llm may be nil, in which case only LLMOff
// splits are possible.
func NewSplitter(llm extract.Client, log *slog.Logger, chunkCfg chunker.Config, maxConcurrentLLM int) *Splitter {
	if maxConcurrentLLM <= 0 {
		maxConcurrentLLM = 1
	}
	return &Splitter{
		llm:              llm,
		log:              log,
		chunkCfg:         chunkCfg,
		maxConcurrentLLM: maxConcurrentLLM,
		backoff:          Backoff,
	}
}

// HasLLM reports whether a model is configured.
func (s *Splitter) HasLLM() bool {
	return s.llm != nil
}

// Plan segments text and assigns file names. Segmentation failures are
// returned unchanged so callers can use segment.Reason on them. Model
// failures never fail the plan.
func (s *Splitter) Plan(ctx context.Context, title, text string, opts SplitOptions, progress ProgressFunc) (*Plan, error) {
	if opts.LLM != "" && opts.LLM != LLMOff && s.llm == nil {
		return nil, ErrNoLLM
	}

	res, err := segment.Segment(text, opts.Segment)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Title:     title,
		PatternID: res.PatternID,
		Prelude:   res.Prelude,
		Rejected:  res.Rejected,
		Warnings:  res.Warnings,
	}
	chapters := res.Chapters

	switch opts.LLM {
	case LLMVerify:
		var warns []segment.Warning
		chapters, warns, p.LLMFailures = s.verify(ctx, chapters, progress)
		p.Warnings = append(p.Warnings, warns...)
	case LLMPropose:
		chapters, p.LLMFailures = s.propose(ctx, title, text, chapters, progress)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, warns := segment.Assign(chapters, opts.Numbering, opts.Suffix)
	p.Chapters = attachWarnings(chapters, warns)
	p.Files = files
	p.Warnings = append(p.Warnings, warns...)
	return p, nil
}

// verify checks chapters longest first, the ones most likely to hide a missed
// boundary.
func (s *Splitter) verify(ctx context.Context, chapters []segment.Chapter, progress ProgressFunc) ([]segment.Chapter, []segment.Warning, int) {
	order := make([]int, len(chapters))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(utf8.RuneCountInString(chapters[b].Body), utf8.RuneCountInString(chapters[a].Body))
	})

	verdicts := make([]segment.Verdict, len(chapters))
	errs := make([]error, len(chapters))
	sem := make(chan struct{}, s.maxConcurrentLLM)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for _, i := range order {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = withRetry(ctx, s.log, s.backoff, "verify", func() error {
				var err error
				verdicts[i], err = extract.Verify(ctx, s.llm, chapters[i])
				return err
			})
			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(chapters))
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	var ok []segment.Verdict
	failed := 0
	for i := range chapters {
		if errs[i] != nil {
			s.log.Warn("verification failed, keeping chapter", "chapter", chapters[i].Index, "error", errs[i])
			failed++
			continue
		}
		ok = append(ok, verdicts[i])
	}

	out, warns := segment.ApplyVerdicts(chapters, ok)
	return out, warns, failed
}

// propose asks the model for chapter titles chunk by chunk and merges them in
// chunk order.
func (s *Splitter) propose(ctx context.Context, title, text string, chapters []segment.Chapter, progress ProgressFunc) ([]segment.Chapter, int) {
	chunks := chunker.Split(text, s.chunkCfg)
	s.log.Debug("proposing titles", "chunks", len(chunks), "est_tokens", chunker.EstimateTokens(text))
	perChunk := make([][]segment.TitleProposal, len(chunks))
	errs := make([]error, len(chunks))

	sem := make(chan struct{}, s.maxConcurrentLLM)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, c := range chunks {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, c chunker.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = withRetry(ctx, s.log, s.backoff, "propose", func() error {
				var err error
				perChunk[i], err = extract.ProposeTitles(ctx, s.llm, title, c.Text)
				return err
			})
			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(chunks))
				mu.Unlock()
			}
		}(i, c)
	}
	wg.Wait()

	var proposals []segment.TitleProposal
	failed := 0
	for i := range chunks {
		if errs[i] != nil {
			s.log.Warn("title proposal failed", "chunk", i, "error", errs[i])
			failed++
			continue
		}
		proposals = append(proposals, perChunk[i]...)
	}

	out, unmatched := segment.MergeTitles(chapters, proposals)
	s.log.Info("merged proposed titles", "proposals", len(proposals), "unmatched", unmatched, "chunks", len(chunks))
	return out, failed
}

func attachWarnings(chapters []segment.Chapter, warns []segment.Warning) []segment.Chapter {
	if len(warns) == 0 {
		return chapters
	}
	out := append([]segment.Chapter(nil), chapters...)
	byIndex := make(map[int]int, len(out))
	for i, ch := range out {
		byIndex[ch.Index] = i
	}
	for _, w := range warns {
		if i, ok := byIndex[w.ChapterIndex]; ok {
			out[i].Warnings = append(append([]segment.Warning(nil), out[i].Warnings...), w)
		}
	}
	return out
}
