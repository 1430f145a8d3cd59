package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/dgallion1/novelsplit/internal/store"
)

// SplitCmd writes one file per chapter.
type SplitCmd struct {
	File string `arg:"" help:"Novel to split (.txt, .md, .html, .docx, .pdf)."`
	Out  string `short:"o" default:"." help:"Output directory; chapters go into a subdirectory named after the novel."`

	SegmentFlags `embed:""`
}

func (c *SplitCmd) Run(g *globals) error {
	plan, encoding, err := c.plan(g, c.File)
	if err != nil {
		return err
	}

	dir := filepath.Join(c.Out, dirName(plan.Title))
	sink, err := store.NewDirSink(g.fs, dir)
	if err != nil {
		return err
	}
	defer sink.Close()

	report := pipeline.Write(g.ctx, sink, plan, g.cfg.MaxConcurrentWrites, nil)
	for _, werr := range report.Errors {
		fmt.Fprintln(g.errOut, "error:", werr)
	}

	fmt.Fprintf(g.out, "%s: %d chapters (pattern %s, %s) -> %s\n",
		plan.Title, len(plan.Chapters), plan.PatternID, encoding, dir)
	for _, w := range plan.Warnings {
		fmt.Fprintf(g.out, "  warning: chapter %d: %s\n", w.ChapterIndex, w.Message)
	}
	if plan.LLMFailures > 0 {
		fmt.Fprintf(g.out, "  %d model call(s) failed, detected titles kept\n", plan.LLMFailures)
	}

	if len(report.Errors) > 0 {
		return fmt.Errorf("%d of %d files failed", len(report.Errors), len(plan.Files))
	}
	return nil
}

// dirName makes a novel title usable as a single path element.
func dirName(title string) string {
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if title == "" || title == "." || title == ".." {
		return "novel"
	}
	return title
}
