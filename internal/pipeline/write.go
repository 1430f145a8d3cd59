package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/novelsplit/internal/segment"
	"github.com/dgallion1/novelsplit/internal/store"
)

// PreludeName is the file that receives a kept prelude.
const PreludeName = "000_prelude.txt"

// WriteReport is the outcome of writing a plan to a sink.
type WriteReport struct {
	Files  []string // distinct names written, prelude first, then chapter order
	Errors []error
}

// Write stores every chapter of plan in sink with at most maxConcurrent
// writes in flight. A kept prelude goes to PreludeName. Chapters that share a
// file name are written one after another in chapter order, so the last one
// wins. onWritten is called after each successful chapter Put and may be nil.
func Write(ctx context.Context, sink store.Sink, plan *Plan, maxConcurrent int, onWritten func()) WriteReport {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	byIndex := make(map[int]segment.Chapter, len(plan.Chapters))
	for _, ch := range plan.Chapters {
		byIndex[ch.Index] = ch
	}

	var names []string
	groups := make(map[string][]segment.Chapter)
	for _, f := range plan.Files {
		if _, ok := groups[f.Name]; !ok {
			names = append(names, f.Name)
		}
		groups[f.Name] = append(groups[f.Name], byIndex[f.Index])
	}

	ok := make([]bool, len(names))
	errs := make([][]error, len(names))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, name := range names {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, ch := range groups[name] {
				if err := ctx.Err(); err != nil {
					errs[i] = append(errs[i], fmt.Errorf("write %s: %w", name, err))
					return
				}
				if err := sink.Put(ctx, name, ch.Content()); err != nil {
					errs[i] = append(errs[i], fmt.Errorf("write %s (chapter %d): %w", name, ch.Index, err))
					continue
				}
				ok[i] = true
				if onWritten != nil {
					onWritten()
				}
			}
		}(i, name)
	}
	wg.Wait()

	var r WriteReport
	if plan.Prelude != nil {
		if err := ctx.Err(); err != nil {
			r.Errors = append(r.Errors, fmt.Errorf("write %s: %w", PreludeName, err))
		} else if err := sink.Put(ctx, PreludeName, plan.Prelude.Text); err != nil {
			r.Errors = append(r.Errors, fmt.Errorf("write %s: %w", PreludeName, err))
		} else {
			r.Files = append(r.Files, PreludeName)
		}
	}
	for i, name := range names {
		if ok[i] {
			r.Files = append(r.Files, name)
		}
		r.Errors = append(r.Errors, errs[i]...)
	}
	return r
}

// Finish records a manifest on sinks that keep one.
func Finish(ctx context.Context, sink store.Sink, docID string, plan *Plan, files []string) error {
	f, ok := sink.(store.Finisher)
	if !ok {
		return nil
	}
	return f.Finish(ctx, store.Manifest{
		DocID:     docID,
		Title:     plan.Title,
		PatternID: plan.PatternID,
		Files:     files,
		Warnings:  len(plan.Warnings),
		CreatedAt: time.Now().UTC(),
	})
}
