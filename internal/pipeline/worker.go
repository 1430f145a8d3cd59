package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/novelsplit/internal/parser"
	"github.com/dgallion1/novelsplit/internal/segment"
	"github.com/dgallion1/novelsplit/internal/store"
)

// Worker processes a single split job.
type Worker struct {
	splitter *Splitter
	sinks    store.Factory
	log      *slog.Logger

	maxConcurrentWrites int
}

func NewWorker(splitter *Splitter, sinks store.Factory, log *slog.Logger, maxWrites int) *Worker {
	return &Worker{
		splitter:            splitter,
		sinks:               sinks,
		log:                 log,
		maxConcurrentWrites: maxWrites,
	}
}

// Process runs the full split pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	text, tree, err := parser.ReadText(bytes.NewReader(job.FileData()), job.Filename)
	job.releaseFileData()
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	title := job.Title
	if title == "" {
		title = tree.Title
	}
	job.SetContentHash(ContentHashHex([]byte(text)))

	// Phase 2: Segment, optionally refining titles with the model.
	if job.Options.LLM == LLMVerify || job.Options.LLM == LLMPropose {
		job.SetStatus(StatusTitling, "titling")
	} else {
		job.SetStatus(StatusSegmenting, "segmenting")
	}
	plan, err := w.splitter.Plan(ctx, title, text, job.Options, job.SetLLMProgress)
	if err != nil {
		log.Warn("segmentation failed", "error", err, "reason", segment.Reason(err))
		res := &JobResult{Encoding: tree.Encoding, Reason: segment.Reason(err)}
		var nv *segment.NoValidBoundaryError
		if errors.As(err, &nv) {
			res.PatternID = nv.PatternID
			res.Rejected = nv.Rejected
		}
		job.SetResult(res)
		job.AddError(fmt.Sprintf("segment: %s", err))
		job.SetStatus(StatusFailed, "segmenting")
		return
	}
	job.SetTotalChapters(len(plan.Chapters))
	log.Info("segmented novel", "pattern", plan.PatternID, "chapters", len(plan.Chapters), "warnings", len(plan.Warnings))
	if plan.LLMFailures > 0 {
		job.AddError(fmt.Sprintf("llm: %d call(s) failed, detected titles kept", plan.LLMFailures))
	}

	// Phase 3: Write chapter files.
	job.SetStatus(StatusWriting, "writing")
	sink, err := w.sinks(ctx, job.DocID)
	if err != nil {
		log.Error("open sink failed", "error", err)
		job.AddError(fmt.Sprintf("sink: %s", err))
		job.SetStatus(StatusFailed, "writing")
		return
	}
	defer sink.Close()

	report := Write(ctx, sink, plan, w.maxConcurrentWrites, job.IncrChaptersWritten)
	for _, werr := range report.Errors {
		log.Error("write failed", "error", werr)
		job.AddError(werr.Error())
	}
	log.Info("write complete", "files", len(report.Files), "errors", len(report.Errors))

	if len(report.Files) > 0 {
		if err := Finish(ctx, sink, job.DocID, plan, report.Files); err != nil {
			log.Error("manifest write failed", "error", err)
			job.AddError(fmt.Sprintf("manifest: %s", err))
		}
	}

	job.SetResult(&JobResult{
		PatternID:   plan.PatternID,
		Encoding:    tree.Encoding,
		Files:       report.Files,
		Warnings:    plan.Warnings,
		LLMFailures: plan.LLMFailures,
	})

	switch {
	case len(report.Errors) == 0:
		job.SetStatus(StatusCompleted, "done")
	case len(report.Files) > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "writing")
	}
}
