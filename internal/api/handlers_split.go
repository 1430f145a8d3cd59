package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/novelsplit/internal/parser"
	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/dgallion1/novelsplit/internal/segment"
	"github.com/go-chi/chi/v5"
)

const excerptRunes = 200

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	type patternInfo struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Auto        bool   `json:"auto"`
	}
	var out []patternInfo
	for _, p := range segment.DefaultPatterns() {
		out = append(out, patternInfo{ID: p.ID, Description: p.Description, Auto: true})
	}
	for _, p := range segment.ExtraPatterns() {
		out = append(out, patternInfo{ID: p.ID, Description: p.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": out})
}

// handlePreview segments an upload synchronously and returns the chapters
// without writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.splitOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readUpload(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	text, tree, err := parser.ReadText(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	title := r.FormValue("title")
	if title == "" {
		title = tree.Title
	}

	plan, err := s.orchestrator.Splitter().Plan(r.Context(), title, text, opts, nil)
	if err != nil {
		s.writeSplitError(w, err)
		return
	}

	includeBody := r.FormValue("include_body") == "true"
	type chapterView struct {
		Index          int               `json:"index"`
		File           string            `json:"file"`
		Title          string            `json:"title"`
		Label          string            `json:"label"`
		OriginalNumber *int              `json:"original_number"`
		BodyRunes      int               `json:"body_runes"`
		Excerpt        string            `json:"excerpt"`
		Body           string            `json:"body,omitempty"`
		Warnings       []segment.Warning `json:"warnings,omitempty"`
	}
	chapters := make([]chapterView, len(plan.Chapters))
	for i, ch := range plan.Chapters {
		v := chapterView{
			Index:          ch.Index,
			Title:          ch.Title,
			Label:          ch.Label,
			OriginalNumber: ch.Number,
			BodyRunes:      utf8.RuneCountInString(ch.Body),
			Excerpt:        excerpt(ch.Body, excerptRunes),
			Warnings:       ch.Warnings,
		}
		if i < len(plan.Files) {
			v.File = plan.Files[i].Name
		}
		if includeBody {
			v.Body = ch.Body
		}
		chapters[i] = v
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"title":        plan.Title,
		"encoding":     tree.Encoding,
		"pattern_id":   plan.PatternID,
		"chapters":     chapters,
		"prelude":      plan.Prelude,
		"warnings":     plan.Warnings,
		"rejected":     plan.Rejected,
		"llm_failures": plan.LLMFailures,
	})
}

// writeSplitError maps a failed split to a response. Segmentation failures
// are 422 with a machine-readable reason and the rejected candidates.
func (s *Server) writeSplitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segment.ErrNoBoundaryPatternMatched), errors.Is(err, segment.ErrNoValidBoundaryFound):
		body := map[string]any{
			"error":  err.Error(),
			"reason": segment.Reason(err),
		}
		var nv *segment.NoValidBoundaryError
		if errors.As(err, &nv) {
			body["pattern_id"] = nv.PatternID
			body["rejected"] = nv.Rejected
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, segment.ErrUnknownPattern), errors.Is(err, pipeline.ErrNoLLM):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("split failed", "error", err)
		jsonError(w, "split failed: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.splitOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readUpload(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	docID := r.FormValue("doc_id")
	if docID != "" && sanitizeFilename(docID) != docID {
		jsonError(w, "invalid doc_id", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(filename, r.FormValue("title"), docID, data, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/split/%s/status", job.ID),
	})
}

func (s *Server) handleSplitStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.orchestrator.Jobs()})
}

func (s *Server) handleBatchSplit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.splitOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": sanitizeFilename(fh.Filename),
				"error":    "failed to open file",
			})
			continue
		}
		filename, data, _, err := s.readUpload(f, fh)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, "", "", data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"doc_id":   job.DocID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/split/%s/status", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

// readUpload checks the extension and size of an uploaded file and reads it.
// On error the returned status is the HTTP code to answer with.
func (s *Server) readUpload(file multipart.File, header *multipart.FileHeader) (string, []byte, int, error) {
	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type %q (supported: %s)", filepath.Ext(filename), strings.Join(parser.Extensions(), ", "))
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return filename, data, http.StatusOK, nil
}

// splitOptions reads split settings from form values, falling back to the
// server defaults.
func (s *Server) splitOptions(r *http.Request) (pipeline.SplitOptions, error) {
	opts := pipeline.SplitOptions{
		Segment: segment.Options{
			Selection:    segment.SelectFirstMatch,
			Prelude:      segment.PreludeDrop,
			MinBodyRunes: s.cfg.MinBodyRunes,
			MaxBodyRunes: s.cfg.MaxBodyRunes,
		},
		Numbering: segment.NumberSequential,
		Suffix:    segment.DefaultSuffix,
	}

	if id := r.FormValue("pattern"); id != "" {
		if _, ok := segment.LookupPattern(segment.DefaultPatterns(), id); !ok {
			return opts, fmt.Errorf("unknown pattern %q", id)
		}
		opts.Segment.PatternID = id
	}

	switch v := r.FormValue("selection"); v {
	case "", "first":
	case "scored":
		opts.Segment.Selection = segment.SelectScored
	default:
		return opts, fmt.Errorf("selection must be first or scored")
	}

	if b, err := formBool(r, "keep_prelude"); err != nil {
		return opts, err
	} else if b {
		opts.Segment.Prelude = segment.PreludeKeep
	}

	if b, err := formBool(r, "keep_original_numbers"); err != nil {
		return opts, err
	} else if b {
		opts.Numbering = segment.NumberOriginal
	}

	if v := r.FormValue("suffix"); v != "" {
		if strings.ContainsAny(v, `/\`) || strings.Contains(v, "..") {
			return opts, fmt.Errorf("invalid suffix")
		}
		opts.Suffix = v
	}

	for _, f := range []struct {
		key string
		dst *int
	}{{"min_body", &opts.Segment.MinBodyRunes}, {"max_body", &opts.Segment.MaxBodyRunes}} {
		if v := r.FormValue(f.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return opts, fmt.Errorf("%s must be a non-negative integer", f.key)
			}
			*f.dst = n
		}
	}

	mode := r.FormValue("llm")
	if mode == "" {
		mode = s.cfg.LLMMode
	}
	llm, err := pipeline.ParseLLMMode(mode)
	if err != nil {
		return opts, err
	}
	if llm != pipeline.LLMOff && !s.orchestrator.Splitter().HasLLM() {
		return opts, pipeline.ErrNoLLM
	}
	opts.LLM = llm
	return opts, nil
}

func formBool(r *http.Request, key string) (bool, error) {
	v := r.FormValue(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

func excerpt(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}
