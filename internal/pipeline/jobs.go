package pipeline

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dgallion1/novelsplit/internal/segment"
)

// JobStatus represents the state of a split job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusSegmenting JobStatus = "segmenting"
	StatusTitling    JobStatus = "titling"
	StatusWriting    JobStatus = "writing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of a single novel split.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Options  SplitOptions `json:"-"`
	Progress Progress     `json:"progress"`
	Result   *JobResult   `json:"result,omitempty"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChapters   int      `json:"total_chapters"`
	ChaptersWritten int      `json:"chapters_written"`
	LLMCalls        int      `json:"llm_calls"`
	LLMTotal        int      `json:"llm_total"`
	Errors          []string `json:"errors"`
}

// JobResult summarizes a finished split.
type JobResult struct {
	PatternID   string              `json:"pattern_id,omitempty"`
	Encoding    string              `json:"encoding,omitempty"`
	Files       []string            `json:"files,omitempty"`
	Warnings    []segment.Warning   `json:"warnings,omitempty"`
	LLMFailures int                 `json:"llm_failures,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Rejected    []segment.Candidate `json:"rejected,omitempty"`
}

// NewJob creates a queued job for data. docID names the output namespace and
// defaults to the job ID.
func NewJob(filename, title, docID string, data []byte, opts SplitOptions) *Job {
	now := time.Now()
	id := uuid.NewString()
	if docID == "" {
		docID = id
	}
	return &Job{
		ID:        id,
		DocID:     docID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewJobStore creates a store whose entries expire ttl after their last Put.
// Expired entries are removed by Cleanup.
func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		cache: gocache.New(ttl, 0),
		ttl:   ttl,
	}
}

// Put stores the job and restarts its expiry.
func (s *JobStore) Put(job *Job) {
	s.cache.Set(job.ID, job, s.ttl)
}

func (s *JobStore) Get(id string) *Job {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil
	}
	return v.(*Job)
}

// List returns snapshots of all live jobs, oldest first.
func (s *JobStore) List() []JobSnapshot {
	items := s.cache.Items()
	out := make([]JobSnapshot, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(*Job).Snapshot())
	}
	slices.SortFunc(out, func(a, b JobSnapshot) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Len returns the number of stored jobs, expired ones included.
func (s *JobStore) Len() int {
	return s.cache.ItemCount()
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.cache.DeleteExpired()
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalChapters records the number of chapters to write.
func (j *Job) SetTotalChapters(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChapters = n
	j.UpdatedAt = time.Now()
}

// IncrChaptersWritten atomically increments the written count.
func (j *Job) IncrChaptersWritten() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChaptersWritten++
	j.UpdatedAt = time.Now()
}

// SetLLMProgress records model calls done out of total.
func (j *Job) SetLLMProgress(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.LLMCalls = done
	j.Progress.LLMTotal = total
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the decoded text.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetResult records the job outcome.
func (j *Job) SetResult(r *JobResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = r
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once it has been parsed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string     `json:"job_id"`
	DocID       string     `json:"doc_id"`
	Status      JobStatus  `json:"status"`
	Phase       string     `json:"phase"`
	Filename    string     `json:"filename"`
	Title       string     `json:"title"`
	ContentHash string     `json:"content_hash,omitempty"`
	Progress    Progress   `json:"progress"`
	Result      *JobResult `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	var result *JobResult
	if j.Result != nil {
		r := *j.Result
		result = &r
	}
	return JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		Progress: Progress{
			TotalChapters:   j.Progress.TotalChapters,
			ChaptersWritten: j.Progress.ChaptersWritten,
			LLMCalls:        j.Progress.LLMCalls,
			LLMTotal:        j.Progress.LLMTotal,
			Errors:          errs,
		},
		Result:    result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
