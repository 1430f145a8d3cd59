package pipeline

import (
	"testing"
	"time"
)

func TestContentHashHex(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"ascii", []byte("hello world"), "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		if got := ContentHashHex(tt.data); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}

	// Re-encoding the same novel changes the hash; the hash is over raw bytes.
	if ContentHashHex([]byte("1화")) == ContentHashHex([]byte("1\xc8\xad")) {
		t.Error("expected utf-8 and euc-kr bytes to hash differently")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusSegmenting, "segmenting"},
		{StatusTitling, "titling"},
		{StatusWriting, "writing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("write 003화.txt: disk full")
	job.AddError("write 007화.txt: disk full")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "write 003화.txt: disk full" {
		t.Errorf("expected first error in order, got %q", snap.Progress.Errors[0])
	}
}

func TestJob_IncrChaptersWritten(t *testing.T) {
	job := &Job{ID: "incr-test", UpdatedAt: time.Now()}
	job.SetTotalChapters(3)
	job.IncrChaptersWritten()
	job.IncrChaptersWritten()

	snap := job.Snapshot()
	if snap.Progress.ChaptersWritten != 2 {
		t.Errorf("expected 2 chapters written, got %d", snap.Progress.ChaptersWritten)
	}
	if snap.Progress.TotalChapters != 3 {
		t.Errorf("expected 3 total chapters, got %d", snap.Progress.TotalChapters)
	}
}

func TestJob_SetLLMProgress(t *testing.T) {
	job := &Job{ID: "llm-test", UpdatedAt: time.Now()}
	job.SetLLMProgress(4, 9)

	snap := job.Snapshot()
	if snap.Progress.LLMCalls != 4 || snap.Progress.LLMTotal != 9 {
		t.Errorf("expected 4/9 llm calls, got %d/%d", snap.Progress.LLMCalls, snap.Progress.LLMTotal)
	}
}

func TestJob_SnapshotCopiesResult(t *testing.T) {
	job := &Job{ID: "result-test", UpdatedAt: time.Now()}
	job.SetResult(&JobResult{PatternID: "korean_episode", Files: []string{"001화.txt"}})

	snap := job.Snapshot()
	job.SetResult(&JobResult{PatternID: "english_chapter"})
	if snap.Result == nil || snap.Result.PatternID != "korean_episode" {
		t.Errorf("expected snapshot to keep its result, got %+v", snap.Result)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("novel.txt", "", "", []byte("x"), SplitOptions{LLM: LLMOff})
	if job.ID == "" {
		t.Fatal("expected a job ID")
	}
	if job.DocID != job.ID {
		t.Errorf("expected doc ID to default to job ID, got %q", job.DocID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	other := NewJob("novel.txt", "", "doc-7", nil, SplitOptions{})
	if other.ID == job.ID {
		t.Error("expected distinct job IDs")
	}
	if other.DocID != "doc-7" {
		t.Errorf("expected doc ID %q, got %q", "doc-7", other.DocID)
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("무협.txt", "무협", "", []byte("1화"), SplitOptions{})
	store.Put(job)

	if got := store.Get(job.ID); got != job {
		t.Fatalf("expected the stored job back, got %+v", got)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_ListOldestFirst(t *testing.T) {
	store := NewJobStore(time.Hour)
	now := time.Now()
	store.Put(&Job{ID: "b", CreatedAt: now.Add(time.Second)})
	store.Put(&Job{ID: "a", CreatedAt: now})

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("expected order a, b; got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestJobStore_PutRefreshesTTL(t *testing.T) {
	store := NewJobStore(80 * time.Millisecond)
	job := &Job{ID: "refresh"}
	store.Put(job)
	time.Sleep(50 * time.Millisecond)
	store.Put(job)
	time.Sleep(50 * time.Millisecond)

	store.Cleanup()
	if store.Get("refresh") == nil {
		t.Error("expected re-put job to survive")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored job, got %d", store.Len())
	}
}
