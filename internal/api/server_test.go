package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/novelsplit/internal/chunker"
	"github.com/dgallion1/novelsplit/internal/config"
	"github.com/dgallion1/novelsplit/internal/extract"
	"github.com/dgallion1/novelsplit/internal/pathstore"
	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/dgallion1/novelsplit/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey = "test-key"
	novel   = "작가의 말\n\n1화 시작\n첫 번째 본문.\n\n2화 만남\n두 번째 본문.\n\n3화 이별\n세 번째 본문.\n"
)

type fixedLLM struct{}

func (fixedLLM) Complete(context.Context, string) (string, error) { return "yes", nil }
func (fixedLLM) Model() string                                     { return "fixed-model" }
func (fixedLLM) Close()                                            {}

type testEnv struct {
	srv *Server
	fs  afero.Fs
}

func newTestEnv(t *testing.T, llm extract.Client, ps *pathstore.Client) *testEnv {
	t.Helper()
	cfg := config.Config{
		NovelsplitAPIKey:    testKey,
		LLMMode:             "off",
		WorkerCount:         1,
		MaxQueueSize:        4,
		MaxConcurrentLLM:    1,
		MaxConcurrentWrites: 2,
		MaxUploadBytes:      1 << 20,
		JobTTL:              time.Hour,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := afero.NewMemMapFs()

	splitter := pipeline.NewSplitter(llm, log, chunker.DefaultConfig(), cfg.MaxConcurrentLLM)
	orch := pipeline.NewOrchestrator(cfg, splitter, store.DirFactory(fs, "/out"), log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	var stats *extract.LLMStats
	if llm != nil {
		stats = extract.NewLLMStats(time.Hour)
		stats.Record(extract.OpVerify, 120, nil)
	}
	return &testEnv{srv: NewServer(orch, llm, stats, ps, log, cfg), fs: fs}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, url, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patterns", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(t, req).Code)
}

func TestPatterns(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/patterns", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	patterns := decode(t, rec)["patterns"].([]any)
	require.Len(t, patterns, 7)
	first := patterns[0].(map[string]any)
	assert.Equal(t, "korean_episode", first["id"])
	assert.Equal(t, true, first["auto"])
	last := patterns[6].(map[string]any)
	assert.Equal(t, "dotted_number", last["id"])
	assert.Equal(t, false, last["auto"])
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, uploadRequest(t, "/api/split/preview", "novel.txt", novel, map[string]string{"keep_prelude": "true"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "korean_episode", out["pattern_id"])
	assert.Equal(t, "novel", out["title"])
	assert.Equal(t, "utf-8", out["encoding"])
	chapters := out["chapters"].([]any)
	require.Len(t, chapters, 3)
	second := chapters[1].(map[string]any)
	assert.Equal(t, "002화.txt", second["file"])
	assert.Equal(t, "2화 만남", second["title"])
	assert.Equal(t, "두 번째 본문.", second["excerpt"])
	assert.Nil(t, second["body"])
	assert.Equal(t, "작가의 말", out["prelude"].(map[string]any)["text"])

	exists, err := afero.DirExists(env.fs, "/out")
	require.NoError(t, err)
	assert.False(t, exists, "preview writes nothing")
}

func TestPreview_Failures(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		code     int
		reason   string
	}{
		{"no pattern", "a.txt", "평범한 문장입니다. 끝.", nil, http.StatusUnprocessableEntity, "no_boundary_pattern_matched"},
		{"no valid boundary", "a.txt", "1화면 앞에서\n2화면 뒤에서\n", nil, http.StatusUnprocessableEntity, "no_valid_boundary_found"},
		{"unsupported type", "a.epub", novel, nil, http.StatusBadRequest, ""},
		{"unknown pattern", "a.txt", novel, map[string]string{"pattern": "roman"}, http.StatusBadRequest, ""},
		{"llm without model", "a.txt", novel, map[string]string{"llm": "verify"}, http.StatusBadRequest, ""},
		{"bad selection", "a.txt", novel, map[string]string{"selection": "best"}, http.StatusBadRequest, ""},
		{"bad suffix", "a.txt", novel, map[string]string{"suffix": "/../x"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, uploadRequest(t, "/api/split/preview", tt.filename, tt.content, tt.fields))
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			out := decode(t, rec)
			assert.NotEmpty(t, out["error"])
			if tt.reason != "" {
				assert.Equal(t, tt.reason, out["reason"])
			}
		})
	}
}

func TestPreview_RejectedCandidates(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, uploadRequest(t, "/api/split/preview", "a.txt", "1화면 앞에서\n2화면 뒤에서\n", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "korean_episode", out["pattern_id"])
	assert.Len(t, out["rejected"], 2)
}

func TestSplit_Async(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, uploadRequest(t, "/api/split", "novel.txt", novel, map[string]string{"doc_id": "book-1", "suffix": ".txt"}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "book-1", out["doc_id"])
	pollURL := out["poll_url"].(string)

	var status map[string]any
	require.Eventually(t, func() bool {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, pollURL, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		status = decode(t, rec)
		return status["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	result := status["result"].(map[string]any)
	assert.Equal(t, []any{"001.txt", "002.txt", "003.txt"}, result["files"])

	got, err := afero.ReadFile(env.fs, "/out/book-1/003.txt")
	require.NoError(t, err)
	assert.Equal(t, "3화 이별\n\n세 번째 본문.", string(got))

	list := decode(t, env.do(t, httptest.NewRequest(http.MethodGet, "/api/split", nil)))
	assert.Len(t, list["jobs"], 1)
}

func TestSplit_InvalidDocID(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, uploadRequest(t, "/api/split", "novel.txt", novel, map[string]string{"doc_id": "../etc"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitStatus_NotFound(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/split/nope/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchSplit(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range map[string]string{"a.txt": novel, "b.epub": novel} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/split/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobs := decode(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 2)

	var accepted, rejected int
	for _, j := range jobs {
		if _, ok := j.(map[string]any)["job_id"]; ok {
			accepted++
		} else {
			rejected++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env = newTestEnv(t, fixedLLM{}, nil)
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "fixed-model", out["model"])
	assert.EqualValues(t, 1, out["stats"].(map[string]any)["count"])
}

func TestPreview_WithVerify(t *testing.T) {
	env := newTestEnv(t, fixedLLM{}, nil)
	rec := env.do(t, uploadRequest(t, "/api/split/preview", "novel.txt", novel, map[string]string{"llm": "verify"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["chapters"], 3)
}
