package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dgallion1/novelsplit/internal/pathstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNovelPathstore(t *testing.T) (*pathstore.Client, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/kv/novels/book-1/meta":
			json.NewEncoder(w).Encode(map[string]any{
				"key_path": "novels/book-1/meta",
				"value":    map[string]any{"doc_id": "book-1", "pattern_id": "korean_episode"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/kv/novels/book-1/chapters/*":
			json.NewEncoder(w).Encode(map[string]any{"nodes": []map[string]any{
				{"key_path": "novels/book-1/chapters/001화.txt"},
				{"key_path": "novels/book-1/chapters/002화.txt"},
			}})
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path+"?"+r.URL.RawQuery)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	c := pathstore.NewClient(srv.URL, "ps-key")
	t.Cleanup(c.Close)
	return c, &deleted
}

func TestGetNovel(t *testing.T) {
	ps, _ := newNovelPathstore(t)
	env := newTestEnv(t, nil, ps)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/novels/book-1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, []any{"001화.txt", "002화.txt"}, out["chapters"])
	assert.Equal(t, "korean_episode", out["manifest"].(map[string]any)["pattern_id"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/novels/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNovel(t *testing.T) {
	ps, deleted := newNovelPathstore(t)
	env := newTestEnv(t, nil, ps)

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/novels/book-1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"/kv/novels/book-1?children=true"}, *deleted)
}

func TestNovels_WithoutPathstore(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/novels/book-1", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
