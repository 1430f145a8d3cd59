package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/dgallion1/novelsplit/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleGetNovel returns the manifest and chapter names of a novel stored in
// pathstore.
func (s *Server) handleGetNovel(w http.ResponseWriter, r *http.Request) {
	if s.ps == nil {
		jsonError(w, "novel listing needs the pathstore sink", http.StatusNotImplemented)
		return
	}
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	meta, err := s.ps.GetNode(ctx, store.MetaKey(docID))
	if err != nil {
		jsonError(w, "failed to read manifest: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "novel not found", http.StatusNotFound)
		return
	}

	children, err := s.ps.ListChildren(ctx, store.NovelKey(docID)+"/chapters", 10000)
	if err != nil {
		jsonError(w, "failed to list chapters: "+err.Error(), http.StatusBadGateway)
		return
	}
	chapters := make([]string, 0, len(children))
	for _, child := range children {
		chapters = append(chapters, path.Base(strings.TrimRight(child.Key, "/")))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":   docID,
		"manifest": meta.Value,
		"chapters": chapters,
	})
}

// handleDeleteNovel removes a novel's manifest and every chapter.
func (s *Server) handleDeleteNovel(w http.ResponseWriter, r *http.Request) {
	if s.ps == nil {
		jsonError(w, "novel deletion needs the pathstore sink", http.StatusNotImplemented)
		return
	}
	docID := chi.URLParam(r, "docID")
	if err := s.ps.DeleteNode(r.Context(), store.NovelKey(docID), true); err != nil {
		jsonError(w, "failed to delete novel: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}
