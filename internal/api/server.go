package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/novelsplit/internal/config"
	"github.com/dgallion1/novelsplit/internal/extract"
	"github.com/dgallion1/novelsplit/internal/pathstore"
	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for novelsplit.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	llm          extract.Client
	stats        *extract.LLMStats
	ps           *pathstore.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. llm, stats and ps may be
// nil; the endpoints that need them then answer with an error.
func NewServer(orch *pipeline.Orchestrator, llm extract.Client, stats *extract.LLMStats, ps *pathstore.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		llm:          llm,
		stats:        stats,
		ps:           ps,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.NovelsplitAPIKey, s.log))

		r.Get("/api/patterns", s.handlePatterns)
		r.Post("/api/split/preview", s.handlePreview)
		r.Post("/api/split", s.handleSplit)
		r.Post("/api/split/batch", s.handleBatchSplit)
		r.Get("/api/split", s.handleListJobs)
		r.Get("/api/split/{jobID}/status", s.handleSplitStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/novels/{docID}", s.handleGetNovel)
		r.Delete("/api/novels/{docID}", s.handleDeleteNovel)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
