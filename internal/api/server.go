package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/omisdami/docrag/internal/config"
	"github.com/omisdami/docrag/internal/generate"
	"github.com/omisdami/docrag/internal/pipeline"
)

// Server is the HTTP API server for docrag.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	claude       *generate.AnthropicClient
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, claude *generate.AnthropicClient, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		claude:       claude,
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
	r.Get("/healthz", s.handleHealth)

	// Authenticated endpoints. An empty AUTH_TOKEN disables auth.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.AuthToken))

		r.Post("/ingest", s.handleIngest)
		r.Get("/jobs/{jobID}", s.handleJobStatus)

		r.Post("/ask", s.handleAsk)
		r.Post("/report", s.handleReport)

		r.Get("/status", s.handleStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/documents", s.handleDeleteDocuments)

		r.Get("/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
