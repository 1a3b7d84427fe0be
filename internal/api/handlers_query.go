package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/omisdami/docrag/internal/embed"
	"github.com/omisdami/docrag/internal/extract"
	"github.com/omisdami/docrag/internal/generate"
	"github.com/omisdami/docrag/internal/pipeline"
	"github.com/omisdami/docrag/internal/retrieval"
)

type askRequest struct {
	Query  string   `json:"query"`
	DocIDs []string `json:"doc_ids"`
	TopK   int      `json:"top_k"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.orchestrator.AskQuestion(r.Context(), req.Query, req.DocIDs, req.TopK)
	if err != nil {
		jsonError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

type reportRequest struct {
	Query    string   `json:"query"`
	DocIDs   []string `json:"doc_ids"`
	Style    string   `json:"style"`
	Length   string   `json:"length"`
	Sections []string `json:"sections"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.orchestrator.GenerateReport(r.Context(), pipeline.ReportRequest{
		Query:    req.Query,
		DocIDs:   req.DocIDs,
		Style:    req.Style,
		Length:   req.Length,
		Sections: req.Sections,
	})
	if err != nil {
		jsonError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// statusForError maps pipeline errors to HTTP status codes. Embedding
// service failures and retryable generation failures are upstream problems,
// reported as 502.
func statusForError(err error) int {
	var genErr *generate.RetryableError
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery), errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, embed.ErrEmbeddingService), errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
