package api

import (
	"encoding/json"
	"net/http"
)

// handleLLMStats reports the models this deployment runs and a latency
// snapshot for generation calls over the rolling stats window.
func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.claude == nil || s.claude.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"generation_model": s.claude.Model(),
		"embedding_model":  s.cfg.EmbeddingModel,
		"stats":            s.claude.Stats.Snapshot(),
	})
}
