package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.orchestrator.Status())
}

// handleListDocuments lists the ids of all structured documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.orchestrator.ListDocuments()
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"documents": ids,
		"count":     len(ids),
	})
}

// handleDeleteDocuments removes documents from the index and the
// structured store.
func (s *Server) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocIDs []string `json:"doc_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.DocIDs) == 0 {
		jsonError(w, "doc_ids is required", http.StatusBadRequest)
		return
	}

	res, err := s.orchestrator.DeleteDocuments(req.DocIDs)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"deleted_doc_ids": res.DeletedDocIDs,
		"deleted_files":   res.DeletedFiles,
		"timestamp":       res.Timestamp,
		"message":         fmt.Sprintf("Deleted %d documents", len(res.DeletedDocIDs)),
	})
}
