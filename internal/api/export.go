package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/library-core/internal/library"
)

// handleExport returns the whole store as the backing document:
// {"books": [...], "members": [...], "loans": [...]}.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="library.json"`)
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleImport replaces the whole store with a backing document.
// The previous content is kept when the document is rejected.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap library.Snapshot
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid backing document: "+err.Error())
		return
	}

	if err := s.store.Import(r.Context(), snap); err != nil {
		s.logRejected(r, library.StoreKind, err)
		writeStoreError(w, err)
		return
	}

	stats := s.store.Stats()
	s.recordAudit(r, string(library.ActionImported), library.StoreKind, 0, map[string]any{
		"books":   stats.Books,
		"members": stats.Members,
		"loans":   stats.Loans,
	})
	writeJSON(w, http.StatusOK, stats)
}
