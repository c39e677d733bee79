package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListControls returns the append-only control history for a feeder
// source in chronological order.
func (s *Server) handleListControls(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	controls, err := s.feeder.ListControlsBySource(r.Context(), source)
	if err != nil {
		writeInternalError(w, "failed to list controls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":   source,
		"controls": controls,
		"count":    len(controls),
	})
}
