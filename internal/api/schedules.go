package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListSchedules returns the reconciled schedule set for a feeder
// source, in insertion order. The set only changes when mutations arrive
// on the bus, so an empty result for an unknown source is not an error.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	schedules, err := s.feeder.ListSchedulesBySource(r.Context(), source)
	if err != nil {
		writeInternalError(w, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"schedules": schedules,
		"count":     len(schedules),
	})
}
