package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/aquafeed-core/internal/pond"
)

// handleListPonds returns all ponds.
func (s *Server) handleListPonds(w http.ResponseWriter, r *http.Request) {
	ponds, err := s.ponds.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list ponds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ponds": ponds, "count": len(ponds)})
}

// handleCreatePond creates a pond together with its blank feeder info.
func (s *Server) handleCreatePond(w http.ResponseWriter, r *http.Request) {
	var p pond.Pond
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.ponds.Create(r.Context(), &p); err != nil {
		switch {
		case errors.Is(err, pond.ErrInvalidPond):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, pond.ErrPondExists):
			writeConflict(w, "pond already exists")
		default:
			writeInternalError(w, "failed to create pond")
		}
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// handleGetPond returns a single pond by ID.
func (s *Server) handleGetPond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.ponds.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pond.ErrPondNotFound) {
			writeNotFound(w, "pond not found")
			return
		}
		writeInternalError(w, "failed to get pond")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdatePond applies a partial update to a pond. Fields absent from
// the request body keep their current value.
func (s *Server) handleUpdatePond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.ponds.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pond.ErrPondNotFound) {
			writeNotFound(w, "pond not found")
			return
		}
		writeInternalError(w, "failed to get pond")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	p.ID = id

	if err := s.ponds.Update(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, pond.ErrInvalidPond):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, pond.ErrPondNotFound):
			writeNotFound(w, "pond not found")
		default:
			writeInternalError(w, "failed to update pond")
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleDeletePond removes a pond, its feeder info, and any schedules
// belonging to its feeder source.
func (s *Server) handleDeletePond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.ponds.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pond.ErrPondNotFound) {
			writeNotFound(w, "pond not found")
			return
		}
		writeInternalError(w, "failed to delete pond")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetFeederInfo returns the feed description for a pond.
func (s *Server) handleGetFeederInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := s.ponds.GetFeederInfo(r.Context(), id)
	if err != nil {
		if errors.Is(err, pond.ErrPondNotFound) {
			writeNotFound(w, "pond not found")
			return
		}
		writeInternalError(w, "failed to get feeder info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleUpdateFeederInfo replaces the feed description for a pond.
func (s *Server) handleUpdateFeederInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var info pond.FeederInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	info.PondID = id

	if err := s.ponds.UpdateFeederInfo(r.Context(), &info); err != nil {
		switch {
		case errors.Is(err, pond.ErrPondNotFound):
			writeNotFound(w, "pond not found")
		case errors.Is(err, pond.ErrInvalidPond):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to update feeder info")
		}
		return
	}

	writeJSON(w, http.StatusOK, info)
}
