package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// Pond endpoints
		r.Route("/ponds", func(r chi.Router) {
			r.Get("/", s.handleListPonds)
			r.Post("/", s.handleCreatePond)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPond)
				r.Patch("/", s.handleUpdatePond)
				r.Delete("/", s.handleDeletePond)
				r.Get("/feeder-info", s.handleGetFeederInfo)
				r.Put("/feeder-info", s.handleUpdateFeederInfo)
			})
		})

		// Reconciled feeder state, keyed by source device
		r.Get("/schedules/{source}", s.handleListSchedules)
		r.Get("/controls/{source}", s.handleListControls)

		// WebSocket (session auth handled upstream by the gateway)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.mqtt != nil {
		broker := "disconnected"
		if s.mqtt.IsConnected() {
			broker = "connected"
		}
		resp["mqtt"] = broker
	}
	writeJSON(w, http.StatusOK, resp)
}
