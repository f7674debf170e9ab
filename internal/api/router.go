package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Automation endpoints
		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleListAutomations)
			r.Post("/", s.handleCreateAutomation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Patch("/", s.handleUpdateAutomation)
				r.Delete("/", s.handleDeleteAutomation)
				r.Post("/fire", s.handleFireAutomation)
				r.Get("/firings", s.handleListFirings)
			})
		})

		// Device endpoints (read-only; devices are declared in devices.yaml)
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
			r.Get("/{id}/state", s.handleGetDeviceState)
		})

		// WebSocket for real-time engine events
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status, including database
// connectivity when a database is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
		} else {
			resp["database"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
