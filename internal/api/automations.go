package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth-core/internal/automation"
)

// maxParamLen limits URL parameter length to prevent abuse via oversized
// identifiers.
const maxParamLen = 100

// handleListAutomations returns all automations.
func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request) {
	automations := s.store.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": automations,
		"count":       len(automations),
	})
}

// handleGetAutomation returns a single automation by ID.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	a, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to get automation")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// handleCreateAutomation creates a new automation. An omitted ID is
// generated server-side.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var a automation.Automation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if a.ID == "" {
		a.ID = automation.GenerateID()
	}

	created, err := s.store.Create(a)
	if err != nil {
		switch {
		case errors.Is(err, automation.ErrExists):
			writeConflict(w, err.Error())
		case errors.Is(err, automation.ErrInvalid),
			errors.Is(err, automation.ErrInvalidTrigger),
			errors.Is(err, automation.ErrInvalidCondition),
			errors.Is(err, automation.ErrInvalidAction):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create automation")
		}
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateAutomation partially updates an automation. Only fields
// present in the request body change; run_count and id are immutable.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	var patch automation.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	updated, err := s.store.Update(id, patch)
	if err != nil {
		switch {
		case errors.Is(err, automation.ErrNotFound):
			writeNotFound(w, "automation not found")
		case errors.Is(err, automation.ErrInvalid),
			errors.Is(err, automation.ErrInvalidTrigger),
			errors.Is(err, automation.ErrInvalidCondition),
			errors.Is(err, automation.ErrInvalidAction):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to update automation")
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteAutomation removes an automation by ID.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	if err := s.store.Remove(id); err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to delete automation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleFireAutomation fires an automation manually, bypassing its
// triggers. Conditions still gate the actions. The firing runs
// asynchronously; results arrive via WebSocket and the firing history.
func (s *Server) handleFireAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	a, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to get automation")
		return
	}
	if !a.Enabled {
		writeConflict(w, "automation is disabled")
		return
	}

	if s.engine == nil {
		writeInternalError(w, "engine not available")
		return
	}
	s.engine.Fire(id, "manual:api")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"message": "firing started, results will follow via WebSocket",
	})
}

// handleListFirings returns firing history for an automation, newest
// first. The limit query parameter caps the result (default 50).
func (s *Server) handleListFirings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	if s.repo == nil {
		writeInternalError(w, "firing history not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	firings, err := s.repo.ListFirings(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to list firings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"firings": firings,
		"count":   len(firings),
	})
}
