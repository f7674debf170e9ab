package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth-core/internal/device"
)

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		writeInternalError(w, "device registry not available")
		return
	}

	devices := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device, including its last reported
// state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}
	if s.registry == nil {
		writeInternalError(w, "device registry not available")
		return
	}

	d, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleGetDeviceState returns just the last reported state of a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}
	if s.registry == nil {
		writeInternalError(w, "device registry not available")
		return
	}

	state, ok := s.registry.StateOf(id)
	if !ok {
		writeNotFound(w, "no state reported for device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"state":     state,
	})
}
