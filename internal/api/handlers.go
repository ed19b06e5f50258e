package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/control"
)

// HandleHealth health check
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// HandleNotFound is the catch-all for unknown routes and methods
func (s *Server) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusNotFound, "not found")
}

// HandleStatus reports the global kill switch
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": s.controller.Status(r.Context()),
	})
}

// HandleDevices lists the whitelisted devices
func (s *Server) HandleDevices(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": s.controller.Devices(r.Context()),
	})
}

// HandleState reports current state for every whitelisted device
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	states, err := s.controller.States(r.Context())
	if err != nil {
		s.respondControlError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"states": states,
	})
}

// respondControlError maps pipeline errors onto status codes. Upstream
// details are logged, never leaked.
func (s *Server) respondControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, control.ErrRateLimited):
		s.respondError(w, http.StatusTooManyRequests, control.ErrRateLimited.Error())
	case errors.Is(err, control.ErrServiceDisabled):
		s.respondError(w, http.StatusForbidden, control.ErrServiceDisabled.Error())
	case errors.Is(err, control.ErrInvalidAction):
		s.respondError(w, http.StatusBadRequest, control.ErrInvalidAction.Error())
	case errors.Is(err, control.ErrDeviceNotAllowed):
		s.respondError(w, http.StatusForbidden, control.ErrDeviceNotAllowed.Error())
	case errors.Is(err, control.ErrInvalidParameter):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, "upstream error")
	}
}

// respondJSON responds with JSON
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
