package api

import (
	"encoding/json"
	"net/http"

	"github.com/homectl/control-proxy/internal/models"
)

// HandleControl runs the control pipeline for one request
func (s *Server) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req models.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EntityID == "" || req.Action == "" {
		s.respondError(w, http.StatusBadRequest, "entity_id and action are required")
		return
	}

	result, err := s.controller.Control(r.Context(), callerIP(r), req)
	if err != nil {
		s.respondControlError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}
