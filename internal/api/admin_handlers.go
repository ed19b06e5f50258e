package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/models"
)

// HandlePutDevice upserts a whitelist entry
func (s *Server) HandlePutDevice(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	if entityID == "" {
		s.respondError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	var req struct {
		Name    string `json:"name"`
		Emoji   string `json:"emoji"`
		Type    string `json:"type"`
		Enabled *bool  `json:"enabled,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	entry := models.WhitelistEntry{
		EntityID: entityID,
		Name:     req.Name,
		Emoji:    req.Emoji,
		Type:     req.Type,
		Enabled:  req.Enabled,
	}

	if err := s.store.PutDevice(r.Context(), entry); err != nil {
		log.Error().Err(err).Str("entity_id", entityID).Msg("admin: put device failed")
		s.respondError(w, http.StatusInternalServerError, "store error")
		return
	}

	s.respondJSON(w, http.StatusOK, entry)
}

// HandleDeleteDevice removes a whitelist entry
func (s *Server) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")

	if err := s.store.DeleteDevice(r.Context(), entityID); err != nil {
		log.Error().Err(err).Str("entity_id", entityID).Msg("admin: delete device failed")
		s.respondError(w, http.StatusInternalServerError, "store error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSetEnabled sets the global kill switch
func (s *Server) HandleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		s.respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := s.store.SetEnabled(r.Context(), *req.Enabled); err != nil {
		log.Error().Err(err).Msg("admin: set enabled failed")
		s.respondError(w, http.StatusInternalServerError, "store error")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{
		"enabled": *req.Enabled,
	})
}
