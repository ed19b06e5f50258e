package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/assist"
)

// HandleAssist forwards a prompt to the text-generation API
func (s *Server) HandleAssist(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	if !s.assistLimit.Allow(callerIP(r)) {
		s.respondError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if len(req.Prompt) > assist.MaxPromptLen {
		s.respondError(w, http.StatusBadRequest, "prompt too long")
		return
	}

	text, err := s.assist.Generate(r.Context(), req.Prompt)
	if err != nil {
		log.Error().Err(err).Msg("assist: generation failed")
		s.respondError(w, http.StatusInternalServerError, "upstream error")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"text": text,
	})
}
