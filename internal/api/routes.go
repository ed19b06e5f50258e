package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up the /api route table
func (s *Server) setupAPIRoutes(r chi.Router) {
	r.Get("/health", s.HandleHealth)

	// Device control (public, CORS-restricted)
	r.Get("/status", s.HandleStatus)
	r.Get("/devices", s.HandleDevices)
	r.Get("/state", s.HandleState)
	r.Post("/control", s.HandleControl)

	// Text generation proxy
	r.Post("/assist", s.HandleAssist)

	// Whitelist administration (bearer token)
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.NotFound(s.HandleNotFound)
		r.Put("/enabled", s.HandleSetEnabled)
		r.Route("/devices/{entity_id}", func(r chi.Router) {
			r.Put("/", s.HandlePutDevice)
			r.Delete("/", s.HandleDeleteDevice)
		})
	})
}
