package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/assist"
	"github.com/homectl/control-proxy/internal/auth"
	"github.com/homectl/control-proxy/internal/config"
	"github.com/homectl/control-proxy/internal/control"
	"github.com/homectl/control-proxy/internal/ratelimit"
	"github.com/homectl/control-proxy/internal/store"
)

// Server is the REST surface over the control pipeline.
type Server struct {
	config      *config.Config
	controller  *control.Controller
	store       store.Store
	auth        *auth.Manager
	assist      *assist.Client
	assistLimit *ratelimit.Limiter
	router      chi.Router
	server      *http.Server
}

// NewServer creates the REST server. assistClient may be nil, in which
// case the assist endpoint responds 404.
func NewServer(cfg *config.Config, controller *control.Controller, st store.Store, assistClient *assist.Client) *Server {
	s := &Server{
		config:      cfg,
		controller:  controller,
		store:       st,
		auth:        auth.NewManager(cfg.JWT.Secret),
		assist:      assistClient,
		assistLimit: ratelimit.New(cfg.RateLimit.AssistPerMin, cfg.RateLimit.Window.Std()),
		router:      chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures middleware and the route table
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	allowed := s.config.CORS.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Register before mounting subrouters so they inherit both handlers.
	// Unknown methods get the same 404 shape as unknown paths.
	s.router.NotFound(s.HandleNotFound)
	s.router.MethodNotAllowed(s.HandleNotFound)

	s.router.Route("/api", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// Handler exposes the router. Test hook.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware guards the admin routes with a bearer token
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.JWT.Secret == "" {
			s.respondError(w, http.StatusUnauthorized, "admin surface is not configured")
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		if _, err := s.auth.ValidateToken(token); err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

// callerIP returns the client IP for rate limiting. RealIP middleware has
// already folded X-Forwarded-For into RemoteAddr.
func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
