// Package web provides the HTTP server and JSON handlers for the dataset API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/dummycsv/internal/config"
	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/web/auth"
	webmw "github.com/JonMunkholm/dummycsv/internal/web/middleware"
)

// Server is the HTTP server for the dataset API.
type Server struct {
	service  *core.Service
	sessions *auth.Sessions
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiter  *rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		sessions: auth.New(cfg.Session),
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.middleware)
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errRouteNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errMethodNotAllowed)
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.sessions.LoadUser(s.service))

		r.Group(func(r chi.Router) {
			if t := s.cfg.Server.RequestTimeout; t > 0 {
				r.Use(middleware.Timeout(t))
			}

			// Accounts
			r.Post("/auth/login", s.handleLogin)
			r.Get("/auth/logout", s.handleLogout)
			r.Post("/auth/register", s.handleRegister)

			r.Get("/column-types", s.handleColumnTypes)

			r.Group(func(r chi.Router) {
				r.Use(webmw.RequireUser)

				r.Get("/auth/me", s.handleMe)

				// Schemas and their columns
				r.Post("/schemas", s.handleCreateSchema)
				r.Get("/schemas", s.handleListSchemas)
				r.Get("/schemas/{id}", s.handleGetSchema)
				r.Put("/schemas/{id}", s.handleUpdateSchema)
				r.Patch("/schemas/{id}", s.handleUpdateSchema)
				r.Delete("/schemas/{id}", s.handleDeleteSchema)
				r.Post("/schemas/{id}/columns", s.handleAddColumn)
				r.Put("/schemas/{id}/columns/{cid}", s.handleUpdateColumn)
				r.Delete("/schemas/{id}/columns/{cid}", s.handleDeleteColumn)

				// Datasets
				r.Post("/datasets", s.handleCreateDataset)
				r.Get("/datasets", s.handleListDatasets)
				r.Get("/datasets/{id}/status", s.handleDatasetStatus)
				r.Delete("/datasets/{id}", s.handleDeleteDataset)
			})
		})

		// Downloads run as long as the client keeps reading.
		r.With(webmw.RequireUser).Get("/datasets/{id}", s.handleDownloadDataset)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type healthResponse struct {
	Status         string             `json:"status"`
	Downloads      core.LimiterStatus `json:"downloads"`
	PendingRetries int                `json:"pending_retries"`
}

// handleHealth pings the repository and the file store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:         "ok",
		Downloads:      s.service.Limiter().Status(),
		PendingRetries: s.service.PendingRetries(),
	}
	if err := s.service.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// The API serves JSON and CSV only
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
