// Package web serves the import session API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/userimport/internal/backend"
	"github.com/JonMunkholm/userimport/internal/config"
	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/logging"
	"github.com/JonMunkholm/userimport/internal/metrics"
	"github.com/JonMunkholm/userimport/internal/session"
	"github.com/JonMunkholm/userimport/internal/web/middleware"
)

// Server is the HTTP front end for import sessions.
type Server struct {
	cfg      *config.Config
	gateway  backend.Gateway
	sessions *Registry
	limiter  *UploadLimiter
	logger   *slog.Logger
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires the router around gateway. Every session created through
// the API drives the same gateway.
func NewServer(cfg *config.Config, gateway backend.Gateway, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	limits := core.UploadLimits{
		MaxSize:            cfg.Upload.MaxFileSize,
		AcceptedExtensions: cfg.Upload.AcceptedExtensions,
	}

	s := &Server{
		cfg:     cfg,
		gateway: gateway,
		limiter: NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.sessions = NewRegistry(cfg.Session.MaxActive, func() *session.Session {
		return session.New(gateway, session.Options{Limits: limits, Logger: logger})
	})

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionLogger)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/upload", s.handleUpload)
			r.Post("/filter", s.handleFilter)
			r.Put("/selection", s.handleSelect)
			r.Post("/validate", s.handleValidate)
			r.Post("/import", s.handleImport)
			r.Post("/cancel", s.handleCancel)
			r.Post("/reset", s.handleReset)
		})

		r.Get("/users", s.handleListUsers)
		r.Get("/users/by-email/{email}", s.handleUserByEmail)
		r.Get("/users/{userID}", s.handleUserByID)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight uploads.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"uploads":  s.limiter.Status(),
	})
}

// sessionLogger tags the request logger with the session id from the path.
func (s *Server) sessionLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("session_id", chi.URLParam(r, "sessionID"))
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as the response body. Encoding errors are logged since
// the status line is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
