// Package server assembles the public HTTP server: middleware chain,
// service endpoints, and the catch-all browse namespace.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/internal/server/handlers"
	"github.com/3leaps/bucketd/internal/server/middleware"
)

// Options carries the handlers and tunables the server mounts.
type Options struct {
	// Browse handles every path outside the service namespace. nil leaves
	// the browse namespace returning 404, which only makes sense in tests.
	Browse http.Handler

	// Version is reported by GET /version.
	Version handlers.VersionInfo

	// Reload, when non-nil, mounts POST /admin/reload guarded by
	// ReloadToken.
	Reload      handlers.ReloadFunc
	ReloadToken string

	// HealthEnabled mounts the /health routes. When false the paths fall
	// through to the browse namespace like any other key.
	HealthEnabled bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the public HTTP listener.
type Server struct {
	host    string
	port    int
	handler http.Handler
	srv     *http.Server
}

// New builds a server with the standard route table.
//
// Service endpoints (/health, /version, /public/, /admin/) are fixed
// routes; everything else falls through to the browse handler. Keys whose
// first path segment collides with a service route are not reachable over
// HTTP, matching the reserved-segment rule the browse classifier applies.
func New(host string, port int, opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusNotFound, middleware.CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusMethodNotAllowed,
			middleware.CodeMethodNotAllowed, "method not allowed")
	})

	if opts.HealthEnabled {
		r.Get("/health", handlers.HealthHandler)
		r.Get("/health/live", handlers.LivenessHandler)
		r.Get("/health/ready", handlers.ReadinessHandler)
	}
	r.Get("/version", handlers.VersionHandler(opts.Version))
	r.Get("/public/*", handlers.DocsHandler().ServeHTTP)

	if opts.Reload != nil {
		r.Post("/admin/reload", handlers.ReloadHandler(opts.ReloadToken, opts.Reload))
	}

	if opts.Browse != nil {
		r.Get("/", opts.Browse.ServeHTTP)
		r.Get("/*", opts.Browse.ServeHTTP)
		r.Head("/", opts.Browse.ServeHTTP)
		r.Head("/*", opts.Browse.ServeHTTP)
	}

	s := &Server{host: host, port: port, handler: r}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Handler returns the assembled route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	observability.Logger.Info("server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
