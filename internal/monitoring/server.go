package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
)

// Server is the operational listener: Prometheus scrape endpoint plus
// liveness and readiness probes, separate from public traffic.
type Server struct {
	srv   *http.Server
	ready func() bool
}

// NewServer creates the ops listener on port. ready reports readiness for
// the /health/ready probe; nil means always ready.
func NewServer(port int, ready func() bool) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s := &Server{ready: ready}
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	observability.Logger.Info("metrics server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
