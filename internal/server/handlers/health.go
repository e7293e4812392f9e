// Package handlers implements the public HTTP handlers: browsing, health,
// version, docs, and the admin reload endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/internal/server/middleware"
)

// HealthChecker probes one dependency.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// checkTimeout bounds each individual probe.
const checkTimeout = 2 * time.Second

// Health statuses.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
	statusDegraded  = "degraded"
)

// HealthResponse is the healthy-path body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthManager runs registered checkers and reports aggregate health.
type HealthManager struct {
	version string

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a manager reporting the given version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker adds a named dependency probe.
func (m *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// HealthHandler serves GET /health with the full check breakdown.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	overall := m.determineOverallStatus(checks)

	if overall == statusUnhealthy {
		writeHealthError(w, r, checks)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:    overall,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// LivenessHandler serves GET /health/live: the process is up.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": statusHealthy})
}

// ReadinessHandler serves GET /health/ready: dependencies answer.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.HealthHandler(w, r)
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(checkers))
	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checker.CheckHealth(checkCtx)
		cancel()

		switch {
		case err == nil:
			results[name] = statusHealthy
		case errors.Is(err, context.DeadlineExceeded):
			results[name] = statusTimeout
		default:
			results[name] = statusUnhealthy
			observability.Logger.Warn("health check failed",
				zap.String("check", name),
				zap.Error(err),
			)
		}
	}
	return results
}

// determineOverallStatus folds per-check results: any unhealthy check makes
// the whole service unhealthy; timeouts alone only degrade it.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := statusHealthy
	for _, status := range checks {
		switch status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusTimeout:
			overall = statusDegraded
		}
	}
	return overall
}

func writeHealthError(w http.ResponseWriter, r *http.Request, checks map[string]string) {
	checkDetails := make(map[string]any, len(checks))
	for name, status := range checks {
		checkDetails[name] = status
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(middleware.ErrorResponse{
		Error: middleware.ErrorDetail{
			Code:      middleware.CodeServiceUnavailable,
			Message:   "one or more health checks failed",
			RequestID: middleware.GetRequestID(r.Context()),
			Details:   map[string]any{"checks": checkDetails},
		},
	})
}

var globalHealthManager *HealthManager

// InitHealthManager creates the process-wide health manager.
func InitHealthManager(version string) *HealthManager {
	globalHealthManager = NewHealthManager(version)
	return globalHealthManager
}

// GetHealthManager returns the process-wide manager, nil before init.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

// HealthHandler serves /health using the global manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		http.Error(w, "health manager not initialized", http.StatusInternalServerError)
		return
	}
	globalHealthManager.HealthHandler(w, r)
}

// LivenessHandler serves /health/live using the global manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		http.Error(w, "health manager not initialized", http.StatusInternalServerError)
		return
	}
	globalHealthManager.LivenessHandler(w, r)
}

// ReadinessHandler serves /health/ready using the global manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		http.Error(w, "health manager not initialized", http.StatusInternalServerError)
		return
	}
	globalHealthManager.ReadinessHandler(w, r)
}
