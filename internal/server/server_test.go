package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketd/internal/server/handlers"
	"github.com/3leaps/bucketd/internal/server/middleware"
	"github.com/3leaps/bucketd/pkg/browse"
	"github.com/3leaps/bucketd/pkg/provider/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Browse == nil {
		mem := memory.New()
		mem.Put("readme.txt", []byte("hello"), time.Now())
		router := browse.NewRouter(browse.NewExistenceChecker(mem, 0))
		opts.Browse = handlers.NewBrowseHandler(
			router,
			browse.NewLister(mem, nil),
			browse.NewDeliverer(mem),
		)
	}
	return New("127.0.0.1", 0, opts)
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, middleware.CodeNotFound, body.Error.Code)
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port, Options{})
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, middleware.CodeMethodNotAllowed, body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	handlers.InitHealthManager("test")

	srv := newTestServer(t, Options{
		Version:       handlers.VersionInfo{Version: "test", Commit: "abc", BuildDate: "today"},
		HealthEnabled: true,
	})

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/version", http.StatusOK},
		{"GET", "/public/index.html", http.StatusOK},
		{"GET", "/readme.txt", http.StatusFound},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, ep.want, rec.Code)
		})
	}
}

func TestServer_HealthRoutesDisabled(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Without the health routes the path is just another missing key.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ReloadEndpoint(t *testing.T) {
	reloaded := false
	srv := newTestServer(t, Options{
		Reload:      func() error { reloaded = true; return nil },
		ReloadToken: "secret",
	})

	t.Run("rejects missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, reloaded)
	})

	t.Run("accepts bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, reloaded)
	})
}

func TestServer_ReloadNotMountedWithoutFunc(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Falls through to method-not-allowed on the browse namespace.
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServer_RequestIDOnResponses(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
