package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/monitoring"
	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/internal/server/middleware"
	"github.com/3leaps/bucketd/pkg/browse"
	"github.com/3leaps/bucketd/pkg/provider"
)

// BrowseHandler is the catch-all handler for the public namespace: every
// path that is not a service endpoint is a listing, an object, a redirect,
// or a 404.
type BrowseHandler struct {
	router    *browse.Router
	lister    *browse.Lister
	deliverer *browse.Deliverer
}

// NewBrowseHandler wires the browsing services into one HTTP handler.
func NewBrowseHandler(router *browse.Router, lister *browse.Lister, deliverer *browse.Deliverer) *BrowseHandler {
	return &BrowseHandler{router: router, lister: lister, deliverer: deliverer}
}

// Metric labels for request classification.
const (
	kindList     = "list"
	kindObject   = "object"
	kindRedirect = "redirect"
	kindNotFound = "not_found"
)

func (h *BrowseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	decision, err := h.router.Classify(ctx, r.URL.Path, r.URL.Query())
	if err != nil {
		h.storeUnavailable(w, r, err)
		h.observe(kindObject, http.StatusServiceUnavailable, start)
		return
	}

	switch decision.Kind {
	case browse.KindRedirect:
		http.Redirect(w, r, decision.Location, http.StatusFound)
		h.observe(kindRedirect, http.StatusFound, start)

	case browse.KindNotFound:
		middleware.WriteError(w, r, http.StatusNotFound, middleware.CodeNotFound, "not found")
		h.observe(kindNotFound, http.StatusNotFound, start)

	case browse.KindListPrefix:
		h.serveListing(w, r, decision.Prefix, start)

	case browse.KindServeObject:
		h.serveObject(w, r, decision, start)
	}
}

func (h *BrowseHandler) serveListing(w http.ResponseWriter, r *http.Request, prefix string, start time.Time) {
	listing, err := h.lister.List(r.Context(), prefix)
	if err != nil {
		if provider.IsNotFound(err) {
			middleware.WriteError(w, r, http.StatusNotFound, middleware.CodeNotFound, "not found")
			h.observe(kindList, http.StatusNotFound, start)
			return
		}
		h.storeUnavailable(w, r, err)
		h.observe(kindList, http.StatusServiceUnavailable, start)
		return
	}

	if wantsJSON(r) {
		writeListingJSON(w, listing)
	} else {
		renderListingPage(w, listing)
	}
	h.observe(kindList, http.StatusOK, start)
}

func (h *BrowseHandler) serveObject(w http.ResponseWriter, r *http.Request, decision browse.Decision, start time.Time) {
	res, err := h.deliverer.Deliver(r.Context(), decision.Key, decision.ViewMode)
	if err != nil {
		if provider.IsNotFound(err) {
			middleware.WriteError(w, r, http.StatusNotFound, middleware.CodeNotFound, "not found")
			h.observe(kindObject, http.StatusNotFound, start)
			return
		}
		h.storeUnavailable(w, r, err)
		h.observe(kindObject, http.StatusServiceUnavailable, start)
		return
	}

	if res.Inline {
		defer func() { _ = res.Body.Close() }()
		w.Header().Set("Content-Type", res.ContentType)
		if res.ContentLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
		}
		if _, err := io.Copy(w, res.Body); err != nil {
			observability.Logger.Warn("inline body copy interrupted",
				zap.String("key", decision.Key),
				zap.Error(err),
			)
		}
		h.observe(kindObject, http.StatusOK, start)
		return
	}

	monitoring.SignedURLsIssued.Inc()
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
	h.observe(kindObject, http.StatusFound, start)
}

func (h *BrowseHandler) storeUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	observability.Logger.Error("store unavailable",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err),
	)
	middleware.WriteError(w, r, http.StatusServiceUnavailable,
		middleware.CodeServiceUnavailable, "object store unavailable")
}

func (h *BrowseHandler) observe(kind string, code int, start time.Time) {
	monitoring.RequestsTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
	monitoring.RequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// wantsJSON reports whether the client asked for a JSON listing, either via
// ?format=json or an Accept header that prefers it.
func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
