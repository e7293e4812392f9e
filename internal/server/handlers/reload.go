package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/internal/server/middleware"
)

// ReloadFunc swaps in the latest published statistics snapshot.
type ReloadFunc func() error

// ReloadHandler serves POST /admin/reload: an operator alternative to
// SIGHUP for deployments where signaling the process is awkward.
//
// The endpoint requires a bearer token; with an empty token it always
// refuses, so it cannot be enabled by accident.
func ReloadHandler(token string, reload ReloadFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !tokenMatches(r, token) {
			middleware.WriteError(w, r, http.StatusUnauthorized,
				middleware.CodeUnauthorized, "unauthorized")
			return
		}

		if err := reload(); err != nil {
			observability.Logger.Error("snapshot reload failed",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err),
			)
			middleware.WriteError(w, r, http.StatusInternalServerError,
				middleware.CodeInternalError, "snapshot reload failed")
			return
		}

		observability.Logger.Info("snapshot reloaded",
			zap.String("trigger", "admin"),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"})
	}
}

func tokenMatches(r *http.Request, token string) bool {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) == 1
}
