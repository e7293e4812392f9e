package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
)

// Error codes used in response envelopes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeUnauthorized       = "UNAUTHORIZED"
)

// ErrorResponse is the JSON error envelope returned for every non-2xx
// outcome. All error paths share this shape, so a missing object and a
// reserved legacy route are indistinguishable to callers.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the envelope payload.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError writes the standard error envelope, attaching the request ID
// from the request context.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorResponse(w, ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	}, status)
}

func writeErrorResponse(w http.ResponseWriter, detail ErrorDetail, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: detail}); err != nil {
		observability.Logger.Error("failed to encode error response", zap.Error(err))
	}
}

// Recovery converts handler panics into a 500 envelope so one bad request
// never takes the process down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				observability.Logger.Error("panic in request handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
				)
				writeErrorResponse(w, ErrorDetail{
					Code:      CodeInternalError,
					Message:   fmt.Sprintf("panic: %v", rec),
					RequestID: requestID,
				}, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery kept for middleware chains that
// name the concern rather than the mechanism.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}
