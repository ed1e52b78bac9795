package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ahrav/go-dossier/infrastructure/ratelimit"
	"github.com/ahrav/go-dossier/internal/domain"
)

const (
	msgRateLimited    = "Rate limit exceeded. Please try again later."
	msgInvalidRequest = "Invalid request format"
	msgInternal       = "Internal server error"
	msgStatsFailed    = "Failed to get index stats"

	// defaultRetryAfter is sent when a denial carries no usable delay.
	defaultRetryAfter = 60
)

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteRateLimited writes a 429 with a Retry-After header.
func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds <= 0 {
		retryAfterSeconds = defaultRetryAfter
	}
	w.Header().Set("Retry-After", ratelimit.RetryAfterHeader(retryAfterSeconds))
	WriteJSON(w, ErrorResponse{Error: msgRateLimited}, http.StatusTooManyRequests)
}

// WriteError maps err onto a status code. Only validation details reach
// the client; everything else is logged and answered generically.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, ErrorResponse{Error: msgInvalidRequest, Details: verr.Errors}, http.StatusBadRequest)
		return
	}

	var denied *domain.AdmissionDeniedError
	if errors.As(err, &denied) {
		WriteRateLimited(w, denied.RetryAfterSeconds)
		return
	}

	reqID := GetRequestID(r.Context())
	logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", reqID)
	WriteJSON(w, ErrorResponse{Error: msgInternal, RequestID: reqID}, http.StatusInternalServerError)
}

// BadRequest writes a 400 with the given details.
func BadRequest(w http.ResponseWriter, details ...string) {
	WriteJSON(w, ErrorResponse{Error: msgInvalidRequest, Details: details}, http.StatusBadRequest)
}
