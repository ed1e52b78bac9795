package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-dossier/internal/application"
	"github.com/ahrav/go-dossier/internal/domain"
)

// maxRequestBody bounds the query payload; questions are capped far below.
const maxRequestBody = 64 << 10

// ShareResponse is returned by GET /api/share.
type ShareResponse struct {
	Question string `json:"question"`
	URL      string `json:"url,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleQuery admits the caller, decodes the question and runs the pipeline.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.opts.Limiter != nil {
		key := ClientKey(r, s.opts.TrustProxyHeaders)
		adm, err := s.opts.Limiter.Check(r.Context(), key)
		switch {
		case err != nil:
			// Admission state unavailable: serve the request rather than fail it.
			s.logger.Warn("rate limit check failed", "error", err, "key", key)
		case !adm.Allowed:
			WriteError(w, r, s.logger, &domain.AdmissionDeniedError{Key: key, RetryAfterSeconds: adm.RetryAfterSeconds})
			return
		}
	}

	var req domain.QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		BadRequest(w, decodeDetail(err))
		return
	}

	resp, err := s.queries.Ask(r.Context(), req.Question)
	if err != nil {
		WriteError(w, r, s.logger, err)
		return
	}
	WriteJSON(w, resp, http.StatusOK)
}

func decodeDetail(err error) string {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return "request body too large"
	case errors.Is(err, io.EOF):
		return "request body is empty"
	default:
		return "request body must be a JSON object with a question field"
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err, "request_id", GetRequestID(r.Context()))
		WriteJSON(w, ErrorResponse{Error: msgStatsFailed, RequestID: GetRequestID(r.Context())},
			http.StatusInternalServerError)
		return
	}
	WriteJSON(w, stats, http.StatusOK)
}

// handleShare builds a share link from ?question= or reads one back from
// ?q=.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if question := query.Get("question"); strings.TrimSpace(question) != "" {
		WriteJSON(w, ShareResponse{
			Question: question,
			URL:      application.ShareURL(s.opts.PublicURL, question),
		}, http.StatusOK)
		return
	}

	if encoded := r.URL.RawQuery; strings.Contains(encoded, application.ShareParam+"=") {
		if question, ok := application.ParseShareURL("?" + encoded); ok {
			WriteJSON(w, ShareResponse{Question: question}, http.StatusOK)
			return
		}
	}

	BadRequest(w, "question parameter is required")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, HealthResponse{Status: "ok"}, http.StatusOK)
}
