package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-dossier/internal/logging"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err, "generated ids are uuids")
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied", seen)
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, 0, "text")
	h := RequestIDMiddleware()(RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, 0, "json")
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/query", nil))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/api/query"`)
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "first forwarded entry",
			trust:      true,
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1", "X-Real-IP": "198.51.100.9"},
			remoteAddr: "10.0.0.2:5000",
			want:       "203.0.113.7",
		},
		{
			name:       "real ip",
			trust:      true,
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			remoteAddr: "10.0.0.2:5000",
			want:       "198.51.100.9",
		},
		{
			name:       "headers ignored without trust",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remoteAddr: "10.0.0.2:5000",
			want:       "10.0.0.2",
		},
		{
			name:       "remote host",
			trust:      true,
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{name: "unknown", trust: true, remoteAddr: "", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientKey(req, tt.trust))
		})
	}
}

func TestWriteRateLimited_DefaultRetry(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRateLimited(rec, 0)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
