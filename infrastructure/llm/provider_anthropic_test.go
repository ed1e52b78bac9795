package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-dossier/internal/ports"
)

func anthropicMessageBody(blocks []string, in, out int) map[string]any {
	content := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, map[string]any{"type": "text", "text": b})
	}
	return map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-3-5-haiku-latest",
		"content":       content,
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": in, "output_tokens": out},
	}
}

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) CoreLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newAnthropicProvider(ClientConfig{
		APIKey:  "test-key",
		Model:   "claude-3-5-haiku-latest",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return provider
}

func TestAnthropicProvider_DoRequest(t *testing.T) {
	var body map[string]any
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropicMessageBody([]string{`{"summary_markdown":`, `"x"}`}, 200, 50))
	})

	text, in, out, err := provider.DoRequest(context.Background(), "Question: who?", map[string]any{
		"system":          "answer from sources",
		"temperature":     0.3,
		"response_format": ResponseFormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary_markdown":"x"}`, text, "text blocks are concatenated")
	assert.Equal(t, 200, in)
	assert.Equal(t, 50, out)

	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.Equal(t, float64(DefaultMaxTokens), body["max_tokens"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)

	system := body["system"].([]any)
	require.Len(t, system, 1)
	systemText := system[0].(map[string]any)["text"].(string)
	assert.True(t, strings.HasPrefix(systemText, "answer from sources"))
	assert.Contains(t, systemText, "single JSON object")
}

func TestAnthropicProvider_ClampsTemperature(t *testing.T) {
	var body map[string]any
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropicMessageBody([]string{"ok"}, 1, 1))
	})

	_, _, _, err := provider.DoRequest(context.Background(), "p", map[string]any{"temperature": 1.7})
	require.NoError(t, err)
	assert.Equal(t, 1.0, body["temperature"])
	assert.NotContains(t, body, "system")
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		errType  string
		wantType ErrorType
		sentinel error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, errType: "authentication_error", wantType: ErrorTypeAuthentication, sentinel: ports.ErrAuthenticationFailed},
		{name: "rate limited", status: http.StatusTooManyRequests, errType: "rate_limit_error", wantType: ErrorTypeRateLimit, sentinel: ports.ErrRateLimited},
		{name: "overloaded", status: 529, errType: "overloaded_error", wantType: ErrorTypeServerError, sentinel: ports.ErrServiceUnavailable},
		{name: "bad request", status: http.StatusBadRequest, errType: "invalid_request_error", wantType: ErrorTypeBadRequest, sentinel: ports.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type":  "error",
					"error": map[string]any{"type": tt.errType, "message": "nope"},
				})
			})

			_, _, _, err := provider.DoRequest(context.Background(), "p", nil)
			require.Error(t, err)

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantType, perr.Type)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, 1, calls, "the SDK must not retry")
		})
	}
}

func TestAnthropicProvider_EmptyReply(t *testing.T) {
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropicMessageBody(nil, 5, 0))
	})

	_, _, _, err := provider.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
