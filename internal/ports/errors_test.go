package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLLMError tests the functionality of the LLMError error type.
// It covers error creation, message formatting, and retryable logic.
func TestLLMError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewLLMError("text-embedding-3-large", "Embed", ErrAuthenticationFailed)

		assert.Equal(t, "LLM error: model=text-embedding-3-large, operation=Embed, err=authentication failed", err.Error())
		assert.Equal(t, "text-embedding-3-large", err.Model)
		assert.Equal(t, "Embed", err.Operation)
		assert.True(t, errors.Is(err, ErrAuthenticationFailed))
	})

	t.Run("retryable errors", func(t *testing.T) {
		for _, baseErr := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			err := NewLLMError("test-model", "Complete", baseErr)
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}

		for _, baseErr := range []error{ErrInvalidResponse, ErrAuthenticationFailed} {
			err := NewLLMError("test-model", "Complete", baseErr)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", baseErr)
		}
	})
}

func TestIndexError(t *testing.T) {
	tests := []struct {
		name    string
		err     *IndexError
		wantMsg string
	}{
		{
			name:    "with status",
			err:     NewIndexError("efta-docs", "Search", 503, ErrServiceUnavailable),
			wantMsg: "index error: operation=Search, index=efta-docs, status=503, err=service unavailable",
		},
		{
			name:    "without status",
			err:     NewIndexError("efta-docs", "Stats", 0, ErrTimeout),
			wantMsg: "index error: operation=Stats, index=efta-docs, err=operation timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, errors.Is(tt.err, tt.err.Err))
		})
	}
}

func TestConfigError(t *testing.T) {
	err := MissingCredential("embedding.api_key")

	assert.Equal(t, "config error: key=embedding.api_key, err=configuration not found", err.Error())
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	var target *ConfigError
	require.True(t, errors.As(fmt.Errorf("build embedder: %w", err), &target))
	assert.Equal(t, "embedding.api_key", target.ConfigKey)
}
