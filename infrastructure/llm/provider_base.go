package llm

import (
	"sync"
)

// DefaultMaxTokens caps completions when the caller sets no limit.
const DefaultMaxTokens = 2048

// ResponseFormatJSON is the "response_format" option value that asks the
// provider for a single JSON object.
const ResponseFormatJSON = "json_object"

// BaseProvider holds the model name behind a lock so SetModel is safe while
// requests are in flight.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the configured model.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral view of a completion options map.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64
	// System is sent through the provider's dedicated instruction channel.
	System string
	// JSONMode asks the provider to emit exactly one JSON object.
	JSONMode bool
	// Extra holds options the standard set does not cover.
	Extra map[string]any
}

// ParseRequestOptions reads the standard keys from opts. Invalid values
// fall back to defaults; unknown keys land in Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		JSONMode:  ExtractOptionalString(opts, "response_format", "", nil) == ResponseFormatJSON,
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p", "response_format":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// TokenCounter approximates token counts when a provider omits usage data.
type TokenCounter struct {
	CharactersPerToken float64
}

// NewTokenCounter returns a counter tuned for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens rounds up so that any non-empty text counts as at least
// one token.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := int(float64(len(text))/tc.CharactersPerToken + 0.999)
	return max(n, 1)
}

// GetTokenCount prefers the provider's count and estimates otherwise.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
