package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-dossier/internal/ports"
)

// DefaultSynthesisJSON is a well-formed synthesis response that satisfies
// the four-field contract.
const DefaultSynthesisJSON = `{"summary_markdown":"The documents describe the requested event.",` +
	`"key_findings":["A memo records the meeting date."],` +
	`"caveats":["OCR quality may affect dates and names."],` +
	`"related_questions":["Who attended the meeting?","Which documents mention the location?","When was the memo filed?"]}`

// MockLLMClient implements the LLMClient interface with deterministic responses
// for consistent testing.
// Responses are chosen by substring match against the prompt; every call is
// recorded so tests can assert how often, and with which options, the model
// was invoked.
type MockLLMClient struct {
	mu sync.Mutex
	// model is the mock model identifier.
	model string
	// responses maps prompt patterns to pre-defined responses, checked in
	// insertion order.
	patterns  []string
	responses map[string]string
	// err, when set, is returned from every Complete call.
	err   error
	calls []MockCall
}

// MockCall captures one Complete invocation.
type MockCall struct {
	Prompt  string
	Options map[string]any
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is used to match against prompts (substring matching).
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
}

// NewMockLLMClient creates a MockLLMClient whose default response is
// DefaultSynthesisJSON.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:     model,
		responses: map[string]string{"": DefaultSynthesisJSON},
	}
}

// AddResponse adds a new response pattern to the mock client.
// An empty Pattern replaces the default response.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.responses[response.Pattern]; !exists && response.Pattern != "" {
		m.patterns = append(m.patterns, response.Pattern)
	}
	m.responses[response.Pattern] = response.Response
}

// SetError makes every subsequent Complete call fail with err.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements the LLMClient.Complete method.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Prompt: prompt, Options: options})
	if m.err != nil {
		return "", m.err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	for _, p := range m.patterns {
		if strings.Contains(prompt, p) {
			return m.responses[p], nil
		}
	}
	return m.responses[""], nil
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel implements the LLMClient.GetModel method returning the mock model identifier.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// CallCount reports how many times Complete was invoked.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded invocations.
func (m *MockLLMClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Reset clears recorded calls, custom responses and any injected error.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = nil
	m.responses = map[string]string{"": DefaultSynthesisJSON}
	m.err = nil
	m.calls = nil
}

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*MockLLMClient)(nil)
