// Package llm adapts completion and embedding providers to the ports used by
// the query pipeline. Providers implement the small CoreLLM interface and are
// wrapped by composable middleware for tracing, metrics, circuit breaking,
// rate limiting and timeouts. Embedders are built separately through
// NewEmbedder and share the same credential resolution.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-dossier/internal/ports"
)

// Compile-time check that Client satisfies the port.
var _ ports.LLMClient = (*Client)(nil)

// CoreLLM is the minimal contract a completion provider implements.
// Middleware wraps CoreLLM values, so anything cross-cutting lives outside
// the provider.
type CoreLLM interface {
	// DoRequest performs one completion and reports token usage.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// ClientConfig holds everything needed to build a completion client.
type ClientConfig struct {
	// APIKey authenticates requests. When empty it is resolved from the
	// provider's conventional environment variables.
	APIKey string

	// Model selects the model. When empty the provider default is used.
	Model string

	// BaseURL overrides the provider endpoint. Leave empty for the default.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero keeps the SDK default.
	Timeout time.Duration

	// Middleware is applied so that the first element is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped CoreLLM.
type Client struct {
	provider string
	core     CoreLLM
	counter  *TokenCounter
}

// NewClient builds a client for providerType. A missing credential is
// reported as a ports.ConfigError wrapping ports.ErrConfigNotFound.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown completion provider: %q", providerType)
	}

	apiKey, err := ResolveAPIKey(providerType, config.APIKey)
	if err != nil {
		return nil, err
	}
	config.APIKey = apiKey

	if config.Model == "" {
		config.Model = DefaultCompletionModel(providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{
		provider: providerType,
		core:     core,
		counter:  NewTokenCounter(),
	}, nil
}

// Complete sends prompt to the provider and returns the generated text.
// Provider failures are returned as *ports.LLMError.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage is Complete with token usage attached.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	response, tokensIn, tokensOut, err := c.core.DoRequest(ctx, prompt, options)
	if err != nil {
		var llmErr *ports.LLMError
		if errors.As(err, &llmErr) {
			return "", 0, 0, err
		}
		return "", 0, 0, ports.NewLLMError(c.core.GetModel(), "Complete", err)
	}
	return response, tokensIn, tokensOut, nil
}

// EstimateTokens approximates the token count of text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.counter.EstimateTokens(text), nil
}

// GetModel returns the model of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// Provider returns the provider name the client was built for.
func (c *Client) Provider() string { return c.provider }

// ProviderFactory creates a CoreLLM from configuration. The APIKey and Model
// fields are already resolved when a factory is called.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory makes a completion provider available to NewClient.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
