package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ahrav/go-dossier/internal/ports"
)

// ProviderDefaults describes how a provider is configured when the caller
// leaves fields empty.
type ProviderDefaults struct {
	// EnvVars lists the environment variables consulted for the API key, in
	// order.
	EnvVars []string
	// CompletionModel is used when no completion model is configured.
	CompletionModel string
	// EmbeddingModel is used when no embedding model is configured. Empty
	// means the provider offers no embeddings.
	EmbeddingModel string
}

// DefaultProviders lists the supported providers.
var DefaultProviders = map[string]ProviderDefaults{
	"openai": {
		EnvVars:         []string{"OPENAI_API_KEY"},
		CompletionModel: "gpt-4o-mini",
		EmbeddingModel:  "text-embedding-3-large",
	},
	"anthropic": {
		EnvVars:         []string{"ANTHROPIC_API_KEY"},
		CompletionModel: "claude-3-5-haiku-latest",
	},
	"google": {
		EnvVars:         []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
		CompletionModel: "gemini-2.0-flash",
		EmbeddingModel:  "text-embedding-004",
	},
}

// ResolveAPIKey returns explicit when set and otherwise the first non-empty
// environment variable registered for provider.
func ResolveAPIKey(provider, explicit string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}

	defaults, ok := DefaultProviders[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider: %q", provider)
	}
	for _, name := range defaults.EnvVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key, nil
		}
	}
	return "", ports.MissingCredential(strings.Join(defaults.EnvVars, "|"))
}

// DefaultCompletionModel returns the completion model used for provider
// when none is configured.
func DefaultCompletionModel(provider string) string {
	return DefaultProviders[provider].CompletionModel
}

// DefaultEmbeddingModel returns the embedding model used for provider when
// none is configured.
func DefaultEmbeddingModel(provider string) string {
	return DefaultProviders[provider].EmbeddingModel
}
