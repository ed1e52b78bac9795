package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-dossier/internal/ports"
)

// registerFake installs core under the provider name "fake" for the
// duration of the test.
func registerFake(t *testing.T, core CoreLLM) {
	t.Helper()
	RegisterProviderFactory("fake", func(cfg ClientConfig) (CoreLLM, error) {
		core.SetModel(cfg.Model)
		return core, nil
	})
	DefaultProviders["fake"] = ProviderDefaults{
		EnvVars:         []string{"FAKE_LLM_API_KEY"},
		CompletionModel: "fake-default",
	}
	t.Cleanup(func() {
		delete(providerFactories, "fake")
		delete(DefaultProviders, "fake")
	})
}

func TestNewClient(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient("cohere", ClientConfig{APIKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown completion provider")
	})

	t.Run("missing credential", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := NewClient("openai", ClientConfig{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrConfigNotFound)

		var cfgErr *ports.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "OPENAI_API_KEY", cfgErr.ConfigKey)
	})

	t.Run("credential from environment and default model", func(t *testing.T) {
		core := newFakeCore()
		registerFake(t, core)
		t.Setenv("FAKE_LLM_API_KEY", "from-env")

		client, err := NewClient("fake", ClientConfig{})
		require.NoError(t, err)
		assert.Equal(t, "fake-default", client.GetModel())
		assert.Equal(t, "fake", client.Provider())
	})

	t.Run("explicit model wins", func(t *testing.T) {
		core := newFakeCore()
		registerFake(t, core)

		client, err := NewClient("fake", ClientConfig{APIKey: "k", Model: "fake-large"})
		require.NoError(t, err)
		assert.Equal(t, "fake-large", client.GetModel())
	})

	t.Run("invalid base url", func(t *testing.T) {
		_, err := NewClient("openai", ClientConfig{APIKey: "k", BaseURL: "ftp://example.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheme")
	})
}

func TestClient_MiddlewareOrder(t *testing.T) {
	core := newFakeCore()
	registerFake(t, core)

	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &orderProbe{CoreLLM: next, name: name, order: &order}
		}
	}

	client, err := NewClient("fake", ClientConfig{
		APIKey:     "k",
		Middleware: []Middleware{tag("outer"), tag("middle"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

type orderProbe struct {
	CoreLLM
	name  string
	order *[]string
}

func (o *orderProbe) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	*o.order = append(*o.order, o.name)
	return o.CoreLLM.DoRequest(ctx, prompt, opts)
}

func TestClient_Complete(t *testing.T) {
	core := newFakeCore()
	registerFake(t, core)
	client, err := NewClient("fake", ClientConfig{APIKey: "k", Model: "m"})
	require.NoError(t, err)

	opts := map[string]any{"system": "be brief", "response_format": ResponseFormatJSON}
	text, in, out, err := client.CompleteWithUsage(context.Background(), "prompt", opts)
	require.NoError(t, err)
	assert.Equal(t, core.response, text)
	assert.Equal(t, 12, in)
	assert.Equal(t, 30, out)
	assert.Equal(t, opts, core.lastOpts)

	n, err := client.EstimateTokens("twelve chars")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClient_CompleteWrapsErrors(t *testing.T) {
	core := newFakeCore()
	core.always = NewProviderError("fake", ErrorTypeRateLimit, 429, "slow down", nil)
	registerFake(t, core)
	client, err := NewClient("fake", ClientConfig{APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", nil)
	require.Error(t, err)

	var llmErr *ports.LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, "m", llmErr.Model)
	assert.Equal(t, "Complete", llmErr.Operation)
	assert.True(t, llmErr.IsRetryable())
	assert.ErrorIs(t, err, ports.ErrRateLimited)
}
