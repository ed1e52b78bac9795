package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-dossier/internal/ports"
)

var _ ports.Embedder = (*Embedder)(nil)

// EmbedderConfig configures NewEmbedder.
type EmbedderConfig struct {
	// APIKey falls back to the provider's environment variables.
	APIKey string
	// Model falls back to the provider's default embedding model.
	Model   string
	BaseURL string
	// Dimensions requests a shortened vector when the model supports it.
	// Zero keeps the model's native size.
	Dimensions int
	Timeout    time.Duration
	// Metrics is optional.
	Metrics ports.MetricsCollector
}

// embeddingBackend is the provider-specific half of an Embedder.
type embeddingBackend interface {
	embed(ctx context.Context, model, text string) (vector []float32, tokens int, err error)
}

type embedderFactory func(EmbedderConfig) (embeddingBackend, error)

var embedderFactories = map[string]embedderFactory{
	"openai": newOpenAIEmbedding,
	"google": newGoogleEmbedding,
}

// Embedder implements ports.Embedder. Every call is traced and counted on
// the shared LLM metrics with operation "embed".
type Embedder struct {
	provider string
	model    string
	backend  embeddingBackend
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
}

// NewEmbedder builds an embedder for provider.
func NewEmbedder(provider string, cfg EmbedderConfig) (*Embedder, error) {
	factory, ok := embedderFactories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %q", provider)
	}

	apiKey, err := ResolveAPIKey(provider, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = apiKey
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel(provider)
	}

	backend, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", provider, err)
	}

	return &Embedder{
		provider: provider,
		model:    cfg.Model,
		backend:  backend,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("github.com/ahrav/go-dossier/infrastructure/llm"),
	}, nil
}

// Embed returns the vector for text. Failures are returned as
// *ports.LLMError.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := e.tracer.Start(ctx, "llm.embed", trace.WithAttributes(
		attribute.String("llm.provider", e.provider),
		attribute.String("llm.model", e.model),
		attribute.Int("llm.input.length", len(text)),
	))
	defer span.End()

	start := time.Now()
	vector, tokens, err := e.backend.embed(ctx, e.model, text)
	if err == nil && len(vector) == 0 {
		err = NewProviderError(e.provider, ErrorTypeServerError, 0, "", ErrNoEmbedding)
	}
	e.record(time.Since(start), tokens, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, ports.NewLLMError(e.model, "Embed", err)
	}

	span.SetAttributes(attribute.Int("llm.embedding.dimensions", len(vector)))
	span.SetStatus(codes.Ok, "")
	return vector, nil
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string { return e.model }

func (e *Embedder) record(elapsed time.Duration, tokens int, err error) {
	if e.metrics == nil {
		return
	}
	labels := map[string]string{
		"provider":  e.provider,
		"model":     e.model,
		"operation": "embed",
		"status":    statusLabel(err),
	}
	e.metrics.RecordHistogram(ports.MetricLLMLatency, elapsed.Seconds(), labels)
	e.metrics.RecordCounter(ports.MetricLLMRequests, 1, labels)
	if err == nil && tokens > 0 {
		e.metrics.RecordCounter(ports.MetricLLMTokens, float64(tokens), map[string]string{
			"provider":   e.provider,
			"model":      e.model,
			"token_type": "input",
		})
	}
}
