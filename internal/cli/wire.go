package cli

import (
	"fmt"
	"log/slog"

	"github.com/ahrav/go-dossier/infrastructure/llm"
	"github.com/ahrav/go-dossier/infrastructure/ratelimit"
	"github.com/ahrav/go-dossier/infrastructure/vectorindex"
	"github.com/ahrav/go-dossier/internal/application"
	"github.com/ahrav/go-dossier/internal/ports"
)

// buildQueryService constructs every collaborator the pipeline needs. A
// missing credential surfaces here as a ports.ConfigError. metrics may be
// nil.
func buildQueryService(cfg application.Config, logger *slog.Logger, metrics ports.MetricsCollector) (*application.QueryService, error) {
	embedder, err := llm.NewEmbedder(cfg.Embedding.Provider, llm.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	completion, err := buildCompletionClient(cfg.Synthesis, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	index, err := buildVectorIndex(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	synth := application.NewSynthesizer(completion, application.SynthesisOptions{
		Temperature: cfg.Synthesis.Temperature,
		MaxTokens:   cfg.Synthesis.MaxTokens,
	}, logger)

	return application.NewQueryService(application.QueryServiceConfig{
		Embedder:    embedder,
		Index:       index,
		Synthesizer: synth,
		Scorer:      application.NewConfidenceScorer(cfg.Confidence),
		TopK:        cfg.Retrieval.TopK,
		Namespace:   cfg.Retrieval.Namespace,
		Metrics:     metrics,
		Logger:      logger,
	})
}

func buildCompletionClient(cfg application.SynthesisConfig, logger *slog.Logger, metrics ports.MetricsCollector) (*llm.Client, error) {
	resilience := llm.ResilienceOptions{
		Provider:       cfg.Provider,
		Timeout:        cfg.Timeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxFailures:    cfg.CircuitBreaker.MaxFailures,
		Cooldown:       cfg.CircuitBreaker.Cooldown,
		Metrics:        metrics,
		Logger:         logger,
	}
	return llm.NewClient(cfg.Provider, llm.ClientConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		Middleware: resilience.Middleware(),
	})
}

func buildVectorIndex(cfg application.Config, logger *slog.Logger) (ports.VectorIndex, error) {
	vc := cfg.VectorIndex
	logger = logger.With("vector_index", vc.Provider)

	var (
		index ports.VectorIndex
		err   error
	)
	switch vc.Provider {
	case "pinecone":
		index, err = vectorindex.NewPinecone(vectorindex.PineconeConfig{
			APIKey:     vc.Pinecone.APIKey,
			IndexName:  vc.Pinecone.IndexName,
			Host:       vc.Pinecone.Host,
			APIVersion: vc.Pinecone.APIVersion,
			Namespace:  cfg.Retrieval.Namespace,
			Timeout:    vc.Timeout,
			Logger:     logger,
		})
	case "qdrant":
		index, err = vectorindex.NewQdrant(vectorindex.QdrantConfig{
			URL:        vc.Qdrant.URL,
			APIKey:     vc.Qdrant.APIKey,
			Collection: vc.Qdrant.Collection,
			Namespace:  cfg.Retrieval.Namespace,
			Timeout:    vc.Timeout,
			Logger:     logger,
		})
	case "memory":
		index, err = vectorindex.LoadMemory(vc.Memory.Path, cfg.Retrieval.Namespace)
	default:
		return nil, fmt.Errorf("unknown vector index provider: %q", vc.Provider)
	}
	if err != nil {
		return nil, err
	}
	return index, nil
}

// buildLimiter returns nil when admission control is disabled.
func buildLimiter(cfg application.RateLimitConfig, logger *slog.Logger, metrics ports.MetricsCollector) ports.AdmissionController {
	if !cfg.Enabled {
		return nil
	}

	var store ports.RateLimitStore
	switch cfg.Store {
	case "cache":
		store = ratelimit.NewCacheStore(cfg.Window, nil)
	default:
		store = ratelimit.NewMemoryStore()
	}

	return ratelimit.NewFixedWindow(store, ratelimit.Config{
		Window:         cfg.Window,
		MaxRequests:    cfg.MaxRequests,
		SweepThreshold: cfg.SweepThreshold,
		Metrics:        metrics,
		Logger:         logger.With("component", "ratelimit"),
	})
}
