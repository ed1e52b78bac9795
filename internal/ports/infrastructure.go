package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-dossier/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	// Implementations make a single attempt; callers decide what a failure means.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "system": string (system instruction)
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "response_format": string ("json_object" requests JSON mode)
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	// This is useful for logging and debugging purposes.
	GetModel() string
}

// Embedder converts text into a fixed-length vector.
// Implementations fail with a ConfigError when credentials are absent.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the embedding model identifier.
	Model() string
}

// VectorIndex is the narrow boundary to the similarity search backend.
type VectorIndex interface {
	// Search returns up to topK candidates ordered by descending relevance.
	// An empty namespace selects the index's default partition.
	Search(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Candidate, error)

	// Stats describes the index for the stats passthrough.
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// WindowEntry is the per-key state of a fixed-window rate limiter.
type WindowEntry struct {
	Count   int
	ResetAt time.Time
}

// RateLimitStore holds fixed-window counters keyed by client identity.
// Implementations need not be atomic across Get and Set; the limiter
// serializes access per key.
type RateLimitStore interface {
	// Get returns the entry for key and whether it exists.
	Get(ctx context.Context, key string) (WindowEntry, bool, error)

	// Set stores the entry for key.
	Set(ctx context.Context, key string, entry WindowEntry) error

	// Sweep removes entries whose window ended before now and reports how
	// many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len reports how many keys are currently tracked.
	Len(ctx context.Context) (int, error)
}

// AdmissionController decides whether a request may enter the pipeline.
type AdmissionController interface {
	Check(ctx context.Context, clientKey string) (domain.Admission, error)
}

// Metric names shared by the collectors and the components that report to
// them.
const (
	// MetricQueryTotal counts finished queries, labelled by "outcome".
	MetricQueryTotal = "dossier_query_total"
	// MetricQueryStage times pipeline stages, labelled by "stage".
	MetricQueryStage = "dossier_query_stage_duration_seconds"
	// MetricRateLimitDecisions counts admission decisions, labelled by
	// "decision".
	MetricRateLimitDecisions = "dossier_rate_limit_decisions_total"
	// MetricRateLimitKeys reports how many client keys the limiter tracks.
	MetricRateLimitKeys = "dossier_rate_limit_tracked_keys"
	// MetricLLMRequests counts provider calls, labelled by "provider",
	// "model", "operation" and "status".
	MetricLLMRequests = "dossier_llm_requests_total"
	// MetricLLMLatency observes provider call latency with the same labels
	// as MetricLLMRequests.
	MetricLLMLatency = "dossier_llm_latency_seconds"
	// MetricLLMTokens counts tokens, labelled by "provider", "model" and
	// "token_type".
	MetricLLMTokens = "dossier_llm_tokens_total"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// ConfigLoader defines the interface for loading configuration.
// Implementations could read from files, environment variables,
// remote configuration services, or a combination of sources.
type ConfigLoader interface {
	// Load reads configuration from the underlying source.
	// It should populate the provided configuration struct.
	// The config parameter should be a pointer to a struct.
	//
	// Example:
	//
	//	var config application.Config
	//	err := loader.Load(ctx, &config)
	Load(ctx context.Context, config any) error
}
