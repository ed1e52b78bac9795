package application

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-dossier/internal/domain"
)

// Config is the complete service configuration. It is populated by the CLI
// from defaults, an optional YAML file, environment variables and flags, in
// increasing order of precedence.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	Synthesis   SynthesisConfig   `yaml:"synthesis" mapstructure:"synthesis"`
	VectorIndex VectorIndexConfig `yaml:"vector_index" mapstructure:"vector_index"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Confidence  Calibration       `yaml:"confidence" mapstructure:"confidence"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`
	// PublicURL is the base used when building share links. Empty produces
	// relative links.
	PublicURL  string `yaml:"public_url" mapstructure:"public_url" validate:"omitempty,url"`
	CORSOrigin string `yaml:"cors_origin" mapstructure:"cors_origin"`
	// TrustProxyHeaders derives the client key from X-Forwarded-For and
	// X-Real-IP. Disable when the service is reachable without a proxy.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// RetrievalConfig controls the vector search step.
type RetrievalConfig struct {
	TopK      int    `yaml:"top_k" mapstructure:"top_k" validate:"min=1,max=100"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=openai google"`
	Model    string `yaml:"model" mapstructure:"model" validate:"required"`
	// APIKey falls back to the provider's conventional environment variable.
	APIKey     string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	Dimensions int           `yaml:"dimensions" mapstructure:"dimensions" validate:"min=0"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// SynthesisConfig selects the completion provider and its resilience
// middleware.
type SynthesisConfig struct {
	Provider       string               `yaml:"provider" mapstructure:"provider" validate:"oneof=openai anthropic google"`
	Model          string               `yaml:"model" mapstructure:"model" validate:"required"`
	APIKey         string               `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string               `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	Temperature    float64              `yaml:"temperature" mapstructure:"temperature" validate:"min=0,max=1"`
	MaxTokens      int                  `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1,max=32768"`
	Timeout        time.Duration        `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	RateLimitRPS   float64              `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst int                  `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst" validate:"min=0"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig opens the breaker after MaxFailures consecutive
// failures and probes again after Cooldown.
type CircuitBreakerConfig struct {
	MaxFailures int           `yaml:"max_failures" mapstructure:"max_failures" validate:"min=0"`
	Cooldown    time.Duration `yaml:"cooldown" mapstructure:"cooldown" validate:"gte=0"`
}

// VectorIndexConfig selects the similarity search backend.
type VectorIndexConfig struct {
	Provider string         `yaml:"provider" mapstructure:"provider" validate:"oneof=pinecone qdrant memory"`
	Timeout  time.Duration  `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Pinecone PineconeConfig `yaml:"pinecone" mapstructure:"pinecone"`
	Qdrant   QdrantConfig   `yaml:"qdrant" mapstructure:"qdrant"`
	Memory   MemoryConfig   `yaml:"memory" mapstructure:"memory"`
}

// PineconeConfig addresses a Pinecone serverless index. When Host is empty
// it is resolved from IndexName through the control plane.
type PineconeConfig struct {
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	IndexName  string `yaml:"index_name" mapstructure:"index_name"`
	Host       string `yaml:"host,omitempty" mapstructure:"host"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version" validate:"omitempty,apiversion"`
}

// QdrantConfig addresses a Qdrant collection over REST.
type QdrantConfig struct {
	URL        string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// MemoryConfig loads an in-process index from a JSON file.
type MemoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RateLimitConfig controls inbound admission.
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Window         time.Duration `yaml:"window" mapstructure:"window" validate:"gt=0"`
	MaxRequests    int           `yaml:"max_requests" mapstructure:"max_requests" validate:"min=1"`
	SweepThreshold int           `yaml:"sweep_threshold" mapstructure:"sweep_threshold" validate:"min=1"`
	Store          string        `yaml:"store" mapstructure:"store" validate:"oneof=memory cache"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required,startswith=/"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigin:        "*",
			TrustProxyHeaders: true,
		},
		Retrieval: RetrievalConfig{
			TopK:      10,
			Namespace: "default",
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-large",
			Timeout:  30 * time.Second,
		},
		Synthesis: SynthesisConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: DefaultSynthesisTemperature,
			MaxTokens:   2048,
			Timeout:     60 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Cooldown:    30 * time.Second,
			},
		},
		VectorIndex: VectorIndexConfig{
			Provider: "pinecone",
			Timeout:  15 * time.Second,
			Pinecone: PineconeConfig{APIVersion: "2025-04"},
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			Window:         60 * time.Second,
			MaxRequests:    10,
			SweepThreshold: 1000,
			Store:          "memory",
		},
		Confidence: DefaultCalibration(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

var apiVersionPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// NewValidator returns a validator with the project's custom tags
// registered.
func NewValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("apiversion", func(fl validator.FieldLevel) bool {
		return apiVersionPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("failed to register apiversion validator: %w", err)
	}
	return v, nil
}

// Validate checks field constraints and the provider-specific requirements
// that struct tags cannot express. Credentials are not checked here; a
// missing key surfaces when the provider is constructed.
func (c Config) Validate() error {
	v, err := NewValidator()
	if err != nil {
		return err
	}

	verr := domain.NewValidationError("config")
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.AddError(fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	switch c.VectorIndex.Provider {
	case "pinecone":
		if c.VectorIndex.Pinecone.IndexName == "" && c.VectorIndex.Pinecone.Host == "" {
			verr.AddError("vector_index.pinecone requires index_name or host")
		}
	case "qdrant":
		if c.VectorIndex.Qdrant.URL == "" || c.VectorIndex.Qdrant.Collection == "" {
			verr.AddError("vector_index.qdrant requires url and collection")
		}
	case "memory":
		if c.VectorIndex.Memory.Path == "" {
			verr.AddError("vector_index.memory requires path")
		}
	}

	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, verr)
	}
	return nil
}
