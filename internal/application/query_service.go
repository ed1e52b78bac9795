// Package application implements the query-time retrieval and synthesis
// pipeline: evidence normalization, prompt construction, response repair,
// confidence scoring and the orchestrator that sequences them.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

// Query outcomes reported on the dossier_query_total counter.
const (
	OutcomeAnswered = "answered"
	OutcomeEmpty    = "empty"
	OutcomeNoText   = "no_text"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "error"
)

// Pipeline stages timed on the stage histogram.
const (
	stageEmbed      = "embed"
	stageSearch     = "search"
	stageNormalize  = "normalize"
	stageSynthesize = "synthesize"
)

// EmptyResultResponse is returned when the index found no candidates.
func EmptyResultResponse() domain.QueryResponse {
	return domain.QueryResponse{
		SynthesisResult: domain.SynthesisResult{
			SummaryMarkdown: "No relevant documents found for this query.",
			KeyFindings:     []string{},
			Caveats:         []string{"No matching sources were found in the database."},
			RelatedQuestions: []string{
				"Try rephrasing your question with different keywords",
				"Search for specific names, dates, or document types",
				"Explore broader topics related to your query",
			},
		},
		Sources:    []domain.Evidence{},
		Confidence: domain.ConfidenceLow,
	}
}

// NoTextResponse is returned when candidates were found but none carried
// extractable text, which usually points at an indexing problem.
func NoTextResponse() domain.QueryResponse {
	return domain.QueryResponse{
		SynthesisResult: domain.SynthesisResult{
			SummaryMarkdown: "No valid source documents found. The retrieved documents did not contain extractable text content.",
			KeyFindings:     []string{},
			Caveats: []string{
				"No text content was found in the retrieved documents. This may indicate an issue with the document indexing or metadata structure.",
			},
			RelatedQuestions: []string{
				"Try a different search query",
				"Search for specific document types or dates",
				"Explore related topics in the database",
			},
		},
		Sources:    []domain.Evidence{},
		Confidence: domain.ConfidenceLow,
	}
}

// QueryServiceConfig wires the collaborators of a QueryService.
type QueryServiceConfig struct {
	Embedder    ports.Embedder
	Index       ports.VectorIndex
	Synthesizer *Synthesizer
	Scorer      *ConfidenceScorer

	// TopK and Namespace parameterize every search.
	TopK      int
	Namespace string

	// Metrics and Logger are optional.
	Metrics ports.MetricsCollector
	Logger  *slog.Logger
}

// QueryService sequences embed, search, normalize, synthesize and score for
// one question. It holds no per-request state and is safe for concurrent
// use.
type QueryService struct {
	embedder    ports.Embedder
	index       ports.VectorIndex
	synthesizer *Synthesizer
	scorer      *ConfidenceScorer
	validate    *validator.Validate
	topK        int
	namespace   string
	metrics     ports.MetricsCollector
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewQueryService validates the wiring and returns a ready service.
func NewQueryService(cfg QueryServiceConfig) (*QueryService, error) {
	if cfg.Embedder == nil || cfg.Index == nil || cfg.Synthesizer == nil {
		return nil, fmt.Errorf("%w: embedder, index and synthesizer are required", domain.ErrInvalidConfiguration)
	}
	if cfg.Scorer == nil {
		cfg.Scorer = NewConfidenceScorer(DefaultCalibration())
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().Retrieval.TopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	v, err := NewValidator()
	if err != nil {
		return nil, err
	}

	return &QueryService{
		embedder:    cfg.Embedder,
		index:       cfg.Index,
		synthesizer: cfg.Synthesizer,
		scorer:      cfg.Scorer,
		validate:    v,
		topK:        cfg.TopK,
		namespace:   cfg.Namespace,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		tracer:      otel.Tracer("github.com/ahrav/go-dossier/internal/application"),
	}, nil
}

// ValidateQuestion applies the request contract: non-blank and at most
// 1000 characters.
func (s *QueryService) ValidateQuestion(question string) error {
	req := domain.QueryRequest{Question: strings.TrimSpace(question)}
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	verr := domain.NewValidationError("QueryRequest")
	if req.Question == "" {
		verr.AddError("Question cannot be empty")
		verr.Cause = domain.ErrEmptyQuestion
	} else {
		verr.AddError("Question too long")
		verr.Cause = domain.ErrQuestionTooLong
	}
	return verr
}

// Ask answers one question. Degenerate retrieval yields a canned response
// with a nil error; every other failure is fatal for the request and no
// partial response is returned.
func (s *QueryService) Ask(ctx context.Context, question string) (domain.QueryResponse, error) {
	if err := s.ValidateQuestion(question); err != nil {
		s.count(OutcomeInvalid)
		return domain.QueryResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "query.ask", trace.WithAttributes(
		attribute.Int("query.top_k", s.topK),
		attribute.String("query.namespace", s.namespace),
		attribute.Int("query.length", len(question)),
	))
	defer span.End()

	resp, outcome, err := s.run(ctx, question)
	s.count(outcome)
	span.SetAttributes(attribute.String("query.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("query failed", "error", err)
		return domain.QueryResponse{}, err
	}
	span.SetAttributes(
		attribute.String("query.confidence", resp.Confidence.String()),
		attribute.Int("query.sources", len(resp.Sources)),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (s *QueryService) run(ctx context.Context, question string) (domain.QueryResponse, string, error) {
	s.logger.Debug("embedding question", "model", s.embedder.Model())
	var vector []float32
	err := s.stage(ctx, stageEmbed, "query.embed", func(ctx context.Context) error {
		var err error
		vector, err = s.embedder.Embed(ctx, question)
		return err
	})
	if err != nil {
		return domain.QueryResponse{}, OutcomeFailed, fmt.Errorf("embed question: %w", err)
	}

	var candidates []domain.Candidate
	err = s.stage(ctx, stageSearch, "query.search", func(ctx context.Context) error {
		var err error
		candidates, err = s.index.Search(ctx, vector, s.topK, s.namespace)
		return err
	})
	if err != nil {
		return domain.QueryResponse{}, OutcomeFailed, fmt.Errorf("search index: %w", err)
	}
	s.logger.Info("retrieved candidates",
		"top_k", s.topK, "namespace", s.namespace, "candidates", len(candidates))

	if len(candidates) == 0 {
		return EmptyResultResponse(), OutcomeEmpty, nil
	}

	start := time.Now()
	evidence := NormalizeCandidates(candidates, s.logger)
	s.observe(stageNormalize, time.Since(start))
	s.logger.Debug("normalized candidates",
		"with_text", len(evidence), "filtered", len(candidates)-len(evidence))

	if len(evidence) == 0 {
		return NoTextResponse(), OutcomeNoText, nil
	}

	var result domain.SynthesisResult
	err = s.stage(ctx, stageSynthesize, "query.synthesize", func(ctx context.Context) error {
		var err error
		result, err = s.synthesizer.Synthesize(ctx, question, evidence)
		return err
	})
	if err != nil {
		return domain.QueryResponse{}, OutcomeFailed, err
	}

	confidence := s.scorer.Level(evidence)
	s.logger.Info("query answered",
		"sources", len(evidence), "confidence", confidence.String())

	return domain.QueryResponse{
		SynthesisResult: result,
		Sources:         evidence,
		Confidence:      confidence,
	}, OutcomeAnswered, nil
}

// stage runs fn inside a child span and times it.
func (s *QueryService) stage(ctx context.Context, stage, spanName string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.observe(stage, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Stats passes index statistics through unchanged.
func (s *QueryService) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return stats, nil
}

func (s *QueryService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCounter(ports.MetricQueryTotal, 1, map[string]string{"outcome": outcome})
	}
}

func (s *QueryService) observe(stage string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordLatency(ports.MetricQueryStage, d, map[string]string{"stage": stage})
	}
}
