package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

// DefaultSynthesisTemperature favors repeatable answers.
const DefaultSynthesisTemperature = 0.3

// SynthesisOptions tune the completion request.
type SynthesisOptions struct {
	Temperature float64
	MaxTokens   int
}

// Synthesizer renders the evidence into a prompt, makes exactly one
// completion call and hands the output to the ResponseRepairer.
type Synthesizer struct {
	client   ports.LLMClient
	repairer *ResponseRepairer
	opts     SynthesisOptions
	logger   *slog.Logger
}

// NewSynthesizer creates a Synthesizer. A zero Temperature falls back to
// DefaultSynthesisTemperature.
func NewSynthesizer(client ports.LLMClient, opts SynthesisOptions, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultSynthesisTemperature
	}
	return &Synthesizer{
		client:   client,
		repairer: NewResponseRepairer(logger),
		opts:     opts,
		logger:   logger,
	}
}

// Synthesize answers question from a non-empty evidence set. Provider
// failures are returned wrapped; unparseable output yields a
// SynthesisFormatError. There is no retry.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []domain.Evidence) (domain.SynthesisResult, error) {
	contextBlock := BuildContext(evidence)
	prompt := BuildPrompt(question, contextBlock)

	s.logger.Debug("requesting synthesis",
		"model", s.client.GetModel(),
		"sources", len(evidence),
		"context_chars", len(contextBlock))

	options := map[string]any{
		"system":          SystemInstruction,
		"temperature":     s.opts.Temperature,
		"response_format": "json_object",
	}
	if s.opts.MaxTokens > 0 {
		options["max_tokens"] = s.opts.MaxTokens
	}

	raw, err := s.client.Complete(ctx, prompt, options)
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("synthesis completion: %w", err)
	}

	result, outcome, err := s.repairer.Repair(raw)
	if err != nil {
		s.logger.Error("synthesis output rejected", "error", err, "raw_chars", len(raw))
		return domain.SynthesisResult{}, err
	}
	s.logger.Debug("synthesis accepted", "outcome", outcome,
		"findings", len(result.KeyFindings),
		"caveats", len(result.Caveats),
		"related_questions", len(result.RelatedQuestions))
	return result, nil
}
