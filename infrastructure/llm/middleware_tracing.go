package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracedLLM struct {
	next     CoreLLM
	provider string
	tracer   trace.Tracer
}

// TracingMiddleware wraps every completion in an "llm.request" span using
// the global tracer provider.
func TracingMiddleware(provider string) Middleware {
	tracer := otel.Tracer("github.com/ahrav/go-dossier/infrastructure/llm")
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, provider: provider, tracer: tracer}
	}
}

// DoRequest records the model, prompt size and token usage on the span.
func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request", trace.WithAttributes(
		attribute.String("llm.provider", t.provider),
		attribute.String("llm.model", t.next.GetModel()),
		attribute.Int("llm.prompt.length", len(prompt)),
	))
	defer span.End()

	if format, ok := opts["response_format"].(string); ok {
		span.SetAttributes(attribute.String("llm.response_format", format))
	}

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", tokensIn),
		attribute.Int("llm.tokens.output", tokensOut),
		attribute.Int("llm.response.length", len(response)),
	)
	span.SetStatus(codes.Ok, "")
	return response, tokensIn, tokensOut, nil
}

func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
