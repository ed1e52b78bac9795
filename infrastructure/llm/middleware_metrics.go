package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-dossier/internal/ports"
)

type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware reports latency, request counts and token usage of
// every completion to collector.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			provider:  provider,
			collector: collector,
		}
	}
}

// DoRequest forwards the request and records its outcome.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)
	if m.collector == nil {
		return response, tokensIn, tokensOut, err
	}

	model := m.next.GetModel()
	labels := map[string]string{
		"provider":  m.provider,
		"model":     model,
		"operation": "complete",
		"status":    statusLabel(err),
	}
	m.collector.RecordHistogram(ports.MetricLLMLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(ports.MetricLLMRequests, 1, labels)

	if err == nil {
		for tokenType, n := range map[string]int{"input": tokensIn, "output": tokensOut} {
			m.collector.RecordCounter(ports.MetricLLMTokens, float64(n), map[string]string{
				"provider":   m.provider,
				"model":      model,
				"token_type": tokenType,
			})
		}
	}

	return response, tokensIn, tokensOut, err
}

func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }

// statusLabel maps a provider outcome to the "status" metric label.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ports.ErrTimeout) {
		return "timeout"
	}
	if errors.Is(err, ports.ErrRateLimited) {
		return "rate_limited"
	}
	return "error"
}
