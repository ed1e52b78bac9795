// Package middleware provides cross-cutting concerns for the query service.
package middleware

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-dossier/internal/ports"
)

const unknownLabel = "unknown"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// Metrics named in the ports package map onto dedicated vectors; anything
// else lands in generic operation vectors keyed by the metric name.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	queryTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	rateLimitDecisions *prometheus.CounterVec
	rateLimitKeys      prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	// Fallbacks for metrics without a dedicated vector.
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the service metrics in reg. A nil reg gets
// a fresh registry that also carries the Go runtime and process collectors.
func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)
	llmLabels := []string{"provider", "model", "operation", "status"}

	return &PrometheusMetrics{
		registry: reg,

		// Query pipeline.
		queryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricQueryTotal,
				Help: "Finished queries by outcome.",
			},
			[]string{"outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricQueryStage,
				Help:    "Duration of each query pipeline stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		// Admission control.
		rateLimitDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricRateLimitDecisions,
				Help: "Rate limiter decisions by outcome.",
			},
			[]string{"decision"},
		),
		rateLimitKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: ports.MetricRateLimitKeys,
				Help: "Client keys currently tracked by the rate limiter.",
			},
		),

		// Model providers.
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricLLMRequests,
				Help: "Embedding and completion calls by provider, model and status.",
			},
			llmLabels,
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricLLMLatency,
				Help:    "Latency of embedding and completion calls.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			llmLabels,
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricLLMTokens,
				Help: "Tokens consumed by provider calls.",
			},
			[]string{"provider", "model", "token_type"},
		),

		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_operation_duration_seconds",
				Help:    "Duration of operations without a dedicated metric.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_operations_total",
				Help: "Counters without a dedicated metric.",
			},
			[]string{"metric", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dossier_system_state",
				Help: "Gauges without a dedicated metric.",
			},
			[]string{"metric"},
		),
	}
}

// Registry returns the registry the metrics were registered in.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	switch operation {
	case ports.MetricQueryStage:
		pm.stageDuration.WithLabelValues(label(labels, "stage")).Observe(duration.Seconds())
	case ports.MetricLLMLatency:
		pm.RecordHistogram(operation, duration.Seconds(), labels)
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricQueryTotal:
		pm.queryTotal.WithLabelValues(label(labels, "outcome")).Add(value)
	case ports.MetricRateLimitDecisions:
		pm.rateLimitDecisions.WithLabelValues(label(labels, "decision")).Add(value)
	case ports.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(llmLabelValues(labels)...).Add(value)
	case ports.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			label(labels, "provider"),
			label(labels, "model"),
			label(labels, "token_type"),
		).Add(value)
	default:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	if metric == ports.MetricRateLimitKeys {
		pm.rateLimitKeys.Set(value)
		return
	}
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(llmLabelValues(labels)...).Observe(value)
	case ports.MetricQueryStage:
		pm.stageDuration.WithLabelValues(label(labels, "stage")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

func llmLabelValues(labels map[string]string) []string {
	return []string{
		label(labels, "provider"),
		label(labels, "model"),
		label(labels, "operation"),
		label(labels, "status"),
	}
}

func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknownLabel
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
