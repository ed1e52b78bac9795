package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-dossier/internal/ports"
)

type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware bounds each request by timeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

func (t *timeoutLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }

type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware paces outbound requests with a token bucket. Callers
// wait for a token; a context that ends first fails with ports.ErrRateLimited.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, max(burst, 1))
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

func (r *rateLimitedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("%w: waiting for outbound token: %w", ports.ErrRateLimited, err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }

// ResilienceOptions describes the standard middleware stack of a
// completion client. Zero values disable the corresponding layer.
type ResilienceOptions struct {
	Provider       string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	MaxFailures    int
	Cooldown       time.Duration
	Metrics        ports.MetricsCollector
	Logger         *slog.Logger
}

// Middleware returns the stack outermost first: tracing, metrics, circuit
// breaker, outbound rate limit, timeout.
func (o ResilienceOptions) Middleware() []Middleware {
	chain := []Middleware{TracingMiddleware(o.Provider)}

	if o.Metrics != nil {
		chain = append(chain, MetricsMiddleware(o.Provider, o.Metrics))
	}
	if o.MaxFailures > 0 {
		cb := NewCircuitBreaker(o.MaxFailures, o.Cooldown)
		if o.Logger != nil {
			logger := o.Logger.With("provider", o.Provider)
			cb.OnStateChange = func(from, to CircuitBreakerState) {
				logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			}
		}
		chain = append(chain, CircuitBreakerMiddleware(cb))
	}
	if o.RateLimitRPS > 0 {
		chain = append(chain, RateLimitMiddleware(rate.Limit(o.RateLimitRPS), o.RateLimitBurst))
	}
	if o.Timeout > 0 {
		chain = append(chain, TimeoutMiddleware(o.Timeout))
	}
	return chain
}
