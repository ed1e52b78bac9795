package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-dossier/internal/ports"
)

// ErrCircuitOpen is returned without contacting the provider while the
// breaker is open. It matches ports.ErrServiceUnavailable.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", ports.ErrServiceUnavailable)

// CircuitBreakerState is the state of a CircuitBreaker.
type CircuitBreakerState int

const (
	// StateClosed passes every request through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects requests until the cooldown has elapsed.
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery.
	StateHalfOpen
)

// String returns the lowercase state name.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures. The lock is
// held only around state transitions, never across the guarded call, so
// concurrent requests proceed in parallel while the circuit is closed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	openedAt         time.Time
	probing          bool
	now              func() time.Time

	// OnStateChange, when set, is called after every transition. It runs
	// with the breaker unlocked.
	OnStateChange func(from, to CircuitBreakerState)
}

// NewCircuitBreaker creates a closed breaker. A maxFailures below one is
// treated as one.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      max(maxFailures, 1),
		cooldownDuration: cooldown,
		now:              time.Now,
	}
}

// Call runs fn unless the breaker is open. Failures of fn are returned
// unchanged; a rejected call returns ErrCircuitOpen.
func (cb *CircuitBreaker) Call(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldownDuration {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		probe = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.probing = true
		probe = true
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return probe, nil
}

func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	from := cb.state
	if probe {
		cb.probing = false
	}
	if err == nil {
		cb.failureCount = 0
		if probe {
			cb.state = StateClosed
		}
	} else {
		cb.failureCount++
		if probe || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to CircuitBreakerState) {
	if from != to && cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next CoreLLM
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware guards the wrapped provider with cb. The same
// breaker may be shared by several clients.
func CircuitBreakerMiddleware(cb *CircuitBreaker) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb}
	}
}

// DoRequest runs the request through the breaker. Caller cancellation does
// not count as a provider failure.
func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int
	var callErr error

	err := c.cb.Call(func() error {
		response, tokensIn, tokensOut, callErr = c.next.DoRequest(ctx, prompt, opts)
		if callErr != nil && ctx.Err() == context.Canceled {
			return nil
		}
		return callErr
	})
	if err != nil {
		return "", 0, 0, err
	}
	return response, tokensIn, tokensOut, callErr
}

func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }

func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
