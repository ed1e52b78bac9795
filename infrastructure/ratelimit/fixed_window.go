// Package ratelimit admits inbound queries per client key using a fixed
// window counter held in a pluggable ports.RateLimitStore.
package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

const (
	DefaultWindow         = 60 * time.Second
	DefaultMaxRequests    = 10
	DefaultSweepThreshold = 1000

	// UnknownClientKey is used when no client identity could be derived.
	UnknownClientKey = "unknown"

	stripes = 64
)

// Config tunes a FixedWindow limiter. Zero values take the defaults above.
type Config struct {
	Window         time.Duration
	MaxRequests    int
	SweepThreshold int
	Metrics        ports.MetricsCollector
	Logger         *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// FixedWindow admits at most MaxRequests per key per Window.
//
// Read-modify-write of a key's entry happens under one of a fixed set of
// striped mutexes selected by the key's hash, so concurrent bursts from the
// same client cannot undercount. Expired entries are pruned lazily when the
// store grows past SweepThreshold.
type FixedWindow struct {
	store ports.RateLimitStore
	cfg   Config

	locks   [stripes]sync.Mutex
	sweepMu sync.Mutex
}

var _ ports.AdmissionController = (*FixedWindow)(nil)

// NewFixedWindow creates a limiter over store.
func NewFixedWindow(store ports.RateLimitStore, cfg Config) *FixedWindow {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.SweepThreshold <= 0 {
		cfg.SweepThreshold = DefaultSweepThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &FixedWindow{store: store, cfg: cfg}
}

// Check counts one request against clientKey.
func (l *FixedWindow) Check(ctx context.Context, clientKey string) (domain.Admission, error) {
	if clientKey == "" {
		clientKey = UnknownClientKey
	}

	if err := l.maybeSweep(ctx); err != nil {
		l.cfg.Logger.Warn("rate limit sweep failed", "error", err)
	}

	mu := &l.locks[stripe(clientKey)]
	mu.Lock()
	defer mu.Unlock()

	entry, ok, err := l.store.Get(ctx, clientKey)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("rate limit lookup: %w", err)
	}

	now := l.cfg.Now()
	if !ok || !now.Before(entry.ResetAt) {
		entry = ports.WindowEntry{Count: 0, ResetAt: now.Add(l.cfg.Window)}
	}

	if entry.Count >= l.cfg.MaxRequests {
		retry := retryAfter(entry.ResetAt.Sub(now))
		l.record("denied")
		l.cfg.Logger.Debug("rate limit exceeded", "key", clientKey, "retry_after", retry)
		return domain.Admission{Allowed: false, RetryAfterSeconds: retry}, nil
	}

	entry.Count++
	if err := l.store.Set(ctx, clientKey, entry); err != nil {
		return domain.Admission{}, fmt.Errorf("rate limit update: %w", err)
	}
	l.record("allowed")
	return domain.Admission{Allowed: true}, nil
}

// maybeSweep prunes expired entries once the store tracks more keys than the
// threshold. Only one sweep runs at a time; others skip.
func (l *FixedWindow) maybeSweep(ctx context.Context) error {
	n, err := l.store.Len(ctx)
	if err != nil {
		return err
	}
	if l.cfg.Metrics != nil {
		l.cfg.Metrics.RecordGauge(ports.MetricRateLimitKeys, float64(n), nil)
	}
	if n <= l.cfg.SweepThreshold || !l.sweepMu.TryLock() {
		return nil
	}
	defer l.sweepMu.Unlock()

	removed, err := l.store.Sweep(ctx, l.cfg.Now())
	if err != nil {
		return err
	}
	l.cfg.Logger.Debug("swept rate limit entries", "tracked", n, "removed", removed)
	return nil
}

func (l *FixedWindow) record(decision string) {
	if l.cfg.Metrics == nil {
		return
	}
	l.cfg.Metrics.RecordCounter(ports.MetricRateLimitDecisions, 1, map[string]string{"decision": decision})
}

func stripe(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % stripes
}

// retryAfter rounds the remaining window up to whole seconds, never below 1.
func retryAfter(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	return max(secs, 1)
}

// RetryAfterHeader formats seconds for the Retry-After header.
func RetryAfterHeader(seconds int) string {
	return strconv.Itoa(max(seconds, 1))
}
