package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-dossier/internal/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Now()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type decisionCounter struct {
	mu        sync.Mutex
	decisions map[string]float64
	keys      float64
}

func (d *decisionCounter) RecordLatency(string, time.Duration, map[string]string) {}
func (d *decisionCounter) RecordHistogram(string, float64, map[string]string)     {}

func (d *decisionCounter) RecordCounter(metric string, v float64, labels map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if metric == ports.MetricRateLimitDecisions {
		d.decisions[labels["decision"]] += v
	}
}

func (d *decisionCounter) RecordGauge(metric string, v float64, _ map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if metric == ports.MetricRateLimitKeys {
		d.keys = v
	}
}

func stores() map[string]func(now func() time.Time) ports.RateLimitStore {
	return map[string]func(now func() time.Time) ports.RateLimitStore{
		"memory": func(func() time.Time) ports.RateLimitStore { return NewMemoryStore() },
		"cache":  func(now func() time.Time) ports.RateLimitStore { return NewCacheStore(time.Minute, now) },
	}
}

func TestFixedWindow_EleventhRequestDenied(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			metrics := &decisionCounter{decisions: map[string]float64{}}
			l := NewFixedWindow(newStore(clock.Now), Config{Now: clock.Now, Metrics: metrics})
			ctx := context.Background()

			for i := range DefaultMaxRequests {
				adm, err := l.Check(ctx, "203.0.113.7")
				require.NoError(t, err)
				assert.True(t, adm.Allowed, "request %d", i+1)
				clock.Advance(time.Second)
			}

			adm, err := l.Check(ctx, "203.0.113.7")
			require.NoError(t, err)
			assert.False(t, adm.Allowed)
			assert.Equal(t, 50, adm.RetryAfterSeconds)

			other, err := l.Check(ctx, "198.51.100.1")
			require.NoError(t, err)
			assert.True(t, other.Allowed, "keys are independent")

			assert.Equal(t, 11.0, metrics.decisions["allowed"])
			assert.Equal(t, 1.0, metrics.decisions["denied"])
		})
	}
}

func TestFixedWindow_WindowResets(t *testing.T) {
	clock := newFakeClock()
	l := NewFixedWindow(NewMemoryStore(), Config{Now: clock.Now, MaxRequests: 2, Window: 10 * time.Second})
	ctx := context.Background()

	for range 2 {
		adm, _ := l.Check(ctx, "k")
		require.True(t, adm.Allowed)
	}
	denied, _ := l.Check(ctx, "k")
	require.False(t, denied.Allowed)
	assert.Equal(t, 10, denied.RetryAfterSeconds)

	clock.Advance(9500 * time.Millisecond)
	denied, _ = l.Check(ctx, "k")
	require.False(t, denied.Allowed)
	assert.Equal(t, 1, denied.RetryAfterSeconds, "partial seconds round up")

	clock.Advance(500 * time.Millisecond)
	adm, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, adm.Allowed, "window ends exactly at reset time")
}

func TestFixedWindow_ConcurrentBurst(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			l := NewFixedWindow(newStore(nil), Config{})
			ctx := context.Background()

			var allowed, denied atomic.Int32
			var wg sync.WaitGroup
			for range 50 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					adm, err := l.Check(ctx, "burst")
					assert.NoError(t, err)
					if adm.Allowed {
						allowed.Add(1)
						return
					}
					denied.Add(1)
					assert.Greater(t, adm.RetryAfterSeconds, 0)
					assert.LessOrEqual(t, adm.RetryAfterSeconds, 60)
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(DefaultMaxRequests), allowed.Load())
			assert.Equal(t, int32(40), denied.Load())
		})
	}
}

func TestFixedWindow_LazySweep(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	metrics := &decisionCounter{decisions: map[string]float64{}}
	l := NewFixedWindow(store, Config{Now: clock.Now, SweepThreshold: 5, Metrics: metrics})
	ctx := context.Background()

	for i := range 6 {
		_, err := l.Check(ctx, fmt.Sprintf("client-%d", i))
		require.NoError(t, err)
	}
	n, _ := store.Len(ctx)
	assert.Equal(t, 6, n, "nothing expired yet")

	clock.Advance(DefaultWindow)
	_, err := l.Check(ctx, "fresh")
	require.NoError(t, err)

	n, _ = store.Len(ctx)
	assert.Equal(t, 1, n, "expired entries are pruned once over the threshold")
	assert.Equal(t, 6.0, metrics.keys)
}

func TestFixedWindow_EmptyKey(t *testing.T) {
	store := NewMemoryStore()
	l := NewFixedWindow(store, Config{})

	_, err := l.Check(context.Background(), "")
	require.NoError(t, err)

	_, ok, _ := store.Get(context.Background(), UnknownClientKey)
	assert.True(t, ok)
}

func TestCacheStore(t *testing.T) {
	s := NewCacheStore(time.Minute, nil)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Set(ctx, "live", ports.WindowEntry{Count: 3, ResetAt: now.Add(time.Minute)}))
	require.NoError(t, s.Set(ctx, "stale", ports.WindowEntry{Count: 1, ResetAt: now.Add(-time.Second)}))

	e, ok, err := s.Get(ctx, "live")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, e.Count)

	_, ok, _ = s.Get(ctx, "stale")
	assert.False(t, ok, "entries already past their window are not stored")

	removed, err := s.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	n, _ := s.Len(ctx)
	assert.Zero(t, n)
}

func TestCacheStore_UsesLimiterClock(t *testing.T) {
	clock := &fakeClock{now: time.Now().Add(-time.Hour)}
	store := NewCacheStore(time.Minute, clock.Now)
	l := NewFixedWindow(store, Config{Now: clock.Now})
	ctx := context.Background()

	for i := range DefaultMaxRequests {
		adm, err := l.Check(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, adm.Allowed, "request %d", i+1)
	}

	adm, err := l.Check(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, adm.Allowed, "windows opened on a clock behind the wall clock still count")

	e, ok, err := store.Get(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultMaxRequests, e.Count)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 1, retryAfter(0))
	assert.Equal(t, 1, retryAfter(-time.Second))
	assert.Equal(t, 60, retryAfter(59*time.Second+time.Millisecond))
	assert.Equal(t, "1", RetryAfterHeader(0))
	assert.Equal(t, "42", RetryAfterHeader(42))
}
