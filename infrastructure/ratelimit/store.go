package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ahrav/go-dossier/internal/ports"
)

var (
	_ ports.RateLimitStore = (*MemoryStore)(nil)
	_ ports.RateLimitStore = (*CacheStore)(nil)
)

// MemoryStore is a map-backed RateLimitStore for a single process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]ports.WindowEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]ports.WindowEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (ports.WindowEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry ports.WindowEntry) error {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Sweep drops every entry whose window has ended at now.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.ResetAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// CacheStore keeps window entries in a go-cache instance. Each entry expires
// with its window, and the cache's janitor reclaims them in the background
// in addition to explicit sweeps.
type CacheStore struct {
	cache *gocache.Cache
	now   func() time.Time
}

// NewCacheStore creates a store whose janitor runs every cleanupInterval.
// now must be the limiter's clock so entry lifetimes agree with its windows;
// nil means time.Now.
func NewCacheStore(cleanupInterval time.Duration, now func() time.Time) *CacheStore {
	if now == nil {
		now = time.Now
	}
	return &CacheStore{cache: gocache.New(gocache.NoExpiration, cleanupInterval), now: now}
}

func (s *CacheStore) Get(_ context.Context, key string) (ports.WindowEntry, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return ports.WindowEntry{}, false, nil
	}
	return v.(ports.WindowEntry), true, nil
}

func (s *CacheStore) Set(_ context.Context, key string, entry ports.WindowEntry) error {
	ttl := entry.ResetAt.Sub(s.now())
	if ttl <= 0 {
		s.cache.Delete(key)
		return nil
	}
	s.cache.Set(key, entry, ttl)
	return nil
}

func (s *CacheStore) Sweep(_ context.Context, now time.Time) (int, error) {
	removed := 0
	for k, item := range s.cache.Items() {
		if e, ok := item.Object.(ports.WindowEntry); ok && !now.Before(e.ResetAt) {
			s.cache.Delete(k)
			removed++
		}
	}
	s.cache.DeleteExpired()
	return removed, nil
}

func (s *CacheStore) Len(context.Context) (int, error) {
	return s.cache.ItemCount(), nil
}
