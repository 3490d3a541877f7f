package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in a process-local go-cache. Expired windows
// are evicted by the cache janitor.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.cache.Get(key); ok {
		w := v.(*window)
		if now.Before(w.resetAt) {
			w.count++
			return w.count, w.resetAt, nil
		}
	}

	w := &window{count: 1, resetAt: now.Add(ttl)}
	s.cache.Set(key, w, ttl)
	return w.count, w.resetAt, nil
}
