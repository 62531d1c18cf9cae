package memory

import (
	"context"
	"sync"
	"time"

	"company-quiz-service/internal/domain"
)

// AnswerCache is the in-process fallback for the recent-answer store.
type AnswerCache struct {
	mu      sync.RWMutex
	clock   func() time.Time
	entries map[string]cachedAnswer
}

type cachedAnswer struct {
	value     string
	expiresAt time.Time
}

func NewAnswerCache() *AnswerCache {
	return &AnswerCache{
		clock:   time.Now,
		entries: make(map[string]cachedAnswer),
	}
}

// NewAnswerCacheWithClock allows deterministic expiry in tests.
func NewAnswerCacheWithClock(clock func() time.Time) *AnswerCache {
	cache := NewAnswerCache()
	cache.clock = clock
	return cache
}

// Put unconditionally overwrites any prior entry for the key.
func (c *AnswerCache) Put(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedAnswer{value: value, expiresAt: c.clock().Add(ttl)}
	return nil
}

func (c *AnswerCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !entry.expiresAt.After(c.clock()) {
		return "", domain.NotFound("no cached answer for %s", key)
	}
	return entry.value, nil
}
