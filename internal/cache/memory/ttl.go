// Package memory implements in-process response caches that shield
// rate-limited upstream REST APIs. Each cache memoizes fetch results for a
// caller-supplied TTL and serves the previous value when a refresh fails.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Freshness reports whether a returned value came from a fetch within the
// TTL window or is a stale fallback served after a failed refresh.
type Freshness int

const (
	Fresh Freshness = iota
	Stale
)

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache is a keyed TTL cache around an expensive fetch. It is safe for
// concurrent use. Entries are owned exclusively by one Cache instance.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	now     func() time.Time
}

// New creates an empty Cache.
func New[T any]() *Cache[T] {
	return NewWithClock[T](time.Now)
}

// NewWithClock creates a Cache with an injected clock, for tests.
func NewWithClock[T any](now func() time.Time) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		now:     now,
	}
}

// Get returns the stored value for key when it is younger than ttl, without
// invoking fetch. Otherwise fetch runs; on success the result is stored with
// the current time and returned Fresh. On fetch failure a previously stored
// value (possibly expired) is returned Stale with a nil error; when no prior
// value exists the zero value and the fetch error are returned and the
// freshness is meaningless.
//
// Fetch runs outside the cache lock, so concurrent callers that observe the
// same miss may each trigger a fetch. The cache deduplicates across polling
// intervals, not in-flight requests: upstream reads are idempotent and TTLs
// are short, so the duplicate-fetch race is an accepted tradeoff.
func (c *Cache[T]) Get(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, Freshness, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) < ttl {
		c.mu.Unlock()
		return e.value, Fresh, nil
	}
	c.mu.Unlock()

	v, err := fetch(ctx)
	if err != nil {
		c.mu.Lock()
		e, ok := c.entries[key]
		c.mu.Unlock()
		if ok {
			return e.value, Stale, nil
		}
		var zero T
		return zero, Fresh, fmt.Errorf("cache: fetch %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = entry[T]{value: v, storedAt: c.now()}
	c.mu.Unlock()
	return v, Fresh, nil
}
