// Package cache keeps recent extraction results in memory, keyed by period,
// so the API can serve history without a new portal session.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/use-agent/rcvscrap/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    *models.ExtractionResult
	createdAt time.Time
}

// Cache is a small in-memory store of extraction results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding up to maxEntries results for ttl each.
// A background goroutine evicts expired entries every ttl/4 (at least every
// minute) until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := newCache(maxEntries, ttl, time.Now)
	go c.cleanupLoop(cleanupInterval(ttl))
	return c
}

func newCache(maxEntries int, ttl time.Duration, now func() time.Time) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        now,
		stop:       make(chan struct{}),
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

// Key returns the cache key of a period; nil is the portal default period.
func Key(period *models.Period) string {
	return models.PeriodKey(period)
}

// Get retrieves a result if it exists and has not expired.
func (c *Cache) Get(key string) (*models.ExtractionResult, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		return nil, false
	}
	return e.result, true
}

// Set stores a result under key. If the cache is at capacity the oldest
// entry is evicted to make room.
func (c *Cache) Set(key string, result *models.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{
		result:    result,
		createdAt: c.now(),
	}
}

// Keys lists the live keys, newest first.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type kt struct {
		key string
		at  time.Time
	}
	live := make([]kt, 0, len(c.store))
	for k, e := range c.store {
		if !c.expired(e) {
			live = append(live, kt{k, e.createdAt})
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].at.After(live[j].at) })

	keys := make([]string, len(live))
	for i, e := range live {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl
}

// evictExpired drops every entry older than the TTL.
func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if c.expired(e) {
			delete(c.store, k)
		}
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}
