package core

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheEntry 缓存的模型回复
type CacheEntry struct {
	Response  string
	CreatedAt time.Time
}

// ResponseCache maps an exact prompt to the last generated reply. Entries
// expire after ttl and the cache never holds more than maxEntries prompts.
type ResponseCache struct {
	mu         sync.Mutex // serializes the size check with insertion
	store      *gocache.Cache
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewResponseCache 创建响应缓存。maxEntries <= 0 表示不限数量。
func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	return &ResponseCache{
		// expiry sweeps are driven by Cleanup, not a go-cache janitor
		store:      gocache.New(ttl, 0),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached reply for prompt while it is younger than the TTL.
// Expired entries are removed on lookup.
func (c *ResponseCache) Get(prompt string) (string, bool) {
	v, ok := c.store.Get(prompt)
	if !ok {
		return "", false
	}
	entry := v.(CacheEntry)
	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		c.store.Delete(prompt)
		return "", false
	}
	return entry.Response, true
}

// Set stores response under prompt, replacing any previous entry and
// resetting its age.
func (c *ResponseCache) Set(prompt, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 {
		if _, exists := c.store.Get(prompt); !exists && c.store.ItemCount() >= c.maxEntries {
			c.purgeExpired()
			if c.store.ItemCount() >= c.maxEntries {
				c.evictOldest()
			}
		}
	}
	c.store.Set(prompt, CacheEntry{Response: response, CreatedAt: c.now()}, c.ttl)
}

// Cleanup removes every expired entry and returns how many were dropped.
func (c *ResponseCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpired()
}

// Len reports the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	return c.store.ItemCount()
}

func (c *ResponseCache) purgeExpired() int {
	now := c.now()
	removed := 0
	for key, item := range c.store.Items() {
		entry, ok := item.Object.(CacheEntry)
		if !ok || now.Sub(entry.CreatedAt) >= c.ttl {
			c.store.Delete(key)
			removed++
		}
	}
	c.store.DeleteExpired()
	return removed
}

func (c *ResponseCache) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for key, item := range c.store.Items() {
		entry, ok := item.Object.(CacheEntry)
		if !ok {
			continue
		}
		if !found || entry.CreatedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, entry.CreatedAt, true
		}
	}
	if found {
		c.store.Delete(oldestKey)
	}
}
