package jwks

import (
	"sync"
	"time"
)

type cacheEntry struct {
	key       any
	expiresAt time.Time
}

// Cache holds parsed signing keys by kid with a TTL.
// It is safe for concurrent use by multiple goroutines.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a key cache with the specified TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the key for keyID, or nil if absent or expired.
func (c *Cache) Get(keyID string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[keyID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil
	}
	return entry.key
}

// Replace swaps the whole key set atomically. Keys missing from keys are
// dropped, which is how rotated-out keys stop verifying.
func (c *Cache) Replace(keys map[string]any) {
	expiresAt := c.now().Add(c.ttl)
	entries := make(map[string]*cacheEntry, len(keys))
	for kid, key := range keys {
		entries[kid] = &cacheEntry{key: key, expiresAt: expiresAt}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Clear removes all keys.
func (c *Cache) Clear() {
	c.Replace(nil)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
