package authority

import (
	"sync"
	"time"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

// Cache holds authority decisions keyed by action id. Expiry is lazy:
// a read past the record's TTL is a miss and the entry is dropped. No
// background timers, so behavior is deterministic under test.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	records map[string]domain.AuthorizationRecord
}

// NewCache creates a cache with the given TTL for all entries.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		records: make(map[string]domain.AuthorizationRecord),
	}
}

// Get returns the cached record for the action if present and fresh.
func (c *Cache) Get(actionID string) (domain.AuthorizationRecord, bool) {
	c.mu.RLock()
	rec, ok := c.records[actionID]
	c.mu.RUnlock()
	if !ok {
		return domain.AuthorizationRecord{}, false
	}
	if rec.Expired(time.Now()) {
		c.mu.Lock()
		// Re-check under the write lock; a fresh Put may have raced in.
		if cur, still := c.records[actionID]; still && cur.Expired(time.Now()) {
			delete(c.records, actionID)
		}
		c.mu.Unlock()
		return domain.AuthorizationRecord{}, false
	}
	return rec, true
}

// Put stores a fresh record for the action.
func (c *Cache) Put(actionID string, result domain.AuthResult) {
	c.mu.Lock()
	c.records[actionID] = domain.AuthorizationRecord{
		ActionID: actionID,
		Result:   result,
		CachedAt: time.Now(),
		TTL:      c.ttl,
	}
	c.mu.Unlock()
}

// Clear evicts all entries immediately.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.records = make(map[string]domain.AuthorizationRecord)
	c.mu.Unlock()
}

// Len returns the number of entries, including any not yet lazily
// expired.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
