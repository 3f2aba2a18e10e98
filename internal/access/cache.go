package access

import "sync"

// allowedCache memoises each user's allowed-action union under the store's
// permission epoch. Seeing a different epoch drops every entry. The
// generation counter stops a lookup that raced an invalidation from storing
// its stale result.
type allowedCache struct {
	mu         sync.RWMutex
	entries    map[string]ActionSet
	epoch      int64
	generation uint64
}

func newAllowedCache() *allowedCache {
	return &allowedCache{entries: make(map[string]ActionSet)}
}

func (c *allowedCache) get(userID string, epoch int64) (ActionSet, uint64, bool) {
	c.mu.RLock()
	if c.epoch == epoch {
		set, ok := c.entries[userID]
		generation := c.generation
		c.mu.RUnlock()
		if !ok {
			return nil, generation, false
		}
		return set.clone(), generation, true
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.entries = make(map[string]ActionSet)
		c.epoch = epoch
		c.generation++
	}
	return nil, c.generation, false
}

func (c *allowedCache) put(userID string, set ActionSet, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries[userID] = set.clone()
}

func (c *allowedCache) invalidateUser(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.generation++
	c.mu.Unlock()
}

func (c *allowedCache) invalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]ActionSet)
	c.generation++
	c.mu.Unlock()
}
