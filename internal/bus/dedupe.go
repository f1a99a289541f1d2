package bus

import (
	"container/list"
	"sync"
	"time"
)

// DedupeCache remembers notification IDs that were already dispatched.
// It is bounded by maxEntries (oldest IDs are evicted first) and, when ttl > 0,
// forgets IDs after ttl. A ttl of 0 keeps IDs until they are evicted by size.
// Safe for concurrent use.
type DedupeCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List               // front = oldest
	entries    map[string]*list.Element // id → element holding dedupeEntry
	now        func() time.Time
}

type dedupeEntry struct {
	id     string
	seenAt time.Time
}

// DefaultDedupeMaxEntries bounds the cache when no explicit size is configured.
const DefaultDedupeMaxEntries = 10000

// NewDedupeCache creates a dedupe cache. maxEntries <= 0 uses DefaultDedupeMaxEntries.
func NewDedupeCache(ttl time.Duration, maxEntries int) *DedupeCache {
	if maxEntries <= 0 {
		maxEntries = DefaultDedupeMaxEntries
	}
	return &DedupeCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Admit returns true and records id the first time it is seen.
// Any later call with the same id returns false while the id is resident.
// An empty id is never admitted.
func (c *DedupeCache) Admit(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expireLocked(now)

	if _, ok := c.entries[id]; ok {
		return false
	}

	for c.order.Len() >= c.maxEntries {
		c.removeLocked(c.order.Front())
	}

	c.entries[id] = c.order.PushBack(dedupeEntry{id: id, seenAt: now})
	return true
}

// IsDuplicate reports whether id was already seen, recording it otherwise.
func (c *DedupeCache) IsDuplicate(id string) bool {
	return !c.Admit(id)
}

// Len returns the number of resident IDs.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return c.order.Len()
}

// expireLocked drops entries older than ttl. Entries are kept in insertion
// order, so scanning stops at the first live one.
func (c *DedupeCache) expireLocked(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for e := c.order.Front(); e != nil; e = c.order.Front() {
		if now.Sub(e.Value.(dedupeEntry).seenAt) < c.ttl {
			return
		}
		c.removeLocked(e)
	}
}

func (c *DedupeCache) removeLocked(e *list.Element) {
	if e == nil {
		return
	}
	c.order.Remove(e)
	delete(c.entries, e.Value.(dedupeEntry).id)
}
