package templatecache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/notifykit/notifykit/pkg/render"
)

// l1Entry is one in-process cache slot.
type l1Entry struct {
	value     render.Rendered
	createdAt time.Time
	expiresAt time.Time
}

// l1Cache is the bounded in-process tier. When full it evicts the oldest 20%
// of entries by creation time in a single pass, which keeps growth bounded
// with amortized O(1) cost per insert without tracking exact recency.
type l1Cache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]l1Entry
	now     func() time.Time
}

// evictFraction is the share of entries dropped when the tier is full.
const evictFraction = 0.2

func newL1Cache(maxSize int, now func() time.Time) *l1Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if now == nil {
		now = time.Now
	}
	return &l1Cache{
		maxSize: maxSize,
		entries: make(map[string]l1Entry, maxSize),
		now:     now,
	}
}

func (c *l1Cache) get(key string) (render.Rendered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return render.Rendered{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return render.Rendered{}, false
	}
	return entry.value, true
}

func (c *l1Cache) set(key string, value render.Rendered, ttl time.Duration) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = l1Entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

func (c *l1Cache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *l1Cache) deletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *l1Cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked drops expired entries first; if the tier is still full it
// removes the oldest evictFraction of entries by creation time.
func (c *l1Cache) evictOldestLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key: key, createdAt: entry.createdAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})

	drop := int(float64(len(all)) * evictFraction)
	if drop < 1 {
		drop = 1
	}
	for _, candidate := range all[:drop] {
		delete(c.entries, candidate.key)
	}
}
