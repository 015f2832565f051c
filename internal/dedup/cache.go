// Package dedup suppresses re-delivery of identical notifications
// within a rolling TTL window. The cache is memory-resident and
// process-lifetime only; restarts forget everything on purpose.
package dedup

import (
	"sync"
	"time"
)

// DefaultTTL is the suppression window for repeated fingerprints.
const DefaultTTL = 300 * time.Second

// Cache maps event fingerprints to the time they were last sent.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewCache creates a cache with the given TTL. A zero or negative TTL
// falls back to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// SetClock overrides the time source. Test use only.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// CheckAndMark reports whether fingerprint was already seen within the
// TTL window. On a fresh fingerprint (or an expired one) the entry is
// overwritten with the current time before returning, so concurrent
// submissions of the same fingerprint can never both observe fresh.
func (c *Cache) CheckAndMark(fingerprint string) (duplicate bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.seen[fingerprint]; ok && now.Sub(last) < c.ttl {
		return true
	}
	c.seen[fingerprint] = now
	return false
}

// Len returns the number of tracked fingerprints, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Sweep removes entries older than the TTL and returns how many were
// dropped. Expired entries are harmless for correctness; sweeping only
// bounds long-run memory growth.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, last := range c.seen {
		if now.Sub(last) >= c.ttl {
			delete(c.seen, fp)
			removed++
		}
	}
	return removed
}
