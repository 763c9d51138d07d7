package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// cacheConfig bounds the result cache.
type cacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

var defaultCacheConfig = cacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

type cacheEntry struct {
	result    bool
	expiresAt time.Time
}

// cache memoizes occurrence checks. Expansion of long RRULEs is the
// expensive part of calendar-query handling; results only change when
// the source line changes, which also changes the cache key inputs.
type cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	cfg     cacheConfig
}

func newCache(cfg cacheConfig) *cache {
	return &cache{
		entries: make(map[string]cacheEntry),
		cfg:     cfg,
	}
}

func (c *cache) key(masterStart, masterEnd time.Time, info Info, rangeStart, rangeEnd time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s|%d|%d", masterStart.UnixNano(), masterEnd.UnixNano(), info.RRULE, rangeStart.UnixNano(), rangeEnd.UnixNano())
	for _, t := range info.RDATE {
		fmt.Fprintf(h, "|r%d", t.UnixNano())
	}
	for _, t := range info.EXDATE {
		fmt.Fprintf(h, "|x%d", t.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *cache) get(masterStart, masterEnd time.Time, info Info, rangeStart, rangeEnd time.Time) (bool, bool) {
	key := c.key(masterStart, masterEnd, info, rangeStart, rangeEnd)
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return false, false
	}
	return entry.result, true
}

func (c *cache) put(masterStart, masterEnd time.Time, info Info, rangeStart, rangeEnd time.Time, result bool) {
	key := c.key(masterStart, masterEnd, info, rangeStart, rangeEnd)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.cfg.MaxEntries {
		// Drop expired entries first; if still full, drop arbitrary ones.
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		for k := range c.entries {
			if len(c.entries) < c.cfg.MaxEntries {
				break
			}
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{result: result, expiresAt: time.Now().Add(c.cfg.TTL)}
}
