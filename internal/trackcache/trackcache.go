// Package trackcache caches parsed *track.Track values by track name, so
// a Monte-Carlo batch of runs against the same track pays the JSON/CSV
// parse and curvature-multiplier computation once instead of per run.
//
// Grounded on teacher's strategy/cache.go (StrategyCache: TTL entries,
// LRU eviction once MaxEntries is exceeded, a background cleanup
// goroutine with a stop channel, RWMutex-guarded access), narrowed from
// a general interface{}-valued, tag-invalidated cache to the single
// *track.Track concern Cache.GetOrLoad needs.
package trackcache

import (
	"sync"
	"time"

	"github.com/psybedev/racetrack-sim/internal/simpars"
	"github.com/psybedev/racetrack-sim/internal/track"
)

// entry is one cached track plus the bookkeeping LRU eviction needs.
type entry struct {
	trk        *track.Track
	loadedAt   time.Time
	lastAccess time.Time
}

func (e *entry) isExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(e.loadedAt) > ttl
}

// Config bounds the cache's size and lifetime.
type Config struct {
	// TTL is how long a cached track stays valid. Zero means entries
	// never expire by age (only by LRU eviction pressure).
	TTL time.Duration
	// MaxEntries is the cache's LRU eviction threshold. Zero means
	// unbounded.
	MaxEntries int
}

// DefaultConfig matches teacher's cache.DefaultCacheConfig scale, sized
// down: a Monte-Carlo batch rarely spans more than a handful of distinct
// tracks at once.
func DefaultConfig() Config {
	return Config{TTL: 30 * time.Minute, MaxEntries: 16}
}

// Cache is a concurrency-safe, TTL+LRU cache of parsed tracks, keyed by
// (tracksDir, trackName).
type Cache struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*entry

	hits   int64
	misses int64
}

// New builds a Cache. A zero Config falls back to DefaultConfig.
func New(cfg Config) *Cache {
	if cfg.MaxEntries == 0 && cfg.TTL == 0 {
		cfg = DefaultConfig()
	}
	return &Cache{cfg: cfg, entries: make(map[string]*entry)}
}

func cacheKey(tracksDir, trackName string) string {
	return tracksDir + "\x00" + trackName
}

// GetOrLoad returns the cached track for (tracksDir, trackName),
// resolving and parsing it via simpars on a miss or expiry. Concurrent
// callers racing on the same miss each pay the load; the loser's result
// is discarded in favor of whichever finished first, keeping the lock
// uncontended for the common hit path.
func (c *Cache) GetOrLoad(tracksDir, trackName string) (*track.Track, error) {
	key := cacheKey(tracksDir, trackName)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !e.isExpired(c.cfg.TTL) {
		e.lastAccess = time.Now()
		c.hits++
		c.mu.Unlock()
		return e.trk, nil
	}
	c.misses++
	c.mu.Unlock()

	trk, err := simpars.LoadTrack(tracksDir, trackName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && !e.isExpired(c.cfg.TTL) {
		return e.trk, nil
	}
	now := time.Now()
	c.entries[key] = &entry{trk: trk, loadedAt: now, lastAccess: now}
	c.evictIfNecessary()
	return trk, nil
}

// evictIfNecessary drops the least-recently-accessed entries once the
// cache exceeds MaxEntries. Caller must hold c.mu.
func (c *Cache) evictIfNecessary() {
	if c.cfg.MaxEntries <= 0 || len(c.entries) <= c.cfg.MaxEntries {
		return
	}
	for len(c.entries) > c.cfg.MaxEntries {
		var oldestKey string
		var oldestAccess time.Time
		first := true
		for k, e := range c.entries {
			if first || e.lastAccess.Before(oldestAccess) {
				oldestKey = k
				oldestAccess = e.lastAccess
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Stats is a point-in-time snapshot of cache hit/miss counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// GetStats returns the cache's current hit/miss/size counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// Clear empties the cache, forcing every subsequent GetOrLoad to reparse.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}
