package resolver

import (
	"slices"
	"sync"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/gojiplus/get-weather-data/internal/observability"
)

// Extender continues a ranking that a Ranker returned cut short.
type Extender interface {
	// Extend returns the stations ranked after the first have, or nil when
	// the earlier ranking already held every reachable station.
	Extend(zip string, lat, lon float64, have int) []domain.RankedStation
}

// CachedRanker wraps a Ranker with an in-memory LRU keyed by ZIP code, so a
// ZIP queried for many days or by many rows is ranked once. Each entry keeps
// only the head of the ranking: stations past limits.MaxDistance are never
// stored, and at most depth stations are.
type CachedRanker struct {
	inner   Ranker
	cache   *lruCache
	depth   int
	limits  Limits
	metrics *observability.Metrics
}

// NewCachedRanker creates a cache decorator around a ranker. A depth below 1
// keeps every station inside the distance limit.
func NewCachedRanker(inner Ranker, maxEntries, depth int, limits Limits, metrics *observability.Metrics) *CachedRanker {
	return &CachedRanker{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		depth:   depth,
		limits:  limits,
		metrics: metrics,
	}
}

// Rank returns the cached head of the ranking for zip, computing it on a
// miss. Callers must not modify the returned slice.
func (c *CachedRanker) Rank(zip string, lat, lon float64) []domain.RankedStation {
	if e, ok := c.cache.get(zip); ok {
		c.metrics.RankCache.WithLabelValues("hit").Inc()
		return e.stations
	}
	c.metrics.RankCache.WithLabelValues("miss").Inc()

	e := c.head(c.inner.Rank(zip, lat, lon))
	c.cache.put(zip, e)
	return e.stations
}

// Extend recomputes the full ranking when the cached head was cut at depth.
func (c *CachedRanker) Extend(zip string, lat, lon float64, have int) []domain.RankedStation {
	if e, ok := c.cache.get(zip); ok && !e.truncated {
		return nil
	}
	c.metrics.RankCache.WithLabelValues("extend").Inc()

	all := c.inner.Rank(zip, lat, lon)
	if have >= len(all) {
		return nil
	}
	return all[have:]
}

// head copies the reachable prefix of all into its own backing array so the
// full ranking is not retained by the cache.
func (c *CachedRanker) head(all []domain.RankedStation) rankEntry {
	n := len(all)
	if c.limits.MaxDistance > 0 {
		if i := slices.IndexFunc(all, func(rs domain.RankedStation) bool {
			return rs.Distance > c.limits.MaxDistance
		}); i >= 0 {
			n = i
		}
	}
	truncated := false
	if c.depth > 0 && n > c.depth {
		n = c.depth
		truncated = true
	}
	stations := make([]domain.RankedStation, n)
	copy(stations, all)
	return rankEntry{stations: stations, truncated: truncated}
}

// rankEntry is the cached head of one ZIP's ranking.
type rankEntry struct {
	stations  []domain.RankedStation
	truncated bool // stations inside the distance limit were dropped
}

// lruCache is a simple thread-safe LRU cache of ranked station lists.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value rankEntry
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (rankEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return rankEntry{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value rankEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictOldest() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
