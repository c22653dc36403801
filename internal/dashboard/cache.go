package dashboard

import (
	"container/list"
	"sync"
	"time"
)

// pageCache holds rendered dashboard pages keyed by variable and date
// range. Least recently used pages are evicted first; pages older than
// ttl are treated as misses.
type pageCache struct {
	mu    sync.Mutex
	lru   *list.List // front = most recently used
	index map[string]*list.Element
	limit int
	ttl   time.Duration

	hits, misses, evictions int64
}

type cachedPage struct {
	key     string
	body    []byte
	expires time.Time
}

// CacheStats reports page cache usage.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

// newPageCache returns nil when limit is not positive. A nil cache never
// hits and drops every put.
func newPageCache(limit int, ttl time.Duration) *pageCache {
	if limit <= 0 {
		return nil
	}
	return &pageCache{
		lru:   list.New(),
		index: make(map[string]*list.Element, limit),
		limit: limit,
		ttl:   ttl,
	}
}

func (c *pageCache) get(key string) []byte {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses++
		return nil
	}
	page := el.Value.(*cachedPage)
	if c.ttl > 0 && clock.Now().After(page.expires) {
		c.drop(el)
		c.misses++
		return nil
	}
	c.lru.MoveToFront(el)
	c.hits++
	return page.body
}

func (c *pageCache) put(key string, body []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	page := &cachedPage{key: key, body: body, expires: clock.Now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = page
		c.lru.MoveToFront(el)
		return
	}
	c.index[key] = c.lru.PushFront(page)
	for c.lru.Len() > c.limit {
		c.drop(c.lru.Back())
		c.evictions++
	}
}

func (c *pageCache) drop(el *list.Element) {
	c.lru.Remove(el)
	delete(c.index, el.Value.(*cachedPage).key)
}

func (c *pageCache) stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		Entries:    c.lru.Len(),
		MaxEntries: c.limit,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
