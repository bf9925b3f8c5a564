package feed

import "sync"

// Cache holds intercepted feed items keyed by aweme id until the task loop
// consumes them. The network listener writes, the task loop takes; entries
// are removed on take so each item is consumed at most once per run.
//
// There is no eviction beyond consumption: the cache is bounded by the feed
// page size in practice, and a run discards the whole cache when it ends.
type Cache struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]Item)}
}

// Ingest stores every item of an intercepted feed payload, overwriting
// earlier entries that share an id.
func (c *Cache) Ingest(items ...Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		c.items[it.AwemeID] = it
	}
}

// Take looks up the item for the given id and removes it from the cache.
// The second return is false when the id was never intercepted (or was
// already consumed).
func (c *Cache) Take(id string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if ok {
		delete(c.items, id)
	}
	return it, ok
}

// Len reports the number of cached items, for progress logging.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
