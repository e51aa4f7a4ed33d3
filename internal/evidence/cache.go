package evidence

import (
	"sync"

	"riskgraph/pkg/types"
)

// QueryCache holds search results for the lifetime of the process, keyed by
// the exact query string. It is shared by all runs and safe for concurrent use.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string][]types.EvidenceItem
}

// NewQueryCache returns an empty cache.
func NewQueryCache() *QueryCache {
	return &QueryCache{entries: make(map[string][]types.EvidenceItem)}
}

// Get returns a copy of the cached results for query.
func (c *QueryCache) Get(query string) ([]types.EvidenceItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	return append([]types.EvidenceItem{}, items...), true
}

// Put stores a copy of items under query.
func (c *QueryCache) Put(query string, items []types.EvidenceItem) {
	c.mu.Lock()
	c.entries[query] = append([]types.EvidenceItem{}, items...)
	c.mu.Unlock()
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
