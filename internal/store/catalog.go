package store

import (
	"sort"
	"sync"

	"github.com/washline/washsync/internal/model"
)

// Catalog caches the service catalog between periodic refreshes.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]model.ServiceCatalogEntry
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]model.ServiceCatalogEntry)}
}

// Replace swaps the cached entries for entries.
func (c *Catalog) Replace(entries []model.ServiceCatalogEntry) {
	m := make(map[string]model.ServiceCatalogEntry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	c.mu.Lock()
	c.entries = m
	c.mu.Unlock()
}

// Get looks up an entry by service id.
func (c *Catalog) Get(id string) (model.ServiceCatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// List returns all entries sorted by name.
func (c *Catalog) List() []model.ServiceCatalogEntry {
	c.mu.RLock()
	out := make([]model.ServiceCatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
