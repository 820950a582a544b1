package cache

import (
	"sync"

	"archiver-go/internal/archiver"
)

// MemoryCache keeps discovered records for the life of the process.
type MemoryCache struct {
	mu    sync.Mutex
	roots map[string][]*archiver.FileRecord
	saves int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{roots: make(map[string][]*archiver.FileRecord)}
}

func (c *MemoryCache) Load(root string) ([]*archiver.FileRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	records, ok := c.roots[root]
	if !ok {
		return nil, false, nil
	}
	return append([]*archiver.FileRecord(nil), records...), true, nil
}

func (c *MemoryCache) Save(root string, records []*archiver.FileRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots[root] = append([]*archiver.FileRecord(nil), records...)
	c.saves++
	return nil
}

// Saves counts Save calls.
func (c *MemoryCache) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func (c *MemoryCache) Close() error { return nil }

// NopCache never finds anything and discards saves.
type NopCache struct{}

func (NopCache) Load(string) ([]*archiver.FileRecord, bool, error) { return nil, false, nil }
func (NopCache) Save(string, []*archiver.FileRecord) error        { return nil }
func (NopCache) Close() error                                       { return nil }

var (
	_ archiver.DiscoveryCache = (*MemoryCache)(nil)
	_ archiver.DiscoveryCache = NopCache{}
)
