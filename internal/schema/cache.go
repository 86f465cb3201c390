package schema

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/relgen/internal/relation"
	"golang.org/x/sync/singleflight"
)

// Cache loads a snapshot once and serves it to concurrent readers until
// Refresh replaces it. Snapshots are never mutated after they are stored.
type Cache struct {
	loader Loader
	group  singleflight.Group

	mu       sync.RWMutex
	snapshot *relation.SchemaMap
	loadedAt time.Time
}

// NewCache wraps loader.
func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// LoadSchema makes Cache usable wherever a Loader is expected.
func (c *Cache) LoadSchema(ctx context.Context) (*relation.SchemaMap, error) {
	return c.Get(ctx)
}

// Get returns the cached snapshot, loading it on first use.
func (c *Cache) Get(ctx context.Context) (*relation.SchemaMap, error) {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return c.load(ctx, "get")
}

// Refresh reloads the snapshot. Concurrent refreshes share one load; a
// failed load keeps the previous snapshot.
func (c *Cache) Refresh(ctx context.Context) (*relation.SchemaMap, error) {
	return c.load(ctx, "refresh")
}

// LoadedAt reports when the current snapshot was loaded, zero if never.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Cache) load(ctx context.Context, key string) (*relation.SchemaMap, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		if key == "get" {
			c.mu.RLock()
			snap := c.snapshot
			c.mu.RUnlock()
			if snap != nil {
				return snap, nil
			}
		}

		snap, err := c.loader.LoadSchema(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.snapshot = snap
		c.loadedAt = time.Now()
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*relation.SchemaMap), nil
}
