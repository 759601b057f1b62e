// Package xrootd implements a hierarchical file-location cache and
// search overlay in the style of the XRootD federation protocol: a tree
// of nodes, each either an internal supervisor, a leaf backed by a
// storage service, or both, cooperating on broadcast search with
// cache-update propagation back up the path a search traveled.
package xrootd

import (
	"sync"
	"time"

	"github.com/wrenchsim/wrench/pkg/datamodel"
)

type cacheEntry struct {
	locations  []*datamodel.FileLocation
	insertedAt time.Time
}

// Cache is a per-node, TTL-based record of where a file was last found.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]cacheEntry
	maxLifetime time.Duration
}

// NewCache creates an empty cache with the given entry lifetime.
func NewCache(maxLifetime time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), maxLifetime: maxLifetime}
}

// Get returns the cached locations for file as of now, or (nil, false)
// if absent or expired.
func (c *Cache) Get(fileID string, now time.Time) ([]*datamodel.FileLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fileID]
	if !ok {
		return nil, false
	}
	if c.maxLifetime > 0 && now.Sub(e.insertedAt) > c.maxLifetime {
		return nil, false
	}
	return e.locations, true
}

// Put records loc as a known location of file as of now.
func (c *Cache) Put(fileID string, loc *datamodel.FileLocation, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[fileID]
	e.locations = appendIfAbsent(e.locations, loc)
	e.insertedAt = now
	c.entries[fileID] = e
}

// Invalidate drops any cached entry for file.
func (c *Cache) Invalidate(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fileID)
}

func appendIfAbsent(list []*datamodel.FileLocation, loc *datamodel.FileLocation) []*datamodel.FileLocation {
	for _, l := range list {
		if l == loc {
			return list
		}
	}
	return append(list, loc)
}
