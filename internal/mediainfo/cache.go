package mediainfo

import (
	"os"
	"sync"
)

type cacheKey struct {
	path  string
	size  int64
	mtime int64
}

// Cache remembers resolved metadata keyed by (path, size, mtime) so an
// unchanged file never triggers a second tool invocation. It is an
// optimization only; a miss or a stat failure simply goes to the tool.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Metadata
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*Metadata)}
}

// GetBulk returns cached metadata for every path whose current size and
// mtime match a stored entry, plus the list of misses.
func (c *Cache) GetBulk(paths []string) (map[string]*Metadata, []string) {
	hits := make(map[string]*Metadata)
	var misses []string

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range paths {
		k, ok := statKey(p)
		if !ok {
			misses = append(misses, p)
			continue
		}
		if m, ok := c.entries[k]; ok {
			hits[p] = m
		} else {
			misses = append(misses, p)
		}
	}
	return hits, misses
}

// Put stores metadata under the file's current size and mtime.
func (c *Cache) Put(path string, m *Metadata) {
	k, ok := statKey(path)
	if !ok {
		return
	}
	c.mu.Lock()
	c.entries[k] = m
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func statKey(path string) (cacheKey, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return cacheKey{}, false
	}
	return cacheKey{path: path, size: fi.Size(), mtime: fi.ModTime().UnixNano()}, true
}
