package tsconfig

import (
	"sync"

	"github.com/esm-dev/tsload/internal/vfs"
	syncx "github.com/ije/gox/sync"
)

// Cache memoizes project graphs by entry config path.
type Cache struct {
	fs     vfs.FS
	cwd    string
	lock   syncx.KeyedMutex
	graphs sync.Map
}

type cacheItem struct {
	graph *Graph
	err   error
}

func NewCache(fsys vfs.FS, cwd string) *Cache {
	if fsys == nil {
		fsys = vfs.OS{}
	}
	return &Cache{fs: fsys, cwd: cwd}
}

// Load returns the graph of the entry config, loading it on first use.
// Failures are cached as well.
func (c *Cache) Load(entry string) (*Graph, error) {
	key := configPath(c.fs, c.cwd, entry)

	// check cache first
	if v, ok := c.graphs.Load(key); ok {
		item := v.(*cacheItem)
		return item.graph, item.err
	}

	unlock := c.lock.Lock(key)
	defer unlock()

	// check cache again after lock
	if v, ok := c.graphs.Load(key); ok {
		item := v.(*cacheItem)
		return item.graph, item.err
	}

	graph, err := LoadGraph(c.fs, c.cwd, key)
	c.graphs.Store(key, &cacheItem{graph, err})
	return graph, err
}
