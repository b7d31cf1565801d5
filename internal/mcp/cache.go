package mcp

import (
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

// cacheKey identifies a cached report. Including the manifest's modification
// time makes a stale entry unreachable instead of requiring invalidation.
type cacheKey struct {
	path  string
	mtime int64
}

// reportCache is an LRU of audit reports keyed by package path and manifest
// mtime. Source edits without a manifest change can go stale until eviction;
// the no_cache input escape hatch covers that window.
type reportCache struct {
	entries *lru.Cache[cacheKey, *audit.Report]
}

func newReportCache(size int) (*reportCache, error) {
	entries, err := lru.New[cacheKey, *audit.Report](size)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}

	return &reportCache{entries: entries}, nil
}

// key builds the cache key for a package directory, or false when the
// manifest cannot be stat'd.
func (c *reportCache) key(path string) (cacheKey, bool) {
	info, err := os.Stat(filepath.Join(path, manifest.FileName))
	if err != nil {
		return cacheKey{}, false
	}

	return cacheKey{path: path, mtime: info.ModTime().UnixNano()}, true
}

func (c *reportCache) get(path string) (*audit.Report, bool) {
	key, ok := c.key(path)
	if !ok {
		return nil, false
	}

	return c.entries.Get(key)
}

func (c *reportCache) put(path string, report *audit.Report) {
	key, ok := c.key(path)
	if !ok {
		return
	}

	c.entries.Add(key, report)
}
