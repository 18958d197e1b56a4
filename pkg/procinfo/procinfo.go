// Package procinfo annotates trap events with process metadata read
// from procfs. Lookups are cached per pid, since a tracee typically
// produces thousands of traps between exec boundaries.
package procinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize bounds the number of cached pids. Traced process
// trees are small; the bound only matters for long-running traces that
// spawn many short-lived children.
const DefaultCacheSize = 128

type entry struct {
	comm    string
	cmdline []string
}

// Cache is an LRU cache of per-pid process metadata.
type Cache struct {
	cache  *lru.Cache
	procfs string
}

// NewCache creates a cache holding metadata for up to size pids.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pid cache: %v", err)
	}
	return &Cache{cache: c, procfs: "/proc"}, nil
}

// NewCacheAt is NewCache with an alternate procfs root, for tests.
func NewCacheAt(size int, procfs string) (*Cache, error) {
	c, err := NewCache(size)
	if err != nil {
		return nil, err
	}
	c.procfs = procfs
	return c, nil
}

// Comm returns the executable name of pid, or "" if it cannot be read.
func (c *Cache) Comm(pid int) string {
	return c.lookup(pid).comm
}

// Cmdline returns the argument vector of pid, or nil if it cannot be
// read.
func (c *Cache) Cmdline(pid int) []string {
	return c.lookup(pid).cmdline
}

// Forget drops the cached metadata for pid. Call it when a tracee
// exits or execs, so a recycled or replaced pid is re-read.
func (c *Cache) Forget(pid int) {
	c.cache.Remove(pid)
}

// Len returns the number of cached pids.
func (c *Cache) Len() int {
	return c.cache.Len()
}

func (c *Cache) lookup(pid int) entry {
	if v, ok := c.cache.Get(pid); ok {
		return v.(entry)
	}

	e := entry{}
	if data, err := os.ReadFile(filepath.Join(c.procfs, fmt.Sprint(pid), "comm")); err == nil {
		e.comm = strings.TrimSuffix(string(data), "\n")
	}
	if data, err := os.ReadFile(filepath.Join(c.procfs, fmt.Sprint(pid), "cmdline")); err == nil {
		// cmdline is NUL-separated with a trailing NUL.
		parts := strings.Split(strings.TrimSuffix(string(data), "\x00"), "\x00")
		if len(parts) > 0 && parts[0] != "" {
			e.cmdline = parts
		}
	}

	// Negative results are cached too: a pid that is already gone will
	// not come back with the same identity while we hold its traps.
	c.cache.Add(pid, e)
	return e
}
