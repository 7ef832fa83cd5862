package engine

import (
	"context"
	"sync"
)

// Cache remembers the fingerprint of every committed document.
// Implemented by *store.Store (SQLite) and MemoryCache.
type Cache interface {
	Lookup(ctx context.Context, path string) (fingerprint string, ok bool, err error)
	Record(ctx context.Context, path, kind, fingerprint string) error
	Forget(ctx context.Context, path string) error
}

// MemoryCache is a Cache that lives for the lifetime of the process. It
// serves watch mode without a cache file, and tests.
//
// Thread-safety: MemoryCache is safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]string{}}
}

func (c *MemoryCache) Lookup(_ context.Context, path string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp, ok := c.entries[path]
	return fp, ok, nil
}

func (c *MemoryCache) Record(_ context.Context, path, _, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = fingerprint
	return nil
}

func (c *MemoryCache) Forget(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	return nil
}

// Len returns the number of cached documents.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// nopCache never hits and never stores. Used for dry runs and validation.
type nopCache struct{}

func (nopCache) Lookup(context.Context, string) (string, bool, error) { return "", false, nil }
func (nopCache) Record(context.Context, string, string, string) error { return nil }
func (nopCache) Forget(context.Context, string) error                 { return nil }
