package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/eed3si9n/ivy/module"
)

// Cache stores raw descriptor content fetched by URL resolvers, keyed by
// revision id.
type Cache interface {
	Get(ctx context.Context, id module.RevisionID) ([]byte, bool, error)
	Put(ctx context.Context, id module.RevisionID, content []byte) error
}

// Compile-time interface compliance checks
var _ Cache = NoopCache{}
var _ Cache = (*MemoryCache)(nil)
var _ Cache = (*FailingCache)(nil)

// NoopCache is a cache that discards all writes and always returns cache misses.
type NoopCache struct{}

// Get always returns a cache miss.
func (NoopCache) Get(context.Context, module.RevisionID) ([]byte, bool, error) {
	return nil, false, nil
}

// Put discards the content and returns success.
func (NoopCache) Put(context.Context, module.RevisionID, []byte) error {
	return nil
}

// MemoryCache is a thread-safe in-memory cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[module.RevisionID][]byte
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[module.RevisionID][]byte)}
}

// Get returns a copy of the cached content.
func (c *MemoryCache) Get(_ context.Context, id module.RevisionID) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.items[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), content...), true, nil
}

// Put stores a copy of content.
func (c *MemoryCache) Put(_ context.Context, id module.RevisionID, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = append([]byte(nil), content...)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// FailingCache is a cache that always returns errors, for exercising
// error handling paths.
type FailingCache struct {
	GetErr error
	PutErr error
}

// NewFailingCache creates a cache that fails with the given errors.
func NewFailingCache(getErr, putErr error) *FailingCache {
	if getErr == nil {
		getErr = errors.New("cache get failed")
	}
	if putErr == nil {
		putErr = errors.New("cache put failed")
	}
	return &FailingCache{GetErr: getErr, PutErr: putErr}
}

// Get always returns an error.
func (c *FailingCache) Get(context.Context, module.RevisionID) ([]byte, bool, error) {
	return nil, false, c.GetErr
}

// Put always returns an error.
func (c *FailingCache) Put(context.Context, module.RevisionID, []byte) error {
	return c.PutErr
}
