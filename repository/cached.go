package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/eed3si9n/ivy/module"
)

// Cached keeps the answers of a resolver for exact revisions in a
// bounded, expiring LRU cache. Dynamic requests always reach the
// underlying resolver.
type Cached struct {
	Resolver
	opts  options
	cache *expirable.LRU[module.RevisionID, *ResolvedRevision]
}

// NewCached wraps r. A size of zero or less means 256 entries; a ttl of
// zero keeps entries until they are pushed out.
func NewCached(r Resolver, size int, ttl time.Duration, opts ...Option) *Cached {
	if size <= 0 {
		size = 256
	}
	return &Cached{
		Resolver: r,
		opts:     newOptions(opts),
		cache:    expirable.NewLRU[module.RevisionID, *ResolvedRevision](size, nil, ttl),
	}
}

func (c *Cached) LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error) {
	if c.opts.matcher.IsDynamic(req.ID.Revision) || !req.AsOf.IsZero() {
		return c.Resolver.LoadDescriptor(ctx, req)
	}
	if rev, ok := c.cache.Get(req.ID); ok {
		return rev, nil
	}
	rev, err := c.Resolver.LoadDescriptor(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Add(req.ID, rev)
	return rev, nil
}

// Len returns the number of cached revisions.
func (c *Cached) Len() int { return c.cache.Len() }

// Purge empties the cache.
func (c *Cached) Purge() { c.cache.Purge() }
