package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/eed3si9n/ivy/latest"
	"github.com/eed3si9n/ivy/module"
)

// Chain asks its resolvers in order.
//
// An exact revision is answered by the first resolver that has it. The
// resolver that answered is remembered per module and asked first the
// next time. A dynamic revision is asked of every resolver and the latest
// answer wins, unless the chain was built WithReturnFirst.
//
// Any error from one resolver, not only "not found", moves on to the next
// one, so an unreachable repository does not hide the others.
type Chain struct {
	name      string
	resolvers []Resolver
	opts      options

	// owners tracks which resolver provided each module
	owners   map[module.ID]int
	ownersMu sync.RWMutex
}

// NewChain creates a chain over resolvers.
func NewChain(name string, resolvers []Resolver, opts ...Option) *Chain {
	return &Chain{
		name:      name,
		resolvers: resolvers,
		opts:      newOptions(opts),
		owners:    make(map[module.ID]int),
	}
}

func (c *Chain) Name() string         { return c.name }
func (c *Chain) Kind() Kind           { return KindChain }
func (c *Chain) Children() []Resolver { return c.resolvers }

// ResolverFor returns the resolver that provided mid, or nil when the
// module has not been loaded through the chain yet.
func (c *Chain) ResolverFor(mid module.ID) Resolver {
	c.ownersMu.RLock()
	defer c.ownersMu.RUnlock()
	if idx, ok := c.owners[mid]; ok {
		return c.resolvers[idx]
	}
	return nil
}

// order returns resolver indexes with the remembered owner of mid first.
func (c *Chain) order(mid module.ID) []int {
	c.ownersMu.RLock()
	owner, found := c.owners[mid]
	c.ownersMu.RUnlock()
	out := make([]int, 0, len(c.resolvers))
	if found {
		out = append(out, owner)
	}
	for i := range c.resolvers {
		if !found || i != owner {
			out = append(out, i)
		}
	}
	return out
}

func (c *Chain) remember(mid module.ID, idx int) {
	c.ownersMu.Lock()
	if _, exists := c.owners[mid]; !exists {
		c.owners[mid] = idx
	}
	c.ownersMu.Unlock()
}

func (c *Chain) LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error) {
	mid := req.ID.ModuleID()
	dynamic := c.opts.matcher.IsDynamic(req.ID.Revision)
	logger := c.opts.log()

	var (
		errs    []error
		answers []*ResolvedRevision
		owners  []int
	)
	for _, i := range c.order(mid) {
		r := c.resolvers[i]
		rev, err := r.LoadDescriptor(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !isNotFound(err) {
				logger.Warn("resolver failed, trying next", "resolver", r.Name(), "module", req.ID, "error", err)
			}
			errs = append(errs, err)
			continue
		}
		if !dynamic || c.opts.returnFirst {
			c.remember(mid, i)
			return rev, nil
		}
		answers = append(answers, rev)
		owners = append(owners, i)
	}

	if len(answers) == 0 {
		if len(errs) == 0 {
			return nil, &NotFoundError{ID: req.ID, Location: c.name}
		}
		return nil, fmt.Errorf("%s: %w", c.name, errors.Join(errs...))
	}

	infos := make([]latest.Info, len(answers))
	for i, rev := range answers {
		infos[i] = latest.Info{
			Revision:  rev.Descriptor.ResolvedRevisionID().Revision,
			Published: rev.Descriptor.Published,
		}
	}
	best, err := latest.FindLatest(c.opts.strategy, infos)
	if err != nil {
		logger.Debug("cannot compare chain answers, keeping the first", "module", req.ID, "error", err)
		best = 0
	}
	c.remember(mid, owners[best])
	return answers[best], nil
}

// artifactOwner returns the first resolver holding a.
func (c *Chain) artifactOwner(ctx context.Context, a *module.Artifact) (Resolver, error) {
	var errs []error
	for _, i := range c.order(a.Module.ModuleID()) {
		r := c.resolvers[i]
		ok, err := r.Exists(ctx, a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return r, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func (c *Chain) Exists(ctx context.Context, a *module.Artifact) (bool, error) {
	r, err := c.artifactOwner(ctx, a)
	return r != nil, err
}

func (c *Chain) Download(ctx context.Context, a *module.Artifact, w io.Writer) error {
	r, err := c.artifactOwner(ctx, a)
	if r == nil {
		if err != nil {
			return fmt.Errorf("%w: %s in %s: %w", ErrArtifactNotFound, a, c.name, err)
		}
		return fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, a, c.name)
	}
	return r.Download(ctx, a, w)
}

func (c *Chain) ListOrganisations(ctx context.Context) ([]string, error) {
	return c.union(func(r Resolver) ([]string, error) { return r.ListOrganisations(ctx) })
}

func (c *Chain) ListModules(ctx context.Context, organisation string) ([]string, error) {
	return c.union(func(r Resolver) ([]string, error) { return r.ListModules(ctx, organisation) })
}

func (c *Chain) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	return c.union(func(r Resolver) ([]string, error) { return r.ListRevisions(ctx, id) })
}

// union merges the listings of every resolver that can list.
func (c *Chain) union(list func(Resolver) ([]string, error)) ([]string, error) {
	seen := make(map[string]bool)
	var lastErr error
	ok := false
	for _, r := range c.resolvers {
		values, err := list(r)
		if err != nil {
			lastErr = err
			continue
		}
		ok = true
		for _, v := range values {
			seen[v] = true
		}
	}
	if !ok && lastErr != nil {
		return nil, lastErr
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
