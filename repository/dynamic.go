package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/eed3si9n/ivy/latest"
	"github.com/eed3si9n/ivy/module"
)

type listFunc func(ctx context.Context, id module.ID) ([]string, error)

type loadFunc func(ctx context.Context, id module.RevisionID) (*module.Descriptor, error)

// findDescriptor answers req with list and load. Exact revisions are
// loaded directly. Dynamic ones are answered with the latest listed
// revision the version matcher accepts, published no later than req.AsOf.
func findDescriptor(ctx context.Context, o *options, location string, req Request, list listFunc, load loadFunc) (*module.Descriptor, error) {
	constraint := req.ID.Revision
	if !o.matcher.IsDynamic(constraint) {
		md, err := load(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if !req.AsOf.IsZero() && md.Published.After(req.AsOf) {
			return nil, &NotFoundError{ID: req.ID, Location: location}
		}
		return md, nil
	}

	revs, err := list(ctx, req.ID.ModuleID())
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of %s: %w", req.ID.ModuleID(), err)
	}
	infos := make([]latest.Info, 0, len(revs))
	for _, rev := range revs {
		if o.matcher.Accept(constraint, rev) {
			infos = append(infos, latest.Info{Revision: rev})
		}
	}
	o.log().Debug("listed revisions",
		"module", req.ID.ModuleID(),
		"constraint", constraint,
		"candidates", len(infos),
		"resolver", location)

	accept := func(md *module.Descriptor) bool {
		if o.matcher.NeedsDescriptor(constraint) && !o.matcher.AcceptDescriptor(constraint, md) {
			return false
		}
		return req.AsOf.IsZero() || !md.Published.After(req.AsOf)
	}
	loadCandidate := func(rev string) (*module.Descriptor, error) {
		md, err := load(ctx, req.ID.WithRevision(rev))
		if err != nil {
			if errors.Is(err, ErrModuleNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if !accept(md) {
			return nil, nil
		}
		return md, nil
	}

	if o.strategy.Name() == latest.Time {
		// publication dates are only known once descriptors are loaded
		var mds []*module.Descriptor
		for i := range infos {
			md, err := loadCandidate(infos[i].Revision)
			if err != nil {
				return nil, err
			}
			if md != nil {
				mds = append(mds, md)
			}
		}
		loaded := make([]latest.Info, len(mds))
		for i, md := range mds {
			loaded[i] = latest.Info{Revision: md.ResolvedRevisionID().Revision, Published: md.Published}
		}
		best, err := latest.FindLatest(o.strategy, loaded)
		if err != nil {
			return nil, err
		}
		if best >= 0 {
			return mds[best], nil
		}
		return nil, &NotFoundError{ID: req.ID, Location: location}
	}

	if err := latest.Sort(o.strategy, infos); err != nil {
		return nil, err
	}
	needLoad := o.matcher.NeedsDescriptor(constraint) || !req.AsOf.IsZero()
	for i := len(infos) - 1; i >= 0; i-- {
		if !needLoad {
			return load(ctx, req.ID.WithRevision(infos[i].Revision))
		}
		md, err := loadCandidate(infos[i].Revision)
		if err != nil {
			return nil, err
		}
		if md != nil {
			return md, nil
		}
	}
	return nil, &NotFoundError{ID: req.ID, Location: location}
}
