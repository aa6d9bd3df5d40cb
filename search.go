package ivy

import (
	"context"
	"fmt"
	"sort"

	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
	"github.com/eed3si9n/ivy/version"
)

// FindModuleRevisionIDs lists the revisions r knows whose organisation,
// name and revision match pattern under pm. Empty pattern fields match
// everything. A resolver that cannot list organisations or modules is
// asked directly for the ones named in pattern.
//
// The result is sorted by module id, then by revision, oldest first.
func FindModuleRevisionIDs(ctx context.Context, r repository.Resolver, pattern module.RevisionID, pm matcher.PatternMatcher) ([]module.RevisionID, error) {
	orgM, err := pm.Compile(orAny(pattern.Organisation))
	if err != nil {
		return nil, fmt.Errorf("organisation pattern: %w", err)
	}
	nameM, err := pm.Compile(orAny(pattern.Name))
	if err != nil {
		return nil, fmt.Errorf("module pattern: %w", err)
	}
	revM, err := pm.Compile(orAny(pattern.Revision))
	if err != nil {
		return nil, fmt.Errorf("revision pattern: %w", err)
	}

	orgs, err := r.ListOrganisations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organisations on %s: %w", r.Name(), err)
	}
	if len(orgs) == 0 && pattern.Organisation != "" {
		orgs = []string{pattern.Organisation}
	}

	seen := make(map[module.RevisionID]bool)
	var out []module.RevisionID
	for _, org := range orgs {
		if !orgM.Matches(org) {
			continue
		}
		mods, err := r.ListModules(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("list modules of %s on %s: %w", org, r.Name(), err)
		}
		if len(mods) == 0 && pattern.Name != "" {
			mods = []string{pattern.Name}
		}
		for _, mod := range mods {
			if !nameM.Matches(mod) {
				continue
			}
			mid := module.NewID(org, mod)
			revs, err := r.ListRevisions(ctx, mid)
			if err != nil {
				return nil, fmt.Errorf("list revisions of %s on %s: %w", mid, r.Name(), err)
			}
			for _, rev := range revs {
				id := module.NewRevisionID(org, mod, rev)
				if revM.Matches(rev) && !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Organisation != b.Organisation {
			return a.Organisation < b.Organisation
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return version.Compare(a.Revision, b.Revision) < 0
	})
	return out, nil
}

// Search runs FindModuleRevisionIDs on the named resolver with the named
// pattern matcher.
func (s *Settings) Search(ctx context.Context, resolverName, matcherName string, pattern module.RevisionID) ([]module.RevisionID, error) {
	r, err := s.Resolver(resolverName)
	if err != nil {
		return nil, err
	}
	pm, err := s.PatternMatcher(matcherName)
	if err != nil {
		return nil, err
	}
	return FindModuleRevisionIDs(ctx, r, pattern, pm)
}
