// Package toposort orders modules so that every module comes after the
// modules it depends on.
//
// Edges come from dependency descriptors and only count when the version
// matcher accepts the target's revision for the requested constraint.
// Items outside the input set are ignored; cycles are broken at the edge
// that closes them and reported through OnCycle.
package toposort

import (
	"slices"
	"sort"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/version"
)

// Sorter sorts items of any type given accessors for their identity and
// descriptor.
type Sorter[T any] struct {
	// ID returns the resolved revision id of an item.
	ID func(T) module.RevisionID

	// Descriptor returns the item's descriptor, or nil when the item has
	// none (it is then a leaf).
	Descriptor func(T) *module.Descriptor

	// Matcher decides which items satisfy a dependency constraint. Nil
	// means exact matching.
	Matcher version.Matcher

	// OnCycle, if set, receives each cycle found, as the chain of ids from
	// the first repeated item back to itself.
	OnCycle func(cycle []module.RevisionID)
}

// Sort returns items least-dependent first. The result only depends on the
// set of items, not on their input order.
func (s Sorter[T]) Sort(items []T) []T {
	m := s.Matcher
	if m == nil {
		m = version.Exact()
	}
	ordered := slices.Clone(items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return s.ID(ordered[i]).String() < s.ID(ordered[j]).String()
	})

	byModule := make(map[module.ID][]int)
	for i, it := range ordered {
		mid := s.ID(it).ModuleID()
		byModule[mid] = append(byModule[mid], i)
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make([]int, len(ordered))
	var stack []int
	out := make([]T, 0, len(ordered))

	var visit func(i int)
	visit = func(i int) {
		switch state[i] {
		case done:
			return
		case inProgress:
			if s.OnCycle != nil {
				start := slices.Index(stack, i)
				cycle := make([]module.RevisionID, 0, len(stack)-start+1)
				for _, k := range stack[start:] {
					cycle = append(cycle, s.ID(ordered[k]))
				}
				cycle = append(cycle, s.ID(ordered[i]))
				s.OnCycle(cycle)
			}
			return
		}
		state[i] = inProgress
		stack = append(stack, i)
		if md := s.Descriptor(ordered[i]); md != nil {
			for _, dd := range md.Dependencies {
				for _, j := range byModule[dd.Dependency.ModuleID()] {
					if j != i && version.AcceptID(m, dd.Dependency, s.ID(ordered[j])) {
						visit(j)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		out = append(out, ordered[i])
	}

	for i := range ordered {
		visit(i)
	}
	return out
}

// Descriptors sorts module descriptors least-dependent first.
func Descriptors(mds []*module.Descriptor, m version.Matcher, onCycle func([]module.RevisionID)) []*module.Descriptor {
	return Sorter[*module.Descriptor]{
		ID:         (*module.Descriptor).ResolvedRevisionID,
		Descriptor: func(md *module.Descriptor) *module.Descriptor { return md },
		Matcher:    m,
		OnCycle:    onCycle,
	}.Sort(mds)
}
