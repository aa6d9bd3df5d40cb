package resolve

import (
	"context"
	"slices"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/version"
)

type conflictKey struct {
	parent   module.RevisionID
	child    module.ID
	rootConf string
}

type fetchKey struct {
	id   module.RevisionID
	conf string
}

// resolveData is the state shared by every node of one run.
type resolveData struct {
	ctx      context.Context
	versions version.Matcher

	table map[module.RevisionID]*Node
	order []*Node
	root  *Node

	// rootConf is the root configuration currently expanded.
	rootConf string

	// fetched holds the (node, configuration) pairs expanded in rootConf.
	fetched map[fetchKey]bool

	// following guards the expansion of eviction winners.
	following map[fetchKey]bool

	selected map[conflictKey][]*Node
	evicted  map[conflictKey][]*Node

	// solved holds the revision id each node had when it was decided
	// under a key. A dynamic node decided before loading no longer matches
	// once its revision is known, and is decided again.
	solved map[conflictKey]map[*Node]module.RevisionID
}

func newResolveData(ctx context.Context, vm version.Matcher) *resolveData {
	return &resolveData{
		ctx:       ctx,
		versions:  vm,
		table:     make(map[module.RevisionID]*Node),
		fetched:   make(map[fetchKey]bool),
		following: make(map[fetchKey]bool),
		selected:  make(map[conflictKey][]*Node),
		evicted:   make(map[conflictKey][]*Node),
		solved:    make(map[conflictKey]map[*Node]module.RevisionID),
	}
}

func (d *resolveData) startRootConf(conf string) {
	d.rootConf = conf
	clear(d.fetched)
	clear(d.following)
}

func (d *resolveData) lookup(id module.RevisionID) *Node {
	n, ok := d.table[id]
	if !ok {
		return nil
	}
	return n.realNode()
}

func (d *resolveData) register(id module.RevisionID, n *Node) {
	if _, ok := d.table[id]; !ok && !slices.Contains(d.order, n) {
		d.order = append(d.order, n)
	}
	d.table[id] = n
}

// nodes returns the canonical non-root nodes in creation order.
func (d *resolveData) nodes() []*Node {
	var out []*Node
	for _, n := range d.order {
		if n.real == nil && !n.root {
			out = append(out, n)
		}
	}
	return out
}

func (d *resolveData) key(parent *Node, mid module.ID) conflictKey {
	return conflictKey{parent: parent.ResolvedID(), child: mid, rootConf: d.rootConf}
}

func (d *resolveData) setSelected(key conflictKey, nodes []*Node) {
	d.selected[key] = nodes
	d.markSolved(key, nodes, false)
}

func (d *resolveData) setEvicted(key conflictKey, nodes []*Node) {
	d.evicted[key] = nodes
	d.markSolved(key, nodes, false)
}

// markSolved records the current revision of nodes under key. Unless
// decided is set, nodes already recorded keep their earlier revision.
func (d *resolveData) markSolved(key conflictKey, nodes []*Node, decided bool) {
	ids := d.solved[key]
	if ids == nil {
		ids = make(map[*Node]module.RevisionID)
		d.solved[key] = ids
	}
	for _, n := range nodes {
		if _, ok := ids[n]; ok && !decided {
			continue
		}
		ids[n] = n.ResolvedID()
	}
}

// isSolved reports whether a conflict under key was decided for id.
func (d *resolveData) isSolved(key conflictKey, id module.RevisionID) bool {
	ids := d.solved[key]
	for _, nodes := range [][]*Node{d.selected[key], d.evicted[key]} {
		for _, n := range nodes {
			if ids[n] == id {
				return true
			}
		}
	}
	return false
}

// replace swaps a placeholder for its canonical node in the conflict
// caches.
func (d *resolveData) replace(old, canonical *Node) {
	for _, m := range []map[conflictKey][]*Node{d.selected, d.evicted} {
		for k, nodes := range m {
			if i := slices.Index(nodes, old); i >= 0 {
				nodes = slices.Delete(slices.Clone(nodes), i, i+1)
				m[k] = appendUnique(nodes, canonical)
			}
		}
	}
}

func appendUnique(nodes []*Node, add ...*Node) []*Node {
	for _, n := range add {
		if !slices.Contains(nodes, n) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func subtract(nodes, remove []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if !slices.Contains(remove, n) {
			out = append(out, n)
		}
	}
	return out
}

func containsID(nodes []*Node, id module.RevisionID) bool {
	return slices.ContainsFunc(nodes, func(n *Node) bool { return n.ResolvedID() == id })
}

func sameNodes(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for _, n := range a {
		if !slices.Contains(b, n) {
			return false
		}
	}
	return true
}
