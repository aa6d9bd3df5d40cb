package resolve

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
)

type conflictTask struct {
	node    *Node
	parent  *Node
	toEvict []*Node
}

// resolveConflict settles node against its siblings under parent, then
// carries the outcome up the ancestor chain. Steps run depth-first from an
// explicit stack.
func (r *runner) resolveConflict(node, parent *Node, toEvict []*Node) error {
	stack := []conflictTask{{node: node, parent: parent, toEvict: toEvict}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		next, err := r.resolveConflictStep(t)
		if err != nil {
			return err
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return nil
}

func (r *runner) resolveConflictStep(t conflictTask) ([]conflictTask, error) {
	node, parent := t.node, t.parent
	if parent == nil || node == parent || node.problem != nil {
		return nil, nil
	}
	rootConf := r.data.rootConf
	if r.checkConflictSolved(node, parent) {
		return nil, nil
	}

	mid := node.ModuleID()
	key := r.data.key(parent, mid)
	conflicts, resolved := r.computeConflicts(node, parent, t.toEvict, slices.Clone(r.data.selected[key]))

	mgr, err := r.conflictManager(parent, mid)
	if err != nil {
		return nil, err
	}
	selected, err := r.applyManager(mgr, parent, conflicts)
	if errors.Is(err, conflict.ErrUndecided) {
		r.log.Debug("conflict left undecided", "module", mid.String(), "parent", parent.String(), "manager", mgr.Name())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.data.markSolved(key, conflicts, true)
	r.cfg.Observer.ConflictResolved(mgr.Name(), len(conflicts), len(selected))
	if len(conflicts) > 1 {
		r.log.Debug("conflict resolved", "module", mid.String(), "parent", parent.String(),
			"manager", mgr.Name(), "candidates", len(conflicts), "selected", nodeNames(selected))
	}

	if slices.Contains(selected, node) {
		node.markSelected(rootConf)
		newlyEvicted := subtract(resolved, selected)
		for _, n := range newlyEvicted {
			r.evict(n, parent, mgr, selected)
		}
		r.data.setSelected(key, selected)
		r.data.setEvicted(key, appendUnique(subtract(r.data.evicted[key], selected), newlyEvicted...))
		return []conflictTask{{node: node, parent: parent.parent, toEvict: newlyEvicted}}, nil
	}

	// node lost: bring back any winner that was evicted earlier
	for _, s := range selected {
		if s.IsEvicted(rootConf) {
			s.markSelected(rootConf)
		}
	}
	evicted := appendUnique(slices.Clone(r.data.evicted[key]), t.toEvict...)
	evicted = appendUnique(evicted, node)
	r.data.setEvicted(key, subtract(evicted, selected))
	r.evict(node, parent, mgr, selected)

	prev := r.data.selected[key]
	if sameNodes(prev, selected) {
		return nil, nil
	}
	r.data.setSelected(key, selected)
	var next []conflictTask
	for _, s := range selected {
		if !slices.Contains(prev, s) {
			next = append(next, conflictTask{node: s, parent: parent.parent, toEvict: t.toEvict})
		}
	}
	return next, nil
}

func (r *runner) evict(n, parent *Node, mgr conflict.Manager, selected []*Node) {
	rootConf := r.data.rootConf
	if !n.IsEvicted(rootConf) {
		r.log.Debug("module evicted", "module", n.String(), "parent", parent.String(),
			"conf", rootConf, "manager", mgr.Name(), "selected", nodeNames(selected))
		r.cfg.Observer.Evicted(n, rootConf, false)
	}
	n.markEvicted(rootConf, parent, mgr, selected)
}

// checkConflictSolved reuses an earlier decision for node under parent,
// re-asserting it against the root's view of the module.
func (r *runner) checkConflictSolved(node, parent *Node) bool {
	key := r.data.key(parent, node.ModuleID())
	id := node.ResolvedID()
	if !r.data.isSolved(key, id) {
		return false
	}
	rootConf := r.data.rootConf
	if ed := r.evictionDataInRoot(node, parent); ed != nil {
		for _, s := range ed.Selected {
			if s.IsEvicted(rootConf) {
				s.markSelected(rootConf)
			}
		}
		node.markEvicted(rootConf, ed.Parent, ed.Manager, ed.Selected)
	} else {
		node.markSelected(rootConf)
	}
	return true
}

// evictionDataInRoot returns eviction data when the root has selected
// other revisions of node's module, or nil.
func (r *runner) evictionDataInRoot(node, ancestor *Node) *EvictionData {
	root := r.data.root
	sel := r.data.selected[r.data.key(root, node.ModuleID())]
	if len(sel) == 0 || containsID(sel, node.ResolvedID()) {
		return nil
	}
	mgr, err := r.conflictManager(root, node.ModuleID())
	if err != nil {
		mgr = nil
	}
	return &EvictionData{RootConf: r.data.rootConf, Parent: ancestor, Manager: mgr, Selected: slices.Clone(sel)}
}

// computeConflicts returns the candidate set for node under parent and the
// previously resolved set with toEvict removed.
func (r *runner) computeConflicts(node, parent *Node, toEvict, resolved []*Node) ([]*Node, []*Node) {
	mid := node.ModuleID()
	removed := false
	if len(toEvict) > 0 {
		kept := resolved[:0:0]
		for _, n := range resolved {
			if slices.Contains(toEvict, n) {
				removed = true
				continue
			}
			kept = append(kept, n)
		}
		resolved = kept
	}

	conflicts := []*Node{node}
	switch {
	case removed:
		// Something resolved here was evicted higher up: rebuild from the
		// parent's dependencies.
		for _, dep := range r.directDependencies(parent) {
			if dep.ModuleID() == mid && !slices.Contains(toEvict, dep) {
				conflicts = appendUnique(conflicts, dep)
			}
			for _, n := range r.data.selected[r.data.key(dep, mid)] {
				if !slices.Contains(toEvict, n) {
					conflicts = appendUnique(conflicts, n)
				}
			}
		}
	case len(resolved) == 0 && node.parent != parent:
		// Reached through propagation with nothing cached: the parent's own
		// descriptor names the competing revision.
		if parent.md != nil {
			for _, dd := range parent.md.Dependencies {
				if dd.Dependency.ModuleID() != mid {
					continue
				}
				if n := r.data.lookup(dd.Dependency); n != nil {
					conflicts = appendUnique(conflicts, n)
					break
				}
			}
		}
	default:
		conflicts = appendUnique(conflicts, resolved...)
	}

	out := conflicts[:0]
	for _, n := range conflicts {
		if n == node || n.problem == nil {
			out = append(out, n)
		}
	}
	return out, resolved
}

// directDependencies returns the table nodes for parent's dependency
// descriptors in the configurations parent takes part in.
func (r *runner) directDependencies(parent *Node) []*Node {
	if parent.md == nil {
		return nil
	}
	confs := parent.rootConfs[r.data.rootConf]
	if parent.root && len(confs) == 0 {
		confs = []string{r.data.rootConf}
	}
	var out []*Node
	for _, dd := range parent.md.Dependencies {
		used := false
		for _, c := range confs {
			if len(dd.DependencyConfigurations(c)) > 0 {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		if n := r.data.lookup(dd.Dependency); n != nil {
			out = appendUnique(out, n)
		}
	}
	return out
}

// conflictManager returns the manager parent's descriptor routes mid to,
// falling back to the default.
func (r *runner) conflictManager(parent *Node, mid module.ID) (conflict.Manager, error) {
	if parent.md != nil {
		for _, rule := range parent.md.ConflictRules {
			pm, err := r.cfg.PatternMatchers.Get(rule.Matcher)
			if err != nil {
				return nil, fmt.Errorf("conflict rule in %s: %w", parent, err)
			}
			ok, err := matcher.MatchModule(pm, module.NewID(orAny(rule.Organisation), orAny(rule.Module)), mid)
			if err != nil {
				return nil, fmt.Errorf("conflict rule in %s: %w", parent, err)
			}
			if ok {
				mgr, err := r.cfg.ConflictManagers.Get(rule.Manager)
				if err != nil {
					return nil, fmt.Errorf("conflict rule in %s: %w", parent, err)
				}
				return mgr, nil
			}
		}
	}
	return r.cfg.ConflictManagers.Default(), nil
}

func (r *runner) applyManager(mgr conflict.Manager, parent *Node, conflicts []*Node) ([]*Node, error) {
	candidates := make([]conflict.Candidate, len(conflicts))
	for i, n := range conflicts {
		candidates[i] = n
	}
	chosen, err := mgr.Resolve(parent, candidates)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(chosen))
	for _, c := range chosen {
		out = append(out, c.(*Node))
	}
	return out, nil
}

func nodeNames(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return out
}

// settleAtRoot lets the root decide between revisions of a module that are
// all still live once the walk of the current root configuration is done.
// The winners are then fetched in the configurations asked of the losers.
func (r *runner) settleAtRoot() error {
	for i := 0; ; i++ {
		if i > 2*len(r.data.order) {
			r.log.Warn("conflicts left open at root", "module", r.data.root.String(), "conf", r.data.rootConf)
			return nil
		}
		settled, err := r.settleOneAtRoot()
		if err != nil || settled {
			return err
		}
	}
}

// settleOneAtRoot settles the first module with several live revisions. It
// reports whether there was nothing left to settle.
func (r *runner) settleOneAtRoot() (bool, error) {
	root := r.data.root
	rootConf := r.data.rootConf
	order, live := r.liveByModule()
	for _, mid := range order {
		nodes := live[mid]
		if len(nodes) < 2 {
			continue
		}
		mgr, err := r.conflictManager(root, mid)
		if err != nil {
			return false, err
		}
		selected, err := r.applyManager(mgr, root, nodes)
		if errors.Is(err, conflict.ErrUndecided) {
			r.log.Debug("conflict left undecided", "module", mid.String(), "parent", root.String(), "manager", mgr.Name())
			continue
		}
		if err != nil {
			return false, err
		}
		losers := subtract(nodes, selected)
		if len(losers) == 0 {
			continue
		}
		r.cfg.Observer.ConflictResolved(mgr.Name(), len(nodes), len(selected))
		r.log.Debug("conflict settled at root", "module", mid.String(), "conf", rootConf,
			"manager", mgr.Name(), "candidates", len(nodes), "selected", nodeNames(selected))

		key := r.data.key(root, mid)
		r.data.markSolved(key, nodes, true)
		r.data.setSelected(key, appendUnique(subtract(r.data.selected[key], losers), selected...))
		r.data.setEvicted(key, appendUnique(subtract(r.data.evicted[key], selected), losers...))
		for _, l := range losers {
			r.evict(l, root, mgr, selected)
		}
		for _, l := range losers {
			for _, c := range l.rootConfs[rootConf] {
				for _, s := range selected {
					if err := r.fetch(s, c, true); err != nil {
						return false, err
					}
				}
			}
		}
		return false, nil
	}
	return true, nil
}

// liveByModule groups the nodes that are selected in the current root
// configuration and reachable from the root through selected callers.
func (r *runner) liveByModule() ([]module.ID, map[module.ID][]*Node) {
	rootConf := r.data.rootConf
	nodes := r.data.nodes()
	live := make(map[*Node]bool)
	for changed := true; changed; {
		changed = false
		for _, n := range nodes {
			if live[n] || n.problem != nil || n.IsEvicted(rootConf) || !slices.Contains(n.rootConfOrder, rootConf) {
				continue
			}
			for _, c := range n.callers[rootConf] {
				if cn := c.Node.realNode(); cn.root || live[cn] {
					live[n] = true
					changed = true
					break
				}
			}
		}
	}

	var order []module.ID
	groups := make(map[module.ID][]*Node)
	for _, n := range nodes {
		if !live[n] {
			continue
		}
		mid := n.ModuleID()
		if _, ok := groups[mid]; !ok {
			order = append(order, mid)
		}
		groups[mid] = append(groups[mid], n)
	}
	return order, groups
}
