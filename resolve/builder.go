package resolve

import (
	"fmt"

	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

// fetch expands node in conf for the current root configuration, resolving
// conflicts with node's siblings before and after its descriptor is loaded.
func (r *runner) fetch(node *Node, conf string, shouldBePublic bool) error {
	node = node.realNode()
	if err := r.resolveConflict(node, node.parent, nil); err != nil {
		return err
	}
	loaded, err := r.loadData(node, conf, shouldBePublic)
	if err != nil {
		return err
	}
	node = node.realNode()
	if loaded {
		if err := r.resolveConflict(node, node.parent, nil); err != nil {
			return err
		}
	}

	rootConf := r.data.rootConf
	if node.md != nil && node.problem == nil && !node.IsEvicted(rootConf) {
		for _, c := range r.usableConfs(node, conf, shouldBePublic) {
			if err := r.doFetch(node, c); err != nil {
				return err
			}
		}
	}

	// The winners of an eviction must provide what was asked of the loser.
	if ed := node.EvictionData(rootConf); ed != nil {
		key := fetchKey{id: node.ResolvedID(), conf: conf}
		if r.data.following[key] {
			return nil
		}
		r.data.following[key] = true
		defer delete(r.data.following, key)
		for _, sel := range ed.Selected {
			if sel == node {
				continue
			}
			if err := r.fetch(sel, conf, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// doFetch expands the dependencies of one concrete configuration.
func (r *runner) doFetch(node *Node, conf string) error {
	c := node.md.Configuration(conf)
	if c == nil {
		attrs := []any{"module", node.String(), "conf", conf}
		if node.parent != nil {
			attrs = append(attrs, "requiredBy", node.parent.String())
		}
		r.log.Warn("configuration not found", attrs...)
		return nil
	}

	for _, ext := range c.Extends {
		node.addConfsToFetch(ext)
		if err := r.fetch(node, ext, false); err != nil {
			return err
		}
	}

	if node.DependencyDescriptor(node.parent) != nil && !r.isTransitive(node) {
		return nil
	}

	key := fetchKey{id: node.ResolvedID(), conf: conf}
	if r.data.fetched[key] {
		return nil
	}
	r.data.fetched[key] = true

	deps, err := r.dependencies(node, conf)
	if err != nil {
		return err
	}
	// Every dependency hangs off node before any of them is expanded, so an
	// eviction winner reached early still carries its conflicts up to node.
	for _, dep := range deps {
		if !isCircular(node, dep) {
			dep.setParent(node, conf)
		}
	}
	for _, dep := range deps {
		if isCircular(node, dep) {
			r.log.Warn("circular dependency", "module", node.String(), "dependency", dep.String())
			continue
		}
		dep.setParent(node, conf)
		for _, rc := range dep.requiredConfs[requiredKey{parent: node, conf: conf}] {
			if err := r.fetch(dep, rc, true); err != nil {
				return err
			}
		}
		dep = dep.realNode()
		for _, rc := range dep.pendingConfs() {
			if err := r.fetch(dep, rc, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// isTransitive reports whether dependencies of node may be expanded, given
// the edge and the parent configuration it was reached through.
func (r *runner) isTransitive(node *Node) bool {
	dd := node.DependencyDescriptor(node.parent)
	if dd != nil && !dd.IsTransitive() {
		return false
	}
	if node.parent == nil || node.parent.md == nil {
		return true
	}
	pc := node.parent.md.Configuration(node.parentConf)
	return pc == nil || pc.IsTransitive()
}

// isCircular reports whether dep's module already appears on the current
// traversal path ending at node.
func isCircular(node, dep *Node) bool {
	return onPath(node, dep.ModuleID())
}

// onPath reports whether a node of module mid is n or one of its ancestors.
// Parent links never form a cycle: a node only becomes the parent of a
// node whose module is not already on its own path.
func onPath(n *Node, mid module.ID) bool {
	for ; n != nil; n = n.parent {
		if n.ModuleID() == mid {
			return true
		}
	}
	return false
}

// loadData loads node's descriptor if needed and records conf as fetched.
// It reports whether a descriptor was loaded by this call.
func (r *runner) loadData(node *Node, conf string, shouldBePublic bool) (bool, error) {
	if node.problem != nil {
		return false, nil
	}
	rootConf := r.data.rootConf
	loaded := false
	if node.md == nil {
		loader, err := r.cfg.Resolver(node.ModuleID())
		if err != nil {
			return false, err
		}
		rev, err := loader.LoadDescriptor(r.data.ctx, repository.Request{
			ID:         node.id,
			Dependency: node.DependencyDescriptor(node.parent),
			AsOf:       r.cfg.Date,
			Transitive: r.isTransitive(node),
		})
		if err == nil && (rev == nil || rev.Descriptor == nil) {
			err = &repository.NotFoundError{ID: node.id, Location: loader.Name()}
		}
		if err != nil {
			if ctxErr := r.data.ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			node.problem = err
			r.log.Warn("module not resolved", "module", node.id.String(), "resolver", loader.Name(), "error", err)
			r.cfg.Observer.LoadFailed(node.id, err)
			return false, nil
		}

		resolved := rev.Descriptor.ResolvedRevisionID()
		if existing := r.data.lookup(resolved); existing != nil && existing != node {
			r.log.Debug("revision already known", "requested", node.id.String(), "resolved", resolved.String())
			r.merge(node, existing)
			node = existing
		} else if resolved != node.id {
			r.data.register(resolved, node)
			r.log.Debug("dynamic revision resolved", "requested", node.id.String(), "resolved", resolved.String())
		}
		if node.md == nil {
			node.md = rev.Descriptor
			node.resolvedID = resolved
			node.resolver = rev.Resolver
			node.artifacts = rev.ArtifactResolver
			node.problem = nil
			r.cfg.Observer.NodeLoaded(node)
		}
		loaded = true
	}

	for _, c := range r.usableConfs(node, conf, shouldBePublic) {
		if node.md.Configuration(c) != nil {
			node.addRootConf(rootConf, c)
		}
		node.markFetched(c)
	}
	if conf == "*" {
		node.markFetched(conf)
	}
	return loaded, nil
}

// merge replaces placeholder by canonical, which already holds the
// revision placeholder resolved to.
func (r *runner) merge(placeholder, canonical *Node) {
	canonical.absorb(placeholder, "")
	if !canonical.root && !onPath(placeholder.parent, canonical.ModuleID()) {
		canonical.setParent(placeholder.parent, placeholder.parentConf)
	}
	placeholder.real = canonical
	r.data.table[placeholder.id] = canonical
	r.data.replace(placeholder, canonical)
}

// usableConfs expands conf and drops private configurations requested from
// another module.
func (r *runner) usableConfs(node *Node, conf string, shouldBePublic bool) []string {
	confs := node.realConfs(conf)
	if !shouldBePublic || node.root || node.md == nil {
		return confs
	}
	out := confs[:0:0]
	for _, c := range confs {
		if mc := node.md.Configuration(c); mc != nil && !mc.IsPublic() {
			r.log.Warn("private configuration requested from outside", "module", node.String(), "conf", c)
			continue
		}
		out = append(out, c)
	}
	return out
}

// dependencies returns the nodes node depends on in conf, registering new
// ones in the table and recording edges and callers.
func (r *runner) dependencies(node *Node, conf string) ([]*Node, error) {
	rootConf := r.data.rootConf
	var deps []*Node
	for _, dd := range node.md.Dependencies {
		depConfs := dd.DependencyConfigurations(conf)
		if len(depConfs) == 0 {
			continue
		}
		mid := dd.Dependency.ModuleID()
		excluded, err := r.isExcluded(node, mid, conf)
		if err != nil {
			return nil, err
		}
		if excluded {
			r.log.Debug("dependency excluded", "module", node.String(), "conf", conf, "dependency", dd.Dependency.String())
			continue
		}
		r.log.Debug("dependency kept", "module", node.String(), "conf", conf, "dependency", dd.Dependency.String())

		dep := r.data.lookup(dd.Dependency)
		if dep == nil {
			dep = newNode(r.data, dd.Dependency)
			r.data.register(dd.Dependency, dep)
		}
		dep.addDependencyDescriptor(node, dd)
		if dep.problem != nil {
			continue
		}
		confs := dep.realConfsList(depConfs)
		dep.addConfsToFetch(confs...)
		dep.setRequiredConfs(node, conf, confs)
		dep.addCaller(rootConf, node, conf, depConfs, dd)
		deps = append(deps, dep)
	}
	return deps, nil
}

// isExcluded applies the root's module-wide excludes, node's own excludes
// and the exclusion rules on every path from the root to node.
func (r *runner) isExcluded(node *Node, mid module.ID, conf string) (bool, error) {
	rootConf := r.data.rootConf
	if ok, err := r.matchesAny(r.data.root.md.Excludes, mid, []string{rootConf}); ok || err != nil {
		return ok, err
	}
	if !node.root {
		if ok, err := r.matchesAny(node.md.Excludes, mid, []string{conf}); ok || err != nil {
			return ok, err
		}
	}
	return r.excludedBelow(node, mid, make(map[*Node]bool))
}

// excludedBelow reports whether every caller path reaching n excludes mid.
func (r *runner) excludedBelow(n *Node, mid module.ID, seen map[*Node]bool) (bool, error) {
	if n.root || seen[n] {
		return false, nil
	}
	seen[n] = true
	callers := n.callers[r.data.rootConf]
	if len(callers) == 0 {
		return false, nil
	}
	for _, c := range callers {
		ok, err := r.matchesAny(c.Dependency.Excludes, mid, c.Confs)
		if err != nil {
			return false, err
		}
		if !ok {
			if ok, err = r.excludedBelow(c.Node, mid, seen); err != nil {
				return false, err
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *runner) matchesAny(rules []module.ExcludeRule, mid module.ID, confs []string) (bool, error) {
	for _, rule := range rules {
		if !rule.AppliesTo(confs) {
			continue
		}
		pm, err := r.cfg.PatternMatchers.Get(rule.Matcher)
		if err != nil {
			return false, fmt.Errorf("exclude rule %s#%s: %w", rule.Organisation, rule.Module, err)
		}
		ok, err := matcher.MatchModule(pm, module.NewID(orAny(rule.Organisation), orAny(rule.Module)), mid)
		if err != nil {
			return false, fmt.Errorf("exclude rule %s#%s: %w", rule.Organisation, rule.Module, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func orAny(s string) string {
	if s == "" {
		return matcher.Any
	}
	return s
}
