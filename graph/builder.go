package graph

import (
	"slices"
	"sort"

	"github.com/eed3si9n/ivy/resolve"
)

// Build constructs the graph of res for rootConf. An empty rootConf merges
// every expanded root configuration; a node then counts as evicted only
// when it is evicted in all of them.
func Build(res *resolve.Result, rootConf string) *Graph {
	g := &Graph{
		Root:    res.Root.ResolvedID(),
		Conf:    rootConf,
		Modules: make(map[Key]*Node),
	}
	root := g.node(g.Root)
	root.IsRoot = true
	if rootConf != "" {
		root.Confs = []string{rootConf}
	} else {
		root.Confs = slices.Clone(res.Confs)
	}

	for _, n := range res.Nodes {
		rcs := n.RootConfigurations()
		if n.Problem() != nil {
			// never loaded, so only its callers tell where it was required
			rcs = nil
			for _, rc := range res.Confs {
				if len(n.Callers(rc)) > 0 {
					rcs = append(rcs, rc)
				}
			}
		}
		if rootConf != "" {
			if !slices.Contains(rcs, rootConf) {
				continue
			}
			rcs = []string{rootConf}
		}
		if len(rcs) == 0 {
			continue
		}

		gn := g.node(n.ResolvedID())
		for _, rc := range rcs {
			for _, conf := range n.Configurations(rc) {
				if !slices.Contains(gn.Confs, conf) {
					gn.Confs = append(gn.Confs, conf)
				}
			}
			for _, c := range n.Callers(rc) {
				parent := c.Node.ResolvedID()
				if parent == gn.Key {
					continue
				}
				constraint := ""
				if c.Dependency != nil {
					constraint = c.Dependency.Dependency.Revision
				}
				g.edge(parent, gn.Key, constraint)
			}
		}
		if err := n.Problem(); err != nil {
			gn.Problem = err.Error()
		}

		if rootConf != "" {
			gn.Evicted = n.IsEvicted(rootConf)
		} else {
			gn.Evicted = n.IsCompletelyEvicted()
		}
		if gn.Evicted {
			for _, rc := range rcs {
				if ed := n.EvictionData(rc); ed != nil {
					gn.Eviction = evictionInfo(ed)
					break
				}
			}
		}
	}

	for _, gn := range g.Modules {
		sortKeys(gn.Dependencies)
		sortKeys(gn.Dependents)
	}
	return g
}

func (g *Graph) node(key Key) *Node {
	if n, ok := g.Modules[key]; ok {
		return n
	}
	n := &Node{
		Key:                key,
		RequestedRevisions: make(map[Key]string),
	}
	g.Modules[key] = n
	return n
}

func (g *Graph) edge(from, to Key, constraint string) {
	parent := g.node(from)
	child := g.node(to)
	if !slices.Contains(parent.Dependencies, to) {
		parent.Dependencies = append(parent.Dependencies, to)
	}
	if !slices.Contains(child.Dependents, from) {
		child.Dependents = append(child.Dependents, from)
	}
	if _, ok := child.RequestedRevisions[from]; !ok {
		child.RequestedRevisions[from] = constraint
	}
}

func evictionInfo(ed *resolve.EvictionData) *EvictionInfo {
	if ed.IsTransitive() {
		return &EvictionInfo{Transitive: true}
	}
	info := &EvictionInfo{Parent: ed.Parent.ResolvedID()}
	if ed.Manager != nil {
		info.Manager = ed.Manager.Name()
	}
	for _, s := range ed.Selected {
		info.SelectedBy = append(info.SelectedBy, s.ResolvedID())
	}
	sortKeys(info.SelectedBy)
	return info
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}

// sortedKeys returns the graph's keys in string order.
func (g *Graph) sortedKeys() []Key {
	keys := make([]Key, 0, len(g.Modules))
	for k := range g.Modules {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}
