package graph

import (
	"fmt"

	"github.com/eed3si9n/ivy/module"
)

// Get returns the node for key, or nil.
func (g *Graph) Get(key Key) *Node {
	return g.Modules[key]
}

// Revisions returns every node of module mid, sorted by key.
func (g *Graph) Revisions(mid module.ID) []*Node {
	var out []*Node
	for _, key := range g.sortedKeys() {
		if key.ModuleID() == mid {
			out = append(out, g.Modules[key])
		}
	}
	return out
}

// Selected returns the node of mid that survived, or nil.
func (g *Graph) Selected(mid module.ID) *Node {
	for _, n := range g.Revisions(mid) {
		if !n.Evicted && n.Problem == "" {
			return n
		}
	}
	return nil
}

// Contains reports whether the graph holds key.
func (g *Graph) Contains(key Key) bool {
	_, ok := g.Modules[key]
	return ok
}

// DirectDeps returns the direct dependencies of key.
func (g *Graph) DirectDeps(key Key) []Key {
	if node := g.Modules[key]; node != nil {
		return node.Dependencies
	}
	return nil
}

// DirectDependents returns the nodes that directly require key.
func (g *Graph) DirectDependents(key Key) []Key {
	if node := g.Modules[key]; node != nil {
		return node.Dependents
	}
	return nil
}

// TransitiveDeps returns every transitive dependency of key in
// breadth-first order.
func (g *Graph) TransitiveDeps(key Key) []Key {
	return g.walk(key, func(n *Node) []Key { return n.Dependencies })
}

// TransitiveDependents returns every node that transitively requires key,
// closest first.
func (g *Graph) TransitiveDependents(key Key) []Key {
	return g.walk(key, func(n *Node) []Key { return n.Dependents })
}

func (g *Graph) walk(start Key, next func(*Node) []Key) []Key {
	result := make([]Key, 0)
	visited := map[Key]bool{start: true}
	queue := []Key{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Modules[current]
		if node == nil {
			continue
		}
		for _, k := range next(node) {
			if !visited[k] {
				visited[k] = true
				result = append(result, k)
				queue = append(queue, k)
			}
		}
	}
	return result
}

// Path finds the shortest dependency path from one node to another, or nil.
func (g *Graph) Path(from, to Key) []Key {
	if from == to {
		return []Key{from}
	}

	type queueItem struct {
		key  Key
		path []Key
	}
	visited := map[Key]bool{from: true}
	queue := []queueItem{{key: from, path: []Key{from}}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Modules[current.key]
		if node == nil {
			continue
		}
		for _, dep := range node.Dependencies {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			path := make([]Key, len(current.path)+1)
			copy(path, current.path)
			path[len(current.path)] = dep
			if dep == to {
				return path
			}
			queue = append(queue, queueItem{key: dep, path: path})
		}
	}
	return nil
}

// AllPaths finds every acyclic path from one node to another. It can be
// expensive on large graphs.
func (g *Graph) AllPaths(from, to Key) [][]Key {
	var result [][]Key
	g.findAllPaths(from, to, []Key{from}, make(map[Key]bool), &result)
	return result
}

func (g *Graph) findAllPaths(current, target Key, path []Key, visited map[Key]bool, result *[][]Key) {
	if current == target {
		*result = append(*result, append([]Key(nil), path...))
		return
	}
	visited[current] = true
	defer delete(visited, current)

	node := g.Modules[current]
	if node == nil {
		return
	}
	for _, dep := range node.Dependencies {
		if !visited[dep] {
			g.findAllPaths(dep, target, append(path, dep), visited, result)
		}
	}
}

// Explain tells how key got into the graph and, if it lost, why.
func (g *Graph) Explain(key Key) (*Explanation, error) {
	node := g.Modules[key]
	if node == nil {
		return nil, fmt.Errorf("module %s not found in graph", key)
	}

	ex := &Explanation{
		Module:   key,
		Evicted:  node.Evicted,
		Eviction: node.Eviction,
	}
	for _, path := range g.AllPaths(g.Root, key) {
		chain := DependencyChain{Path: path}
		if len(path) >= 2 {
			chain.RequestedRevision = node.RequestedRevisions[path[len(path)-2]]
		}
		ex.DependencyChains = append(ex.DependencyChains, chain)
	}
	for _, by := range node.Dependents {
		ex.Requests = append(ex.Requests, Request{By: by, Constraint: node.RequestedRevisions[by]})
	}
	return ex, nil
}

// Stats returns counts over the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{TotalModules: len(g.Modules)}
	if root := g.Modules[g.Root]; root != nil {
		stats.DirectDependencies = len(root.Dependencies)
	}
	stats.TransitiveDependencies = max(stats.TotalModules-stats.DirectDependencies-1, 0)
	for _, node := range g.Modules {
		if node.Evicted {
			stats.Evicted++
		}
		if node.Problem != "" {
			stats.Problems++
		}
	}
	stats.MaxDepth = g.maxDepth()
	return stats
}

func (g *Graph) maxDepth() int {
	depths := make(map[Key]int)
	onPath := make(map[Key]bool)
	var maxDepth int

	var dfs func(key Key, depth int)
	dfs = func(key Key, depth int) {
		// a node already on the current path closes a cycle
		if onPath[key] {
			return
		}
		if d, ok := depths[key]; ok && d >= depth {
			return
		}
		depths[key] = depth
		maxDepth = max(maxDepth, depth)

		node := g.Modules[key]
		if node == nil {
			return
		}
		onPath[key] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, key)
	}
	dfs(g.Root, 0)
	return maxDepth
}

// Leaves returns the nodes without dependencies, sorted.
func (g *Graph) Leaves() []Key {
	var leaves []Key
	for _, key := range g.sortedKeys() {
		if len(g.Modules[key].Dependencies) == 0 {
			leaves = append(leaves, key)
		}
	}
	return leaves
}

// HasCycles reports whether the graph contains a cycle.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// FindCycles returns the cycles found by a depth-first walk in key order.
// Each cycle starts at the node the walk reached first.
func (g *Graph) FindCycles() [][]Key {
	var cycles [][]Key
	visited := make(map[Key]bool)
	onStack := make(map[Key]bool)
	var path []Key

	var visit func(key Key)
	visit = func(key Key) {
		visited[key] = true
		onStack[key] = true
		path = append(path, key)

		if node := g.Modules[key]; node != nil {
			for _, dep := range node.Dependencies {
				if !visited[dep] {
					visit(dep)
					continue
				}
				if !onStack[dep] {
					continue
				}
				for i, k := range path {
					if k == dep {
						cycles = append(cycles, append([]Key(nil), path[i:]...))
						break
					}
				}
			}
		}

		path = path[:len(path)-1]
		onStack[key] = false
	}

	if _, ok := g.Modules[g.Root]; ok {
		visit(g.Root)
	}
	for _, key := range g.sortedKeys() {
		if !visited[key] {
			visit(key)
		}
	}
	return cycles
}
