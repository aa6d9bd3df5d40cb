package graph

import (
	"github.com/eed3si9n/ivy/module"
)

// Key identifies a node by its resolved revision id.
type Key = module.RevisionID

// Graph is a resolved dependency graph seen from one root configuration,
// or from all of them. It supports traversal in both directions and
// explains evictions.
type Graph struct {
	// Root is the module that was resolved.
	Root Key

	// Conf is the root configuration the graph was built for, empty when it
	// merges every configuration.
	Conf string

	// Modules holds every node, the root included.
	Modules map[Key]*Node
}

// Node is one module revision in the graph.
type Node struct {
	Key Key

	// Dependencies are the revisions this node pulled in, sorted.
	Dependencies []Key

	// Dependents are the nodes that required this one, sorted.
	Dependents []Key

	// RequestedRevisions maps each dependent to the revision constraint it
	// asked for.
	RequestedRevisions map[Key]string

	// Confs are the node's own configurations taking part in the graph.
	Confs []string

	IsRoot  bool
	Evicted bool

	// Eviction explains an eviction; nil for selected nodes.
	Eviction *EvictionInfo

	// Problem holds the load failure message, if any.
	Problem string
}

// EvictionInfo explains why a node lost.
type EvictionInfo struct {
	// Manager is the conflict manager that decided. Empty for a transitive
	// eviction.
	Manager string `json:"manager,omitempty"`

	// Parent is the node under which the conflict was resolved.
	Parent Key `json:"-"`

	// SelectedBy lists the winning revisions.
	SelectedBy []Key `json:"-"`

	// Transitive is set when every caller of the node was evicted.
	Transitive bool `json:"transitive,omitempty"`
}

// Explanation describes how a module ended up in the graph.
type Explanation struct {
	Module   Key
	Evicted  bool
	Eviction *EvictionInfo

	// DependencyChains shows every path from the root to the module.
	DependencyChains []DependencyChain

	// Requests lists the revisions asked for by each dependent.
	Requests []Request
}

// Request is one dependent asking for a revision constraint.
type Request struct {
	By         Key
	Constraint string
}

// DependencyChain is a path from the root to a module.
type DependencyChain struct {
	Path []Key

	// RequestedRevision is the constraint the last hop asked for.
	RequestedRevision string
}

// String renders the chain as "a -> b -> c (requested 1.+)".
func (c DependencyChain) String() string {
	if len(c.Path) == 0 {
		return ""
	}
	result := c.Path[0].String()
	for i := 1; i < len(c.Path); i++ {
		result += " -> " + c.Path[i].String()
	}
	if c.RequestedRevision != "" {
		result += " (requested " + c.RequestedRevision + ")"
	}
	return result
}

// Stats summarises a graph.
type Stats struct {
	TotalModules           int
	DirectDependencies     int
	TransitiveDependencies int
	Evicted                int
	Problems               int
	MaxDepth               int
}
