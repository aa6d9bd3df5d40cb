package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const separatorWidth = 60

// JSONGraph is the JSON rendering of a graph.
type JSONGraph struct {
	Root    string       `json:"root"`
	Conf    string       `json:"conf,omitempty"`
	Modules []JSONModule `json:"modules"`
}

// JSONModule is one node in JSONGraph.
type JSONModule struct {
	Organisation string        `json:"organisation"`
	Name         string        `json:"name"`
	Revision     string        `json:"revision"`
	Root         bool          `json:"root,omitempty"`
	Confs        []string      `json:"confs,omitempty"`
	Dependencies []string      `json:"dependencies,omitempty"`
	RequiredBy   []string      `json:"required_by,omitempty"`
	Evicted      *JSONEviction `json:"evicted,omitempty"`
	Problem      string        `json:"problem,omitempty"`
}

// JSONEviction is the JSON rendering of EvictionInfo.
type JSONEviction struct {
	Manager    string   `json:"manager,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	SelectedBy []string `json:"selected_by,omitempty"`
	Transitive bool     `json:"transitive,omitempty"`
}

// ToJSON renders the graph with modules sorted by key.
func (g *Graph) ToJSON() ([]byte, error) {
	out := JSONGraph{Root: g.Root.String(), Conf: g.Conf, Modules: make([]JSONModule, 0, len(g.Modules))}
	for _, key := range g.sortedKeys() {
		n := g.Modules[key]
		m := JSONModule{
			Organisation: key.Organisation,
			Name:         key.Name,
			Revision:     key.Revision,
			Root:         n.IsRoot,
			Confs:        n.Confs,
			Dependencies: keyStrings(n.Dependencies),
			RequiredBy:   keyStrings(n.Dependents),
			Problem:      n.Problem,
		}
		if n.Evicted {
			m.Evicted = &JSONEviction{}
			if e := n.Eviction; e != nil {
				m.Evicted.Manager = e.Manager
				m.Evicted.SelectedBy = keyStrings(e.SelectedBy)
				m.Evicted.Transitive = e.Transitive
				if !e.Transitive {
					m.Evicted.Parent = e.Parent.String()
				}
			}
		}
		out.Modules = append(out.Modules, m)
	}
	return json.MarshalIndent(out, "", "  ")
}

func keyStrings(keys []Key) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// ToDOT renders the graph in Graphviz DOT format. Evicted nodes are dashed,
// nodes with a problem are red.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	keys := g.sortedKeys()
	for _, key := range keys {
		node := g.Modules[key]
		attrs := `label="` + key.ModuleID().String() + `\n` + key.Revision + `"`
		if node.IsRoot {
			attrs += ", style=bold"
		}
		if node.Evicted {
			attrs += ", style=dashed"
		}
		if node.Problem != "" {
			attrs += ", color=red"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", key.String(), attrs)
	}

	buf.WriteString("\n")
	for _, key := range keys {
		for _, dep := range g.Modules[key].Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", key.String(), dep.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText renders summary counts followed by the dependency tree.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dependency Graph (root: %s)\n", g.Root)
	if g.Conf != "" {
		fmt.Fprintf(&buf, "Configuration: %s\n", g.Conf)
	}
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	fmt.Fprintf(&buf, "Total modules: %d\n", stats.TotalModules)
	fmt.Fprintf(&buf, "Direct dependencies: %d\n", stats.DirectDependencies)
	fmt.Fprintf(&buf, "Transitive dependencies: %d\n", stats.TransitiveDependencies)
	fmt.Fprintf(&buf, "Max depth: %d\n", stats.MaxDepth)
	if stats.Evicted > 0 {
		fmt.Fprintf(&buf, "Evicted: %d\n", stats.Evicted)
	}
	if stats.Problems > 0 {
		fmt.Fprintf(&buf, "Problems: %d\n", stats.Problems)
	}
	buf.WriteString("\nDependency Tree:\n")
	g.printTree(&buf, g.Root, "", true, make(map[Key]bool))

	return buf.String()
}

func (g *Graph) printTree(buf *bytes.Buffer, key Key, prefix string, isLast bool, visited map[Key]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if prefix == "" && key == g.Root {
		buf.WriteString(key.String())
	} else {
		buf.WriteString(prefix + connector + key.String())
	}

	node := g.Modules[key]
	if node != nil {
		buf.WriteString(nodeSuffix(node))
	}
	if visited[key] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")

	visited[key] = true
	defer delete(visited, key)
	if node == nil || node.Evicted {
		return
	}

	for i, dep := range node.Dependencies {
		childPrefix := prefix
		if key != g.Root || prefix != "" {
			if isLast {
				childPrefix += "    "
			} else {
				childPrefix += "│   "
			}
		}
		g.printTree(buf, dep, childPrefix, i == len(node.Dependencies)-1, visited)
	}
}

func nodeSuffix(n *Node) string {
	switch {
	case n.Problem != "":
		return " (problem: " + n.Problem + ")"
	case n.Evicted && n.Eviction != nil && n.Eviction.Transitive:
		return " (evicted: no live caller)"
	case n.Evicted && n.Eviction != nil:
		return " (evicted by " + strings.Join(keyStrings(n.Eviction.SelectedBy), ", ") + ")"
	case n.Evicted:
		return " (evicted)"
	}
	return ""
}

// ToExplainText renders Explain(key) for humans.
func (g *Graph) ToExplainText(key Key) (string, error) {
	ex, err := g.Explain(key)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Explanation for: %s\n", ex.Module)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	if ex.Evicted {
		buf.WriteString("Status: evicted\n")
		if e := ex.Eviction; e != nil {
			if e.Transitive {
				buf.WriteString("  Every caller of this revision was evicted.\n")
			} else {
				fmt.Fprintf(&buf, "  Conflict manager: %s\n", e.Manager)
				fmt.Fprintf(&buf, "  Resolved under: %s\n", e.Parent)
				fmt.Fprintf(&buf, "  Selected instead: %s\n", strings.Join(keyStrings(e.SelectedBy), ", "))
			}
		}
	} else {
		buf.WriteString("Status: selected\n")
	}

	if len(ex.Requests) > 0 {
		buf.WriteString("\nRequested by:\n")
		for _, r := range ex.Requests {
			fmt.Fprintf(&buf, "  %s asked for %s\n", r.By, r.Constraint)
		}
	}
	if len(ex.DependencyChains) > 0 {
		buf.WriteString("\nDependency Chains (paths from root):\n")
		for i, chain := range ex.DependencyChains {
			fmt.Fprintf(&buf, "  %d. %s\n", i+1, chain)
		}
	}
	return buf.String(), nil
}
