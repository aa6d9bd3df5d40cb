// Package graph provides a query and export view over a resolution result.
//
// A Graph is built from the nodes of a resolve.Result, either for a single
// root configuration or merged across all of them, and lets callers:
//
//   - list direct and transitive dependencies and dependents
//   - find dependency paths between modules
//   - explain why a revision was evicted
//   - detect cycles
//
// # Building a Graph
//
//	res, _ := engine.Resolve(ctx, md, []string{"compile"})
//	g := graph.Build(res, "compile")
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON()
//	dot := g.ToDOT()
//	text := g.ToText()
package graph
