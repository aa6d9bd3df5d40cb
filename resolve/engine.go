// Package resolve builds the dependency graph of a module descriptor,
// resolves version conflicts per root configuration and orders the result.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
	"github.com/eed3si9n/ivy/toposort"
	"github.com/eed3si9n/ivy/version"
)

// ErrUnknownConfiguration is reported for a requested root configuration
// the descriptor does not declare.
var ErrUnknownConfiguration = errors.New("unknown configuration")

// DescriptorLoader is the part of a dependency resolver the engine uses.
type DescriptorLoader interface {
	Name() string
	LoadDescriptor(ctx context.Context, req repository.Request) (*repository.ResolvedRevision, error)
}

// Observer receives engine events. Implementations must be cheap.
type Observer interface {
	NodeLoaded(n *Node)
	LoadFailed(id module.RevisionID, err error)
	ConflictResolved(manager string, candidates, selected int)
	Evicted(n *Node, rootConf string, transitive bool)
}

type nopObserver struct{}

func (nopObserver) NodeLoaded(*Node)                    {}
func (nopObserver) LoadFailed(module.RevisionID, error) {}
func (nopObserver) ConflictResolved(string, int, int)   {}
func (nopObserver) Evicted(*Node, string, bool)         {}

// Config wires the engine to its collaborators.
type Config struct {
	// Resolver returns the loader responsible for a module. An error is a
	// configuration error and aborts the run.
	Resolver func(module.ID) (DescriptorLoader, error)

	ConflictManagers *conflict.Registry
	PatternMatchers  *matcher.Registry
	VersionMatcher   version.Matcher

	// Date bounds dynamic revision lookups. Zero means now.
	Date time.Time

	Logger   *slog.Logger
	Observer Observer
}

func (c *Config) log() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// Engine resolves dependency graphs. An Engine is safe for sequential
// reuse; every Resolve call works on fresh state.
type Engine struct {
	cfg Config
}

// New returns an engine with cfg, filling in default registries.
func New(cfg Config) (*Engine, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("resolve: no resolver configured")
	}
	if cfg.ConflictManagers == nil {
		cfg.ConflictManagers = conflict.NewRegistry()
	}
	if cfg.PatternMatchers == nil {
		cfg.PatternMatchers = matcher.NewRegistry()
	}
	if cfg.VersionMatcher == nil {
		cfg.VersionMatcher = version.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Engine{cfg: cfg}, nil
}

// Result is the outcome of one run.
type Result struct {
	Root *Node

	// Nodes holds every non-root node, least dependent first.
	Nodes []*Node

	// Confs are the root configurations that were expanded.
	Confs []string

	// Missing maps requested configurations the root does not declare to
	// their error.
	Missing map[string]error
}

// Reversed returns Nodes most dependent first.
func (r *Result) Reversed() []*Node {
	out := slices.Clone(r.Nodes)
	slices.Reverse(out)
	return out
}

// Problems returns the nodes that failed to load.
func (r *Result) Problems() []*Node {
	var out []*Node
	for _, n := range r.Nodes {
		if n.problem != nil {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node the run used for the requested revision id, or nil
// when id was never requested.
func (r *Result) Node(id module.RevisionID) *Node {
	if r.Root == nil {
		return nil
	}
	return r.Root.data.lookup(id)
}

// Evicted returns the nodes evicted in rootConf.
func (r *Result) Evicted(rootConf string) []*Node {
	var out []*Node
	for _, n := range r.Nodes {
		if n.IsEvicted(rootConf) {
			out = append(out, n)
		}
	}
	return out
}

// Selected returns the problem-free nodes taking part in rootConf and not
// evicted there.
func (r *Result) Selected(rootConf string) []*Node {
	var out []*Node
	for _, n := range r.Nodes {
		if n.problem == nil && slices.Contains(n.rootConfOrder, rootConf) && !n.IsEvicted(rootConf) {
			out = append(out, n)
		}
	}
	return out
}

// Resolve expands md for every configuration in confs ("*" means all of
// them, in declaration order) and returns the annotated, sorted node list.
//
// Load failures are recorded on nodes. Strict conflicts and configuration
// errors abort the run.
func (e *Engine) Resolve(ctx context.Context, md *module.Descriptor, confs []string) (*Result, error) {
	if md == nil {
		return nil, errors.New("resolve: nil module descriptor")
	}
	if len(confs) == 0 || slices.Contains(confs, "*") {
		confs = md.ConfigurationNames()
	}

	data := newResolveData(ctx, e.cfg.VersionMatcher)
	root := newRootNode(data, md)
	data.root = root
	data.register(root.id, root)

	r := &runner{cfg: &e.cfg, data: data, log: e.cfg.log()}
	result := &Result{Root: root, Missing: make(map[string]error)}
	for _, conf := range confs {
		if md.Configuration(conf) == nil {
			err := fmt.Errorf("%w %q in %s", ErrUnknownConfiguration, conf, md.ID)
			r.log.Error("requested configuration not found", "module", md.ID.String(), "conf", conf)
			result.Missing[conf] = err
			continue
		}
		r.log.Info("resolving dependencies", "module", md.ResolvedRevisionID().String(), "conf", conf)
		data.startRootConf(conf)
		root.addConfsToFetch(conf)
		if err := r.fetch(root, conf, false); err != nil {
			return nil, err
		}
		if err := r.settleAtRoot(); err != nil {
			return nil, err
		}
		result.Confs = append(result.Confs, conf)
	}

	nodes := data.nodes()
	sorter := toposort.Sorter[*Node]{
		ID:         (*Node).ResolvedID,
		Descriptor: (*Node).Descriptor,
		Matcher:    e.cfg.VersionMatcher,
		OnCycle: func(cycle []module.RevisionID) {
			r.log.Warn("circular dependency", "cycle", formatCycle(cycle))
		},
	}
	result.Nodes = sorter.Sort(nodes)
	r.evictTransitively(result.Reversed(), result.Confs)
	return result, nil
}

func formatCycle(ids []module.RevisionID) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += id.String()
	}
	return s
}

// runner holds one run's collaborators.
type runner struct {
	cfg  *Config
	data *resolveData
	log  *slog.Logger
}
