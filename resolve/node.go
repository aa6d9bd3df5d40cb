package resolve

import (
	"slices"
	"time"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

// Caller records that a node was required by another node through a
// dependency descriptor.
type Caller struct {
	Node *Node

	// Confs are the caller's configurations that required the node.
	Confs []string

	// DependencyConfs are the node configurations asked for.
	DependencyConfs []string

	Dependency *module.DependencyDescriptor
}

// EvictionData explains why a node is evicted in one root configuration.
// Parent and Manager are nil for a transitive eviction.
type EvictionData struct {
	RootConf string
	Parent   *Node
	Manager  conflict.Manager
	Selected []*Node
}

// IsTransitive reports whether the eviction comes from the node having no
// live caller left rather than from a conflict.
func (ed *EvictionData) IsTransitive() bool {
	return ed.Parent == nil
}

type requiredKey struct {
	parent *Node
	conf   string
}

// Node wraps one module revision for the duration of a resolution run.
// Exactly one node exists per resolved revision id.
type Node struct {
	data *resolveData

	id         module.RevisionID
	resolvedID module.RevisionID
	md         *module.Descriptor
	resolver   repository.Resolver
	artifacts  repository.Resolver
	problem    error
	root       bool

	// real is set when loading found that another node already holds the
	// resolved revision.
	real *Node

	// traversal state, overwritten as the builder walks
	parent     *Node
	parentConf string

	dds           map[*Node]*module.DependencyDescriptor
	callers       map[string][]*Caller
	confsToFetch  []string
	fetchedConfs  map[string]bool
	requiredConfs map[requiredKey][]string
	rootConfs     map[string][]string
	rootConfOrder []string
	eviction      map[string]*EvictionData
}

func newNode(data *resolveData, id module.RevisionID) *Node {
	return &Node{
		data:          data,
		id:            id,
		dds:           make(map[*Node]*module.DependencyDescriptor),
		callers:       make(map[string][]*Caller),
		fetchedConfs:  make(map[string]bool),
		requiredConfs: make(map[requiredKey][]string),
		rootConfs:     make(map[string][]string),
		eviction:      make(map[string]*EvictionData),
	}
}

func newRootNode(data *resolveData, md *module.Descriptor) *Node {
	n := newNode(data, md.ResolvedRevisionID())
	n.resolvedID = n.id
	n.md = md
	n.root = true
	return n
}

// ID returns the requested revision id.
func (n *Node) ID() module.RevisionID { return n.id }

// ResolvedID returns the resolved revision id, or the requested one while
// the node is not loaded.
func (n *Node) ResolvedID() module.RevisionID {
	if n.resolvedID.IsZero() {
		return n.id
	}
	return n.resolvedID
}

// ModuleID returns the module id.
func (n *Node) ModuleID() module.ID { return n.id.ModuleID() }

// Descriptor returns the loaded descriptor, or nil.
func (n *Node) Descriptor() *module.Descriptor { return n.md }

// IsLoaded reports whether the descriptor has been loaded.
func (n *Node) IsLoaded() bool { return n.md != nil }

// Problem returns the load failure, if any.
func (n *Node) Problem() error { return n.problem }

// IsRoot reports whether n is the module being resolved.
func (n *Node) IsRoot() bool { return n.root }

// Resolver returns the resolver that loaded the descriptor.
func (n *Node) Resolver() repository.Resolver { return n.resolver }

// ArtifactResolver returns the resolver to download artifacts with.
func (n *Node) ArtifactResolver() repository.Resolver {
	if n.artifacts != nil {
		return n.artifacts
	}
	return n.resolver
}

// IsEvicted reports whether n is evicted in rootConf.
func (n *Node) IsEvicted(rootConf string) bool {
	return n.eviction[rootConf] != nil
}

// EvictionData returns why n is evicted in rootConf, or nil.
func (n *Node) EvictionData(rootConf string) *EvictionData {
	return n.eviction[rootConf]
}

// IsCompletelyEvicted reports whether n is evicted in every root
// configuration it takes part in.
func (n *Node) IsCompletelyEvicted() bool {
	if len(n.rootConfOrder) == 0 {
		return false
	}
	for _, rc := range n.rootConfOrder {
		if !n.IsEvicted(rc) {
			return false
		}
	}
	return true
}

// RootConfigurations returns the root configurations n takes part in, in
// discovery order.
func (n *Node) RootConfigurations() []string {
	return slices.Clone(n.rootConfOrder)
}

// Configurations returns n's own configurations required in rootConf.
func (n *Node) Configurations(rootConf string) []string {
	return slices.Clone(n.rootConfs[rootConf])
}

// Callers returns the callers of n in rootConf.
func (n *Node) Callers(rootConf string) []*Caller {
	return slices.Clone(n.callers[rootConf])
}

// DependencyDescriptor returns the descriptor through which parent requires
// n, or nil.
func (n *Node) DependencyDescriptor(parent *Node) *module.DependencyDescriptor {
	return n.dds[parent]
}

// SelectedArtifacts returns the artifacts of the configurations required in
// every root configuration where n is not evicted. A nil filter keeps all.
func (n *Node) SelectedArtifacts(filter func(*module.Artifact) bool) []*module.Artifact {
	if n.md == nil {
		return nil
	}
	var out []*module.Artifact
	for _, rc := range n.rootConfOrder {
		if n.IsEvicted(rc) {
			continue
		}
		for _, a := range n.artifactsIn(rc) {
			if !slices.Contains(out, a) && (filter == nil || filter(a)) {
				out = append(out, a)
			}
		}
	}
	return out
}

// ArtifactsFor returns the artifacts n contributes to rootConf.
func (n *Node) ArtifactsFor(rootConf string) []*module.Artifact {
	if n.md == nil || n.IsEvicted(rootConf) {
		return nil
	}
	return n.artifactsIn(rootConf)
}

func (n *Node) artifactsIn(rootConf string) []*module.Artifact {
	var out []*module.Artifact
	for _, conf := range n.rootConfs[rootConf] {
		for _, a := range n.md.ArtifactsFor(conf) {
			if !slices.Contains(out, a) {
				out = append(out, a)
			}
		}
	}
	return out
}

func (n *Node) String() string {
	return n.ResolvedID().String()
}

// conflict.Candidate

// Published returns the descriptor publication date, zero when unknown.
func (n *Node) Published() time.Time {
	if n.md == nil {
		return time.Time{}
	}
	return n.md.Published
}

// IsDynamic reports whether n still waits for a dynamic constraint to be
// resolved.
func (n *Node) IsDynamic() bool {
	return n.md == nil && n.data.versions.IsDynamic(n.id.Revision)
}

// IsForcedBy reports whether the dependency from parent to n is forced.
func (n *Node) IsForcedBy(parent conflict.Candidate) bool {
	p, ok := parent.(*Node)
	if !ok {
		return false
	}
	dd := n.dds[p]
	return dd != nil && dd.Force
}

var _ conflict.Candidate = (*Node)(nil)

func (n *Node) realNode() *Node {
	for n.real != nil {
		n = n.real
	}
	return n
}

// realConfs expands "*" to the public configurations once the descriptor
// is known.
func (n *Node) realConfs(conf string) []string {
	if n.md == nil || conf != "*" {
		return []string{conf}
	}
	if n.root {
		return n.md.ConfigurationNames()
	}
	return n.md.PublicConfigurationNames()
}

func (n *Node) realConfsList(confs []string) []string {
	var out []string
	for _, c := range confs {
		for _, rc := range n.realConfs(c) {
			if !slices.Contains(out, rc) {
				out = append(out, rc)
			}
		}
	}
	return out
}

func (n *Node) addConfsToFetch(confs ...string) {
	for _, c := range confs {
		if !slices.Contains(n.confsToFetch, c) {
			n.confsToFetch = append(n.confsToFetch, c)
		}
	}
}

// pendingConfs returns the configurations still to fetch.
func (n *Node) pendingConfs() []string {
	var out []string
	for _, c := range n.confsToFetch {
		if !n.fetchedConfs[c] {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) markFetched(conf string) {
	n.fetchedConfs[conf] = true
}

func (n *Node) addRootConf(rootConf, conf string) {
	confs, ok := n.rootConfs[rootConf]
	if !ok {
		n.rootConfOrder = append(n.rootConfOrder, rootConf)
	}
	if !slices.Contains(confs, conf) {
		n.rootConfs[rootConf] = append(confs, conf)
	}
}

func (n *Node) addDependencyDescriptor(parent *Node, dd *module.DependencyDescriptor) {
	if _, ok := n.dds[parent]; !ok {
		n.dds[parent] = dd
	}
}

func (n *Node) setRequiredConfs(parent *Node, parentConf string, confs []string) {
	key := requiredKey{parent: parent, conf: parentConf}
	for _, c := range confs {
		if !slices.Contains(n.requiredConfs[key], c) {
			n.requiredConfs[key] = append(n.requiredConfs[key], c)
		}
	}
}

func (n *Node) addCaller(rootConf string, caller *Node, callerConf string, depConfs []string, dd *module.DependencyDescriptor) {
	for _, c := range n.callers[rootConf] {
		if c.Node == caller {
			if !slices.Contains(c.Confs, callerConf) {
				c.Confs = append(c.Confs, callerConf)
			}
			for _, dc := range depConfs {
				if !slices.Contains(c.DependencyConfs, dc) {
					c.DependencyConfs = append(c.DependencyConfs, dc)
				}
			}
			return
		}
	}
	n.callers[rootConf] = append(n.callers[rootConf], &Caller{
		Node:            caller,
		Confs:           []string{callerConf},
		DependencyConfs: slices.Clone(depConfs),
		Dependency:      dd,
	})
}

// absorb merges what other learned during the run into n. other is a node
// whose dynamic revision resolved to n's revision, or a node n evicted.
func (n *Node) absorb(other *Node, rootConf string) {
	for p, dd := range other.dds {
		n.addDependencyDescriptor(p, dd)
	}
	rcs := []string{rootConf}
	if rootConf == "" {
		rcs = other.rootConfOrder
		for rc := range other.callers {
			if !slices.Contains(rcs, rc) {
				rcs = append(rcs, rc)
			}
		}
	}
	for _, rc := range rcs {
		for _, c := range other.callers[rc] {
			if c.Node != n {
				for _, cc := range c.Confs {
					n.addCaller(rc, c.Node, cc, c.DependencyConfs, c.Dependency)
				}
			}
		}
	}
	for k, confs := range other.requiredConfs {
		n.setRequiredConfs(k.parent, k.conf, confs)
	}
	n.addConfsToFetch(other.confsToFetch...)
}

func (n *Node) setParent(parent *Node, conf string) {
	n.parent = parent
	n.parentConf = conf
}

func (n *Node) markSelected(rootConf string) {
	delete(n.eviction, rootConf)
}

func (n *Node) markEvicted(rootConf string, parent *Node, mgr conflict.Manager, selected []*Node) {
	n.eviction[rootConf] = &EvictionData{
		RootConf: rootConf,
		Parent:   parent,
		Manager:  mgr,
		Selected: slices.Clone(selected),
	}
	for _, s := range selected {
		if s != n {
			s.absorb(n, rootConf)
		}
	}
}
