package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/eed3si9n/ivy/module"
)

// MemoryResolver keeps descriptors and artifacts in memory. It backs tests
// and serves as a publish target.
type MemoryResolver struct {
	name string
	opts options

	mu          sync.RWMutex
	descriptors map[module.ID]map[string]*module.Descriptor
	artifacts   map[string][]byte

	loads atomic.Int64
}

// NewMemoryResolver creates an empty in-memory resolver.
func NewMemoryResolver(name string, opts ...Option) *MemoryResolver {
	return &MemoryResolver{
		name:        name,
		opts:        newOptions(opts),
		descriptors: make(map[module.ID]map[string]*module.Descriptor),
		artifacts:   make(map[string][]byte),
	}
}

func (r *MemoryResolver) Name() string         { return r.name }
func (r *MemoryResolver) Kind() Kind           { return KindSingle }
func (r *MemoryResolver) Children() []Resolver { return nil }

// Add stores md under its resolved revision id.
func (r *MemoryResolver) Add(md *module.Descriptor) {
	id := md.ResolvedRevisionID()
	r.mu.Lock()
	defer r.mu.Unlock()
	revs, ok := r.descriptors[id.ModuleID()]
	if !ok {
		revs = make(map[string]*module.Descriptor)
		r.descriptors[id.ModuleID()] = revs
	}
	revs[id.Revision] = md
}

// AddArtifact stores the content of a.
func (r *MemoryResolver) AddArtifact(a *module.Artifact, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[artifactKey(a)] = append([]byte(nil), content...)
}

// Loads returns how many descriptor loads were served.
func (r *MemoryResolver) Loads() int {
	return int(r.loads.Load())
}

func (r *MemoryResolver) PublishDescriptor(_ context.Context, md *module.Descriptor) error {
	r.Add(md)
	return nil
}

func (r *MemoryResolver) PublishArtifact(_ context.Context, a *module.Artifact, rd io.Reader) error {
	content, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", a, err)
	}
	r.AddArtifact(a, content)
	return nil
}

func (r *MemoryResolver) LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error) {
	md, err := findDescriptor(ctx, &r.opts, r.name, req, r.ListRevisions, r.load)
	if err != nil {
		return nil, err
	}
	return &ResolvedRevision{Descriptor: md, Resolver: r, ArtifactResolver: r, Location: r.name}, nil
}

func (r *MemoryResolver) load(ctx context.Context, id module.RevisionID) (*module.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.loads.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.descriptors[id.ModuleID()][id.Revision]
	if !ok {
		return nil, &NotFoundError{ID: id, Location: r.name}
	}
	return md, nil
}

func (r *MemoryResolver) Exists(_ context.Context, a *module.Artifact) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.artifacts[artifactKey(a)]
	return ok, nil
}

func (r *MemoryResolver) Download(_ context.Context, a *module.Artifact, w io.Writer) error {
	r.mu.RLock()
	content, ok := r.artifacts[artifactKey(a)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, a, r.name)
	}
	_, err := io.Copy(w, bytes.NewReader(content))
	return err
}

func (r *MemoryResolver) ListOrganisations(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for id := range r.descriptors {
		seen[id.Organisation] = true
	}
	return sortedSet(seen), nil
}

func (r *MemoryResolver) ListModules(_ context.Context, organisation string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for id := range r.descriptors {
		if id.Organisation == organisation {
			seen[id.Name] = true
		}
	}
	return sortedSet(seen), nil
}

func (r *MemoryResolver) ListRevisions(_ context.Context, id module.ID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for rev := range r.descriptors[id] {
		seen[rev] = true
	}
	return sortedSet(seen), nil
}

// artifactKey identifies an artifact regardless of extra attributes.
func artifactKey(a *module.Artifact) string {
	return fmt.Sprintf("%s;%s!%s.%s(%s)", a.Module.ModuleID(), a.Module.Revision, a.Name, a.Ext, a.Type)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
