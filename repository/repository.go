// Package repository provides the dependency resolvers the engine loads
// module descriptors and artifacts from.
//
// Resolvers come in three kinds. A single resolver answers from one
// location (a directory, a base URL, memory). A chain asks its children in
// order. A dual loads descriptors from one child and artifacts from
// another. Code that needs to visit every resolver in a tree uses Walk
// rather than inspecting concrete types.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eed3si9n/ivy/module"
)

// Kind tags the composition shape of a resolver.
type Kind int

const (
	KindSingle Kind = iota
	KindChain
	KindDual
)

func (k Kind) String() string {
	switch k {
	case KindChain:
		return "chain"
	case KindDual:
		return "dual"
	}
	return "single"
}

// Sentinel errors for common resolver failures.
var (
	// ErrModuleNotFound indicates the requested revision does not exist.
	ErrModuleNotFound = errors.New("module not found")

	// ErrArtifactNotFound indicates the requested artifact does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrListingUnsupported is returned when a resolver cannot enumerate
	// the values of a pattern token.
	ErrListingUnsupported = errors.New("listing not supported")
)

// NotFoundError reports a revision missing from a location.
type NotFoundError struct {
	ID       module.RevisionID
	Location string
}

func (e *NotFoundError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("module %s not found", e.ID)
	}
	return fmt.Sprintf("module %s not found in %s", e.ID, e.Location)
}

func (e *NotFoundError) Unwrap() error {
	return ErrModuleNotFound
}

// HTTPError represents a non-OK response from a URL resolver.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

func isNotFound(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 404
	}
	return errors.Is(err, ErrModuleNotFound) || errors.Is(err, ErrArtifactNotFound)
}

// Request asks a resolver for the descriptor of a revision.
type Request struct {
	// ID is the requested revision; its revision may be a dynamic
	// constraint.
	ID module.RevisionID

	// Dependency is the descriptor that led to the request, nil for
	// top-level requests.
	Dependency *module.DependencyDescriptor

	// AsOf excludes revisions published after it. Zero means no bound.
	AsOf time.Time

	// Transitive is false when the caller will not expand the module's
	// own dependencies.
	Transitive bool
}

// ResolvedRevision is a loaded descriptor together with the resolvers to
// use for it afterwards.
type ResolvedRevision struct {
	Descriptor *module.Descriptor

	// Resolver is the resolver that found the descriptor.
	Resolver Resolver

	// ArtifactResolver downloads the revision's artifacts. It differs
	// from Resolver behind a dual resolver.
	ArtifactResolver Resolver

	// Location is where the descriptor was read from.
	Location string
}

// Resolver finds module descriptors and artifacts.
type Resolver interface {
	Name() string
	Kind() Kind

	// Children returns the resolvers a chain or dual delegates to.
	Children() []Resolver

	// LoadDescriptor resolves req to a concrete revision. A missing
	// revision is reported with an error matching ErrModuleNotFound.
	LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error)

	Exists(ctx context.Context, a *module.Artifact) (bool, error)

	// Download writes the artifact's content to w.
	Download(ctx context.Context, a *module.Artifact, w io.Writer) error

	ListOrganisations(ctx context.Context) ([]string, error)
	ListModules(ctx context.Context, organisation string) ([]string, error)
	ListRevisions(ctx context.Context, id module.ID) ([]string, error)
}

// Publisher is implemented by resolvers that accept new revisions.
type Publisher interface {
	PublishDescriptor(ctx context.Context, md *module.Descriptor) error
	PublishArtifact(ctx context.Context, a *module.Artifact, r io.Reader) error
}

// Walk calls fn for r and then for every resolver below it, depth first.
// It stops at the first error.
func Walk(r Resolver, fn func(Resolver) error) error {
	if err := fn(r); err != nil {
		return err
	}
	for _, child := range r.Children() {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Compile-time interface compliance checks
var (
	_ Resolver  = (*MemoryResolver)(nil)
	_ Publisher = (*MemoryResolver)(nil)
	_ Resolver  = (*FileResolver)(nil)
	_ Publisher = (*FileResolver)(nil)
	_ Resolver  = (*URLResolver)(nil)
	_ Resolver  = (*Chain)(nil)
	_ Resolver  = (*Dual)(nil)
	_ Resolver  = (*Cached)(nil)
)
