package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/eed3si9n/ivy/descriptor"
	"github.com/eed3si9n/ivy/module"
)

// FileResolver reads descriptors and artifacts from a directory laid out
// by a descriptor pattern and an artifact pattern, and accepts published
// revisions.
//
// Create with file:// URLs:
//
//	r, err := NewFileResolverURL("local", "file:///path/to/repo")
//
// or with a native path:
//
//	r := NewFileResolver("local", "/path/to/repo")
type FileResolver struct {
	name  string
	root  string
	opts  options
	cache sync.Map // module.RevisionID -> *module.Descriptor
}

// NewFileResolver creates a resolver rooted at root.
func NewFileResolver(name, root string, opts ...Option) *FileResolver {
	return &FileResolver{
		name: name,
		root: filepath.Clean(root),
		opts: newOptions(opts),
	}
}

// NewFileResolverURL creates a resolver from a file:// URL whose path must
// exist.
func NewFileResolverURL(name, url string, opts ...Option) (*FileResolver, error) {
	path, err := parseFileURL(url)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("local repository path does not exist: %s", path)
		}
		return nil, fmt.Errorf("cannot access local repository path %s: %w", path, err)
	}
	return NewFileResolver(name, path, opts...), nil
}

func (r *FileResolver) Name() string         { return r.name }
func (r *FileResolver) Kind() Kind           { return KindSingle }
func (r *FileResolver) Children() []Resolver { return nil }

// Root returns the repository directory.
func (r *FileResolver) Root() string { return r.root }

// URL returns the file:// URL of the repository root.
func (r *FileResolver) URL() string {
	urlPath := filepath.ToSlash(r.root)
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && isWindowsDriveLetter(urlPath[0]) && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	return "file://" + urlPath
}

func (r *FileResolver) descriptorPath(id module.RevisionID) string {
	return filepath.Join(r.root, filepath.FromSlash(Substitute(r.opts.descriptorPattern, DescriptorTokens(id))))
}

func (r *FileResolver) artifactPath(a *module.Artifact) string {
	return filepath.Join(r.root, filepath.FromSlash(Substitute(r.opts.artifactPattern, ArtifactTokens(a, ""))))
}

func (r *FileResolver) LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error) {
	md, err := findDescriptor(ctx, &r.opts, r.URL(), req, r.ListRevisions, r.load)
	if err != nil {
		return nil, err
	}
	return &ResolvedRevision{
		Descriptor:       md,
		Resolver:         r,
		ArtifactResolver: r,
		Location:         pathToFileURL(r.descriptorPath(md.ResolvedRevisionID())),
	}, nil
}

func (r *FileResolver) load(ctx context.Context, id module.RevisionID) (*module.Descriptor, error) {
	if cached, ok := r.cache.Load(id); ok {
		return cached.(*module.Descriptor), nil
	}

	// Check for context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := r.descriptorPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: id, Location: pathToFileURL(path)}
		}
		return nil, fmt.Errorf("read local descriptor %s: %w", path, err)
	}
	md, err := descriptor.Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse local descriptor %s: %w", path, err)
	}
	r.cache.Store(id, md)
	return md, nil
}

func (r *FileResolver) Exists(_ context.Context, a *module.Artifact) (bool, error) {
	_, err := os.Stat(r.artifactPath(a))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (r *FileResolver) Download(ctx context.Context, a *module.Artifact, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := r.artifactPath(a)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s at %s", ErrArtifactNotFound, a, pathToFileURL(path))
		}
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// PublishDescriptor writes md at its descriptor path, in the format
// implied by the descriptor pattern's extension.
func (r *FileResolver) PublishDescriptor(_ context.Context, md *module.Descriptor) error {
	id := md.ResolvedRevisionID()
	if err := descriptor.WriteFile(r.descriptorPath(id), md); err != nil {
		return fmt.Errorf("publish %s to %s: %w", id, r.name, err)
	}
	r.cache.Delete(id)
	return nil
}

// PublishArtifact writes the content of rd at the artifact's path.
func (r *FileResolver) PublishArtifact(_ context.Context, a *module.Artifact, rd io.Reader) (err error) {
	path := r.artifactPath(a)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(f, rd); err != nil {
		return fmt.Errorf("publish %s to %s: %w", a, r.name, err)
	}
	return nil
}

func (r *FileResolver) ListOrganisations(context.Context) ([]string, error) {
	return r.list(TokenOrganisation, nil)
}

func (r *FileResolver) ListModules(_ context.Context, organisation string) ([]string, error) {
	return r.list(TokenModule, map[string]string{TokenOrganisation: organisation})
}

func (r *FileResolver) ListRevisions(_ context.Context, id module.ID) ([]string, error) {
	return r.list(TokenRevision, map[string]string{
		TokenOrganisation: id.Organisation,
		TokenModule:       id.Name,
	})
}

// list returns the values of token found on disk for the descriptor
// pattern.
func (r *FileResolver) list(token string, fixed map[string]string) ([]string, error) {
	m, ok := newTokenMatcher(r.opts.descriptorPattern, token, fixed)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no [%s] token", ErrListingUnsupported, r.opts.descriptorPattern, token)
	}
	matches, err := filepath.Glob(filepath.Join(r.root, filepath.FromSlash(m.glob)))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, match := range matches {
		rel, err := filepath.Rel(r.root, match)
		if err != nil {
			continue
		}
		if v, ok := m.value(filepath.ToSlash(rel)); ok {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// parseFileURL extracts the path from a file:// URL.
// Handles both Unix (file:///path) and Windows (file:///C:/path) formats.
func parseFileURL(url string) (string, error) {
	if !strings.HasPrefix(url, "file://") {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}
	path := strings.TrimPrefix(url, "file://")
	if len(path) >= 3 && path[0] == '/' && isWindowsDriveLetter(path[1]) && path[2] == ':' {
		path = path[1:]
	}
	return filepath.Clean(path), nil
}

func isWindowsDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// pathToFileURL converts a native file path to a file:// URL.
func pathToFileURL(path string) string {
	urlPath := filepath.ToSlash(path)
	if len(urlPath) >= 2 && isWindowsDriveLetter(urlPath[0]) && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	return "file://" + urlPath
}

// IsFileURL reports whether url uses the file scheme.
func IsFileURL(url string) bool {
	return strings.HasPrefix(url, "file://")
}
