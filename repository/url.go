package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/eed3si9n/ivy/descriptor"
	"github.com/eed3si9n/ivy/module"
)

// URLResolver fetches descriptors and artifacts over HTTP. Listing relies
// on the server returning an HTML directory index.
type URLResolver struct {
	name    string
	baseURL string
	client  *http.Client
	opts    options

	descriptors sync.Map // module.RevisionID -> *module.Descriptor
}

// NewURLResolver creates a resolver for baseURL with pooled connections.
func NewURLResolver(name, baseURL string, opts ...Option) *URLResolver {
	o := newOptions(opts)
	client := o.httpClient
	if client == nil {
		client = &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        DefaultMaxIdleConns,
				MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
				IdleConnTimeout:     DefaultIdleConnTimeout,
			},
		}
	}
	if o.timeout > 0 {
		c := *client
		c.Timeout = o.timeout
		client = &c
	}
	return &URLResolver{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		opts:    o,
	}
}

func (r *URLResolver) Name() string         { return r.name }
func (r *URLResolver) Kind() Kind           { return KindSingle }
func (r *URLResolver) Children() []Resolver { return nil }

// BaseURL returns the repository base URL.
func (r *URLResolver) BaseURL() string { return r.baseURL }

func (r *URLResolver) descriptorURL(id module.RevisionID) string {
	return r.baseURL + "/" + Substitute(r.opts.descriptorPattern, DescriptorTokens(id))
}

func (r *URLResolver) artifactURL(a *module.Artifact) string {
	if a.URL != "" {
		return a.URL
	}
	return r.baseURL + "/" + Substitute(r.opts.artifactPattern, ArtifactTokens(a, ""))
}

func (r *URLResolver) LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error) {
	md, err := findDescriptor(ctx, &r.opts, r.baseURL, req, r.ListRevisions, r.load)
	if err != nil {
		return nil, err
	}
	return &ResolvedRevision{
		Descriptor:       md,
		Resolver:         r,
		ArtifactResolver: r,
		Location:         r.descriptorURL(md.ResolvedRevisionID()),
	}, nil
}

func (r *URLResolver) load(ctx context.Context, id module.RevisionID) (*module.Descriptor, error) {
	if cached, ok := r.descriptors.Load(id); ok {
		return cached.(*module.Descriptor), nil
	}
	url := r.descriptorURL(id)
	logger := r.opts.log()

	data, hit, err := r.opts.cache.Get(ctx, id)
	if err != nil {
		logger.Warn("descriptor cache read failed", "module", id, "error", err)
	}
	if !hit {
		data, err = r.fetch(ctx, url)
		if err != nil {
			if isNotFound(err) {
				return nil, &NotFoundError{ID: id, Location: url}
			}
			return nil, fmt.Errorf("failed to fetch descriptor for %s: %w", id, err)
		}
		if err := r.opts.cache.Put(ctx, id, data); err != nil {
			logger.Warn("descriptor cache write failed", "module", id, "error", err)
		}
	} else {
		logger.Debug("descriptor cache hit", "module", id)
	}

	md, err := descriptor.Parse(path.Base(r.opts.descriptorPattern), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", url, err)
	}
	r.descriptors.Store(id, md)
	return md, nil
}

func (r *URLResolver) Exists(ctx context.Context, a *module.Artifact) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.artifactURL(a), http.NoBody)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	_ = resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
}

func (r *URLResolver) Download(ctx context.Context, a *module.Artifact, w io.Writer) error {
	url := r.artifactURL(a)
	resp, err := r.get(ctx, url)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s at %s", ErrArtifactNotFound, a, url)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (r *URLResolver) ListOrganisations(ctx context.Context) ([]string, error) {
	return r.list(ctx, TokenOrganisation, nil)
}

func (r *URLResolver) ListModules(ctx context.Context, organisation string) ([]string, error) {
	return r.list(ctx, TokenModule, map[string]string{TokenOrganisation: organisation})
}

func (r *URLResolver) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	return r.list(ctx, TokenRevision, map[string]string{
		TokenOrganisation: id.Organisation,
		TokenModule:       id.Name,
	})
}

var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*"([^"]+)"`)

// list reads the directory index holding the values of token.
func (r *URLResolver) list(ctx context.Context, token string, fixed map[string]string) ([]string, error) {
	truncated, ok := truncatePattern(r.opts.descriptorPattern, token)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no [%s] token", ErrListingUnsupported, r.opts.descriptorPattern, token)
	}
	m, ok := newTokenMatcher(truncated, token, fixed)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no [%s] token", ErrListingUnsupported, truncated, token)
	}
	prefix, _, ok := m.dir()
	if !ok {
		return nil, fmt.Errorf("%w: [%s] in %s", ErrListingUnsupported, token, truncated)
	}

	dirURL := r.baseURL + "/"
	if prefix != "" {
		dirURL += prefix + "/"
	}
	data, err := r.fetch(ctx, dirURL)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dirURL, err)
	}

	seen := make(map[string]bool)
	for _, match := range hrefPattern.FindAllSubmatch(data, -1) {
		entry := string(match[1])
		if strings.ContainsAny(entry, "?#:") || strings.HasPrefix(entry, "/") || strings.HasPrefix(entry, "..") {
			continue
		}
		entry = strings.TrimSuffix(entry, "/")
		if entry == "" || entry == "." || strings.Contains(entry, "/") {
			continue
		}
		candidate := entry
		if prefix != "" {
			candidate = prefix + "/" + entry
		}
		if v, ok := m.value(candidate); ok {
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

// fetch performs an HTTP GET and returns the response body.
func (r *URLResolver) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

func (r *URLResolver) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	return resp, nil
}
