package repository

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eed3si9n/ivy/latest"
	"github.com/eed3si9n/ivy/version"
)

// Default layout of descriptors and artifacts below a resolver's root.
const (
	DefaultDescriptorPattern = "[organisation]/[module]/[revision]/ivy.yaml"
	DefaultArtifactPattern   = "[organisation]/[module]/[revision]/[type]s/[artifact]-[revision].[ext]"
)

// HTTP client defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// Option configures a resolver.
type Option func(*options)

type options struct {
	matcher           version.Matcher
	strategy          latest.Strategy
	logger            *slog.Logger
	httpClient        *http.Client
	timeout           time.Duration
	cache             Cache
	descriptorPattern string
	artifactPattern   string
	returnFirst       bool
}

func newOptions(opts []Option) options {
	o := options{
		matcher:           version.Default(),
		strategy:          latest.ByRevision(),
		descriptorPattern: DefaultDescriptorPattern,
		artifactPattern:   DefaultArtifactPattern,
		cache:             NoopCache{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// log returns the configured logger or a discard logger.
func (o *options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithVersionMatcher sets the matcher used to answer dynamic revisions.
func WithVersionMatcher(m version.Matcher) Option {
	return func(o *options) {
		if m != nil {
			o.matcher = m
		}
	}
}

// WithLatestStrategy sets how candidate revisions are ordered.
func WithLatestStrategy(s latest.Strategy) Option {
	return func(o *options) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client for URL resolvers.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout of URL resolvers.
// Zero or negative values fall back to DefaultRequestTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithCache sets an external cache for descriptor content fetched by URL
// resolvers.
func WithCache(cache Cache) Option {
	return func(o *options) {
		if cache != nil {
			o.cache = cache
		}
	}
}

// WithDescriptorPattern sets the descriptor layout. The extension of the
// pattern selects the descriptor format.
func WithDescriptorPattern(pattern string) Option {
	return func(o *options) {
		if pattern != "" {
			o.descriptorPattern = pattern
		}
	}
}

// WithArtifactPattern sets the artifact layout.
func WithArtifactPattern(pattern string) Option {
	return func(o *options) {
		if pattern != "" {
			o.artifactPattern = pattern
		}
	}
}

// WithReturnFirst makes a chain answer dynamic revisions from the first
// child that has a match instead of comparing every child's answer.
func WithReturnFirst(returnFirst bool) Option {
	return func(o *options) {
		o.returnFirst = returnFirst
	}
}
