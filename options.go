package ivy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eed3si9n/ivy/module"
)

// DefaultConcurrency is the number of modules whose artifacts are downloaded
// at the same time when WithConcurrency is not given.
const DefaultConcurrency = 8

// Option configures resolution behavior.
type Option func(*resolverConfig) error

// resolverConfig holds all resolution configuration.
type resolverConfig struct {
	settings       *Settings
	date           time.Time
	cacheDir       string
	artifactFilter func(*module.Artifact) bool
	concurrency    int
	download       bool
	metrics        *Metrics
	revision       string
	onProgress     func(ProgressEvent)

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithSettings sets the resolvers, rules and registries to resolve with.
// Without it an empty Settings is used, which fails for any dependency.
func WithSettings(s *Settings) Option {
	return func(c *resolverConfig) error {
		if s == nil {
			return errors.New("settings must not be nil")
		}
		c.settings = s
		return nil
	}
}

// WithDate ignores revisions published after t when resolving dynamic
// constraints.
func WithDate(t time.Time) Option {
	return func(c *resolverConfig) error {
		c.date = t
		return nil
	}
}

// WithCacheDir sets the directory artifacts are downloaded to. It
// overrides the settings cache directory.
func WithCacheDir(dir string) Option {
	return func(c *resolverConfig) error {
		c.cacheDir = dir
		return nil
	}
}

// WithArtifactFilter keeps only the artifacts accepted by fn when
// downloading.
func WithArtifactFilter(fn func(*module.Artifact) bool) Option {
	return func(c *resolverConfig) error {
		c.artifactFilter = fn
		return nil
	}
}

// WithConcurrency bounds the number of modules downloaded in parallel.
func WithConcurrency(n int) Option {
	return func(c *resolverConfig) error {
		c.concurrency = n
		return nil
	}
}

// WithDownload enables artifact download after resolution.
func WithDownload(download bool) Option {
	return func(c *resolverConfig) error {
		c.download = download
		return nil
	}
}

// WithMetrics records resolution and download metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(c *resolverConfig) error {
		c.metrics = m
		return nil
	}
}

// WithRevision replaces the revision of the module being resolved.
func WithRevision(revision string) Option {
	return func(c *resolverConfig) error {
		c.revision = revision
		return nil
	}
}

// WithProgress sets a callback for resolution progress events. The
// callback may be called from several goroutines while downloading.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(c *resolverConfig) error {
		c.onProgress = fn
		return nil
	}
}

// WithLogger sets a structured logger for resolution diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "ivy")
//	report, err := ivy.Resolve(ctx, md, nil, ivy.WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *resolverConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *resolverConfig) validate() error {
	if c.concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if c.download && c.cacheDir == "" {
		return errors.New("download requires a cache directory")
	}
	return nil
}

// log returns the configured logger, or a no-op logger if none was set.
func (c *resolverConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler is a slog.Handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

func (c *resolverConfig) progress(ev ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(ev)
	}
}

// newResolverConfig creates a new resolver configuration by applying
// the given options and validating the result.
func newResolverConfig(opts ...Option) (*resolverConfig, error) {
	c := &resolverConfig{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.settings == nil {
		c.settings = NewSettings()
	}
	if c.cacheDir == "" {
		c.cacheDir = c.settings.CacheDir()
	}
	if c.concurrency == 0 {
		c.concurrency = DefaultConcurrency
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
