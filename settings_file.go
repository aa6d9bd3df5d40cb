package ivy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eed3si9n/ivy/repository"
)

// Resolver types accepted in a settings file.
const (
	ResolverTypeFile  = "file"
	ResolverTypeURL   = "url"
	ResolverTypeChain = "chain"
	ResolverTypeDual  = "dual"
)

var resolverTypes = []string{ResolverTypeChain, ResolverTypeDual, ResolverTypeFile, ResolverTypeURL}

// settingsFile is the YAML layout of a settings file:
//
//	cacheDir: cache
//	defaultResolver: main
//	conflictManager: latest-revision
//	resolvers:
//	  - name: main
//	    type: chain
//	    returnFirst: true
//	    resolvers:
//	      - name: local
//	        type: file
//	        root: repo
//	      - name: remote
//	        type: url
//	        url: https://repo.example.com/ivy
//	        timeout: 30s
//	        cache: {size: 512, ttl: 10m}
//	modules:
//	  - organisation: org.internal
//	    resolver: local
type settingsFile struct {
	CacheDir        string           `yaml:"cacheDir"`
	DefaultResolver string           `yaml:"defaultResolver"`
	Dictator        string           `yaml:"dictator"`
	ConflictManager string           `yaml:"conflictManager"`
	LatestStrategy  string           `yaml:"latestStrategy"`
	VersionMatcher  string           `yaml:"versionMatcher"`
	Resolvers       []resolverSpec   `yaml:"resolvers"`
	Modules         []moduleRuleSpec `yaml:"modules"`
}

type resolverSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Ref points at a resolver declared earlier instead of declaring one.
	Ref string `yaml:"ref"`

	Root    string        `yaml:"root"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Cache   *cacheSpec    `yaml:"cache"`

	ReturnFirst bool           `yaml:"returnFirst"`
	Resolvers   []resolverSpec `yaml:"resolvers"`

	Descriptors *resolverSpec `yaml:"descriptors"`
	Artifacts   *resolverSpec `yaml:"artifacts"`

	DescriptorPattern string `yaml:"descriptorPattern"`
	ArtifactPattern   string `yaml:"artifactPattern"`
}

type cacheSpec struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type moduleRuleSpec struct {
	Organisation string `yaml:"organisation"`
	Module       string `yaml:"module"`
	Matcher      string `yaml:"matcher"`
	Resolver     string `yaml:"resolver"`
}

// LoadSettingsFile reads a YAML settings file. Relative paths in it are
// resolved against the file's directory. opts are applied to every
// resolver declared in the file, after the settings' own version matcher
// and latest strategy.
func LoadSettingsFile(path string, opts ...repository.Option) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	s, err := LoadSettings(bytes.NewReader(data), filepath.Dir(abs), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadSettings reads YAML settings from r. Relative paths are resolved
// against baseDir.
func LoadSettings(r io.Reader, baseDir string, opts ...repository.Option) (*Settings, error) {
	var f settingsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	s := NewSettings()
	if f.CacheDir != "" {
		s.SetCacheDir(relTo(baseDir, f.CacheDir))
	}
	if f.VersionMatcher != "" {
		if err := s.SetVersionMatcher(f.VersionMatcher); err != nil {
			return nil, err
		}
	}
	if f.ConflictManager != "" {
		if err := s.SetDefaultConflictManager(f.ConflictManager); err != nil {
			return nil, err
		}
	}
	base := []repository.Option{repository.WithVersionMatcher(s.VersionMatcher())}
	if f.LatestStrategy != "" {
		st, err := s.LatestStrategy(f.LatestStrategy)
		if err != nil {
			return nil, err
		}
		base = append(base, repository.WithLatestStrategy(st))
	}

	b := &settingsBuilder{
		settings: s,
		baseDir:  baseDir,
		opts:     append(base, opts...),
	}
	for i := range f.Resolvers {
		spec := &f.Resolvers[i]
		if spec.Ref != "" {
			return nil, fmt.Errorf("resolver %d: ref is only allowed inside chain and dual resolvers", i)
		}
		res, err := b.build(spec)
		if err != nil {
			return nil, err
		}
		if err := s.AddResolver(res); err != nil {
			return nil, err
		}
	}

	if f.DefaultResolver != "" {
		if err := s.SetDefaultResolver(f.DefaultResolver); err != nil {
			return nil, err
		}
	}
	if f.Dictator != "" {
		if err := s.SetDictatorResolver(f.Dictator); err != nil {
			return nil, err
		}
	}
	for _, rule := range f.Modules {
		err := s.AddModuleRule(ModuleRule{
			Organisation: rule.Organisation,
			Module:       rule.Module,
			Matcher:      rule.Matcher,
			Resolver:     rule.Resolver,
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

type settingsBuilder struct {
	settings *Settings
	baseDir  string
	opts     []repository.Option
}

func (b *settingsBuilder) build(spec *resolverSpec) (repository.Resolver, error) {
	if spec.Ref != "" {
		return b.settings.Resolver(spec.Ref)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("%s resolver without a name", spec.Type)
	}

	opts := b.opts
	if spec.DescriptorPattern != "" {
		opts = append(opts[:len(opts):len(opts)], repository.WithDescriptorPattern(spec.DescriptorPattern))
	}
	if spec.ArtifactPattern != "" {
		opts = append(opts[:len(opts):len(opts)], repository.WithArtifactPattern(spec.ArtifactPattern))
	}

	var r repository.Resolver
	switch spec.Type {
	case ResolverTypeFile:
		switch {
		case spec.URL != "":
			fr, err := repository.NewFileResolverURL(spec.Name, spec.URL, opts...)
			if err != nil {
				return nil, fmt.Errorf("resolver %s: %w", spec.Name, err)
			}
			r = fr
		case spec.Root != "":
			r = repository.NewFileResolver(spec.Name, relTo(b.baseDir, spec.Root), opts...)
		default:
			return nil, fmt.Errorf("resolver %s: file resolver needs root or url", spec.Name)
		}
	case ResolverTypeURL:
		if spec.URL == "" {
			return nil, fmt.Errorf("resolver %s: url resolver needs url", spec.Name)
		}
		if spec.Timeout > 0 {
			opts = append(opts[:len(opts):len(opts)], repository.WithTimeout(spec.Timeout))
		}
		r = repository.NewURLResolver(spec.Name, spec.URL, opts...)
	case ResolverTypeChain:
		children := make([]repository.Resolver, 0, len(spec.Resolvers))
		for i := range spec.Resolvers {
			child, err := b.build(&spec.Resolvers[i])
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("resolver %s: chain without resolvers", spec.Name)
		}
		opts = append(opts[:len(opts):len(opts)], repository.WithReturnFirst(spec.ReturnFirst))
		r = repository.NewChain(spec.Name, children, opts...)
	case ResolverTypeDual:
		if spec.Descriptors == nil || spec.Artifacts == nil {
			return nil, fmt.Errorf("resolver %s: dual resolver needs descriptors and artifacts", spec.Name)
		}
		descriptors, err := b.build(spec.Descriptors)
		if err != nil {
			return nil, err
		}
		artifacts, err := b.build(spec.Artifacts)
		if err != nil {
			return nil, err
		}
		r = repository.NewDual(spec.Name, descriptors, artifacts)
	default:
		return nil, &ConfigError{Kind: "resolver type", Name: spec.Type, Known: resolverTypes, Err: ErrUnknownResolverType}
	}

	if spec.Cache != nil {
		r = repository.NewCached(r, spec.Cache.Size, spec.Cache.TTL, opts...)
	}
	return r, nil
}

func relTo(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
