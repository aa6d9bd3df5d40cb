package ivy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/latest"
	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
	"github.com/eed3si9n/ivy/version"
)

// ModuleRule routes the modules matching an organisation and name pattern
// to a named resolver.
type ModuleRule struct {
	Organisation string
	Module       string

	// Matcher is the pattern matcher name; empty means exactOrRegexp.
	Matcher string

	Resolver string
}

type compiledRule struct {
	ModuleRule
	m *matcher.ModuleIDMatcher
}

// Settings holds everything resolution needs besides the descriptor:
// resolvers and the rules choosing between them, plus the named conflict
// managers, latest strategies, version matchers and pattern matchers.
//
// Settings is safe for concurrent use.
type Settings struct {
	mu sync.RWMutex

	resolvers       map[string]repository.Resolver
	defaultResolver string
	dictator        string
	rules           []compiledRule

	conflictManagers *conflict.Registry
	latestStrategies *latest.Registry
	versionMatchers  *version.Registry
	patternMatchers  *matcher.Registry
	versionMatcher   version.Matcher

	cacheDir string
}

// NewSettings returns settings with the built-in registries and no
// resolver.
func NewSettings() *Settings {
	return &Settings{
		resolvers:        make(map[string]repository.Resolver),
		conflictManagers: conflict.NewRegistry(),
		latestStrategies: latest.NewRegistry(),
		versionMatchers:  version.NewRegistry(),
		patternMatchers:  matcher.NewRegistry(),
		versionMatcher:   version.Default(),
	}
}

// AddResolver registers r and, for chains and duals, every resolver nested
// in it, each under its own name. The first resolver added becomes the
// default until SetDefaultResolver says otherwise.
func (s *Settings) AddResolver(r repository.Resolver) error {
	if r == nil || r.Name() == "" {
		return fmt.Errorf("resolver must have a name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := repository.Walk(r, func(child repository.Resolver) error {
		if child.Name() == "" {
			return fmt.Errorf("resolver nested in %q must have a name", r.Name())
		}
		s.resolvers[child.Name()] = child
		return nil
	})
	if err != nil {
		return err
	}
	if s.defaultResolver == "" {
		s.defaultResolver = r.Name()
	}
	return nil
}

// Resolver returns the resolver registered under name.
func (s *Settings) Resolver(name string) (repository.Resolver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolverLocked(name)
}

func (s *Settings) resolverLocked(name string) (repository.Resolver, error) {
	r, ok := s.resolvers[name]
	if !ok {
		return nil, &ConfigError{Kind: "resolver", Name: name, Known: s.resolverNamesLocked(), Err: ErrUnknownResolver}
	}
	return r, nil
}

// ResolverNames returns the registered resolver names, sorted.
func (s *Settings) ResolverNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolverNamesLocked()
}

func (s *Settings) resolverNamesLocked() []string {
	names := make([]string, 0, len(s.resolvers))
	for n := range s.resolvers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetDefaultResolver makes name the resolver used when no rule matches.
func (s *Settings) SetDefaultResolver(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.resolverLocked(name); err != nil {
		return err
	}
	s.defaultResolver = name
	return nil
}

// DefaultResolver returns the default resolver name.
func (s *Settings) DefaultResolver() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultResolver
}

// SetDictatorResolver routes every module to name, ignoring rules and the
// default. An empty name clears it.
func (s *Settings) SetDictatorResolver(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, err := s.resolverLocked(name); err != nil {
			return err
		}
	}
	s.dictator = name
	return nil
}

// DictatorResolver returns the dictator resolver name, empty when unset.
func (s *Settings) DictatorResolver() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dictator
}

// AddModuleRule appends rule. Rules are tried in the order they were
// added. The matcher and resolver names are checked here.
func (s *Settings) AddModuleRule(rule ModuleRule) error {
	if rule.Matcher == "" {
		rule.Matcher = matcher.ExactOrRegexp
	}
	pm, err := s.PatternMatcher(rule.Matcher)
	if err != nil {
		return err
	}
	m, err := matcher.NewModuleIDMatcher(pm, module.NewID(orAny(rule.Organisation), orAny(rule.Module)))
	if err != nil {
		return fmt.Errorf("invalid module rule %s#%s: %w", rule.Organisation, rule.Module, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.resolverLocked(rule.Resolver); err != nil {
		return err
	}
	s.rules = append(s.rules, compiledRule{ModuleRule: rule, m: m})
	return nil
}

// ModuleRules returns the configured rules in order.
func (s *Settings) ModuleRules() []ModuleRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModuleRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.ModuleRule
	}
	return out
}

// ResolverFor returns the resolver responsible for mid: the dictator if
// set, else the first matching module rule, else the default resolver.
func (s *Settings) ResolverFor(mid module.ID) (repository.Resolver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dictator != "" {
		return s.resolverLocked(s.dictator)
	}
	for _, rule := range s.rules {
		if rule.m.Matches(mid) {
			return s.resolverLocked(rule.Resolver)
		}
	}
	if s.defaultResolver == "" {
		return nil, &ConfigError{Kind: "resolver", Name: mid.String(), Err: ErrNoResolver}
	}
	return s.resolverLocked(s.defaultResolver)
}

// ConflictManagers returns the conflict manager registry.
func (s *Settings) ConflictManagers() *conflict.Registry {
	return s.conflictManagers
}

// ConflictManager returns the named conflict manager; "default" and ""
// select the default one.
func (s *Settings) ConflictManager(name string) (conflict.Manager, error) {
	m, err := s.conflictManagers.Get(name)
	if err != nil {
		return nil, &ConfigError{Kind: "conflict manager", Name: name, Known: s.conflictManagers.Names(), Err: ErrUnknownConflictManager}
	}
	return m, nil
}

// SetDefaultConflictManager makes name the target of the "default" alias.
func (s *Settings) SetDefaultConflictManager(name string) error {
	if err := s.conflictManagers.SetDefault(name); err != nil {
		return &ConfigError{Kind: "conflict manager", Name: name, Known: s.conflictManagers.Names(), Err: ErrUnknownConflictManager}
	}
	return nil
}

// LatestStrategies returns the latest strategy registry.
func (s *Settings) LatestStrategies() *latest.Registry {
	return s.latestStrategies
}

// LatestStrategy returns the named latest strategy.
func (s *Settings) LatestStrategy(name string) (latest.Strategy, error) {
	st, err := s.latestStrategies.Get(name)
	if err != nil {
		return nil, &ConfigError{Kind: "latest strategy", Name: name, Known: s.latestStrategies.Names(), Err: ErrUnknownLatestStrategy}
	}
	return st, nil
}

// PatternMatchers returns the pattern matcher registry.
func (s *Settings) PatternMatchers() *matcher.Registry {
	return s.patternMatchers
}

// PatternMatcher returns the named pattern matcher.
func (s *Settings) PatternMatcher(name string) (matcher.PatternMatcher, error) {
	pm, err := s.patternMatchers.Get(name)
	if err != nil {
		return nil, &ConfigError{Kind: "matcher", Name: name, Known: s.patternMatchers.Names(), Err: ErrUnknownMatcher}
	}
	return pm, nil
}

// VersionMatchers returns the version matcher registry.
func (s *Settings) VersionMatchers() *version.Registry {
	return s.versionMatchers
}

// VersionMatcher returns the version matcher used for resolution.
func (s *Settings) VersionMatcher() version.Matcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versionMatcher
}

// SetVersionMatcher selects the registered version matcher name.
func (s *Settings) SetVersionMatcher(name string) error {
	m, err := s.versionMatchers.Get(name)
	if err != nil {
		return &ConfigError{Kind: "version matcher", Name: name, Known: s.versionMatchers.Names(), Err: ErrUnknownVersionMatcher}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versionMatcher = m
	return nil
}

// CacheDir returns the artifact cache directory, empty when unset.
func (s *Settings) CacheDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheDir
}

// SetCacheDir sets the artifact cache directory.
func (s *Settings) SetCacheDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheDir = dir
}

func orAny(s string) string {
	if s == "" {
		return matcher.Any
	}
	return s
}
