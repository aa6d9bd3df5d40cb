// Package matcher provides the pattern matchers used to select modules by
// organisation, name and revision: exact, regexp, exactOrRegexp and glob.
//
// The expression "*" matches everything under every matcher.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/eed3si9n/ivy/module"
	"github.com/gobwas/glob"
)

// Built-in matcher names.
const (
	Exact         = "exact"
	Regexp        = "regexp"
	ExactOrRegexp = "exactOrRegexp"
	Glob          = "glob"
)

// Any is the expression matching every value.
const Any = "*"

// ErrUnknownMatcher is returned when a matcher name is not registered.
var ErrUnknownMatcher = errors.New("unknown matcher")

// Matcher tests values against one compiled expression.
type Matcher interface {
	Matches(s string) bool

	// IsExact reports whether the expression only matches itself.
	IsExact() bool
}

// PatternMatcher compiles expressions into Matchers.
type PatternMatcher interface {
	Name() string
	Compile(expr string) (Matcher, error)
}

type anyMatcher struct{}

func (anyMatcher) Matches(string) bool { return true }
func (anyMatcher) IsExact() bool       { return false }

type literal string

func (l literal) Matches(s string) bool { return string(l) == s }
func (literal) IsExact() bool           { return true }

type exactMatcher struct{}

func (exactMatcher) Name() string { return Exact }

func (exactMatcher) Compile(expr string) (Matcher, error) {
	if expr == Any {
		return anyMatcher{}, nil
	}
	return literal(expr), nil
}

type regexpMatcher struct {
	name       string
	exactFirst bool
	cache      sync.Map // map[string]*regexp.Regexp
}

type compiledRegexp struct {
	re    *regexp.Regexp
	expr  string
	exact bool
}

func (m compiledRegexp) Matches(s string) bool {
	if m.exact && s == m.expr {
		return true
	}
	return m.re.MatchString(s)
}

func (m compiledRegexp) IsExact() bool { return false }

func (m *regexpMatcher) Name() string { return m.name }

func (m *regexpMatcher) Compile(expr string) (Matcher, error) {
	if expr == Any {
		return anyMatcher{}, nil
	}
	if cached, ok := m.cache.Load(expr); ok {
		return compiledRegexp{re: cached.(*regexp.Regexp), expr: expr, exact: m.exactFirst}, nil
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("%s matcher: %w", m.name, err)
	}
	m.cache.Store(expr, re)
	return compiledRegexp{re: re, expr: expr, exact: m.exactFirst}, nil
}

type globMatcher struct {
	cache sync.Map // map[string]glob.Glob
}

type compiledGlob struct {
	g     glob.Glob
	exact bool
}

func (m compiledGlob) Matches(s string) bool { return m.g.Match(s) }
func (m compiledGlob) IsExact() bool         { return m.exact }

func (m *globMatcher) Name() string { return Glob }

func (m *globMatcher) Compile(expr string) (Matcher, error) {
	if expr == Any {
		return anyMatcher{}, nil
	}
	exact := !strings.ContainsAny(expr, "*?[{\\")
	if cached, ok := m.cache.Load(expr); ok {
		return compiledGlob{g: cached.(glob.Glob), exact: exact}, nil
	}
	g, err := glob.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("glob matcher: %w", err)
	}
	m.cache.Store(expr, g)
	return compiledGlob{g: g, exact: exact}, nil
}

// Registry holds pattern matchers by name.
type Registry struct {
	mu       sync.RWMutex
	matchers map[string]PatternMatcher
}

// NewRegistry returns a registry with the built-in matchers.
func NewRegistry() *Registry {
	r := &Registry{matchers: make(map[string]PatternMatcher)}
	r.Add(exactMatcher{})
	r.Add(&regexpMatcher{name: Regexp})
	r.Add(&regexpMatcher{name: ExactOrRegexp, exactFirst: true})
	r.Add(&globMatcher{})
	return r
}

// Add registers m under its name, replacing any previous entry.
func (r *Registry) Add(m PatternMatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers[m.Name()] = m
}

// Get returns the named matcher. An empty name selects exact.
func (r *Registry) Get(name string) (PatternMatcher, error) {
	if name == "" {
		name = Exact
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matchers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownMatcher, name, strings.Join(r.namesLocked(), ", "))
	}
	return m, nil
}

// Names returns the registered matcher names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.matchers))
	for n := range r.matchers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ModuleIDMatcher matches module ids against an organisation and name
// pattern.
type ModuleIDMatcher struct {
	org  Matcher
	name Matcher
}

// NewModuleIDMatcher compiles pattern with pm.
func NewModuleIDMatcher(pm PatternMatcher, pattern module.ID) (*ModuleIDMatcher, error) {
	org, err := pm.Compile(pattern.Organisation)
	if err != nil {
		return nil, err
	}
	name, err := pm.Compile(pattern.Name)
	if err != nil {
		return nil, err
	}
	return &ModuleIDMatcher{org: org, name: name}, nil
}

// Matches reports whether id matches.
func (m *ModuleIDMatcher) Matches(id module.ID) bool {
	return m.org.Matches(id.Organisation) && m.name.Matches(id.Name)
}

// MatchModule reports whether id matches pattern under pm.
func MatchModule(pm PatternMatcher, pattern, id module.ID) (bool, error) {
	m, err := NewModuleIDMatcher(pm, pattern)
	if err != nil {
		return false, err
	}
	return m.Matches(id), nil
}

// MatchRevision reports whether id matches pattern, revision included.
func MatchRevision(pm PatternMatcher, pattern, id module.RevisionID) (bool, error) {
	ok, err := MatchModule(pm, pattern.ModuleID(), id.ModuleID())
	if err != nil || !ok {
		return false, err
	}
	rev, err := pm.Compile(pattern.Revision)
	if err != nil {
		return false, err
	}
	return rev.Matches(id.Revision), nil
}

// IsExactRevision reports whether every part of pattern is an exact
// expression under pm.
func IsExactRevision(pm PatternMatcher, pattern module.RevisionID) bool {
	for _, expr := range []string{pattern.Organisation, pattern.Name, pattern.Revision} {
		m, err := pm.Compile(expr)
		if err != nil || !m.IsExact() {
			return false
		}
	}
	return true
}
