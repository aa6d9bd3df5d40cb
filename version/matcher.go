package version

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/eed3si9n/ivy/module"
)

// Matcher names.
const (
	ExactMatcher   = "exact"
	PatternMatcher = "pattern"
	RangeMatcher   = "range"
	LatestMatcher  = "latest"
	SemverMatcher  = "semver"
	ChainMatcher   = "chain"
)

// ErrUnknownMatcher is returned for an unregistered version matcher name.
var ErrUnknownMatcher = errors.New("unknown version matcher")

// Matcher decides whether a revision constraint is dynamic and which
// revisions satisfy it.
type Matcher interface {
	Name() string

	// IsDynamic reports whether constraint can match more than one
	// revision.
	IsDynamic(constraint string) bool

	// Accept reports whether revision satisfies constraint, as far as can
	// be told from the revision string alone.
	Accept(constraint, revision string) bool

	// NeedsDescriptor reports whether AcceptDescriptor must also be
	// consulted for constraint.
	NeedsDescriptor(constraint string) bool

	// AcceptDescriptor reports whether the loaded descriptor satisfies
	// constraint.
	AcceptDescriptor(constraint string, md *module.Descriptor) bool
}

type exact struct{}

// Exact accepts only the requested revision itself.
func Exact() Matcher { return exact{} }

func (exact) Name() string                                     { return ExactMatcher }
func (exact) IsDynamic(string) bool                            { return false }
func (exact) Accept(c, r string) bool                          { return c == r }
func (exact) NeedsDescriptor(string) bool                      { return false }
func (exact) AcceptDescriptor(string, *module.Descriptor) bool { return true }

type pattern struct{}

// Pattern handles sub-revision constraints such as "1.2.+" or "+": every
// revision starting with the part before the plus sign is accepted.
func Pattern() Matcher { return pattern{} }

func (pattern) Name() string { return PatternMatcher }

func (pattern) IsDynamic(c string) bool { return strings.HasSuffix(c, "+") }

func (pattern) Accept(c, r string) bool {
	return strings.HasPrefix(r, strings.TrimSuffix(c, "+"))
}

func (pattern) NeedsDescriptor(string) bool                      { return false }
func (pattern) AcceptDescriptor(string, *module.Descriptor) bool { return true }

// Bounds of a parsed range.
type bounds struct {
	lower, upper         string
	lowerIncl, upperIncl bool
}

type rangeMatcher struct {
	cache sync.Map // map[string]bounds
}

// Range handles interval constraints: "[1.0,2.0]" is inclusive,
// "[1.0,2.0[" and "[1.0,2.0)" exclude the upper bound, "]1.0,2.0]" and
// "(1.0,2.0]" exclude the lower bound, and an empty bound is unlimited, as
// in "[1.0,)" or "(,2.0]".
func Range() Matcher { return &rangeMatcher{} }

func (*rangeMatcher) Name() string { return RangeMatcher }

func (m *rangeMatcher) IsDynamic(c string) bool {
	_, ok := m.parse(c)
	return ok
}

func (m *rangeMatcher) parse(c string) (bounds, bool) {
	if cached, ok := m.cache.Load(c); ok {
		return cached.(bounds), true
	}
	if len(c) < 3 {
		return bounds{}, false
	}
	first, last := c[0], c[len(c)-1]
	if !strings.ContainsRune("[](", rune(first)) || !strings.ContainsRune("[])", rune(last)) {
		return bounds{}, false
	}
	lower, upper, ok := strings.Cut(c[1:len(c)-1], ",")
	if !ok || strings.Contains(upper, ",") {
		return bounds{}, false
	}
	b := bounds{
		lower:     strings.TrimSpace(lower),
		upper:     strings.TrimSpace(upper),
		lowerIncl: first == '[',
		upperIncl: last == ']',
	}
	if b.lower == "" && b.upper == "" {
		return bounds{}, false
	}
	m.cache.Store(c, b)
	return b, true
}

func (m *rangeMatcher) Accept(c, r string) bool {
	b, ok := m.parse(c)
	if !ok {
		return false
	}
	if b.lower != "" {
		cmp := Compare(r, b.lower)
		if cmp < 0 || (cmp == 0 && !b.lowerIncl) {
			return false
		}
	}
	if b.upper != "" {
		cmp := Compare(r, b.upper)
		if cmp > 0 || (cmp == 0 && !b.upperIncl) {
			return false
		}
	}
	return true
}

func (*rangeMatcher) NeedsDescriptor(string) bool                      { return false }
func (*rangeMatcher) AcceptDescriptor(string, *module.Descriptor) bool { return true }

const latestPrefix = "latest."

type latest struct{}

// Latest handles "latest.<status>" constraints: any revision whose
// descriptor status is at least as mature as the requested status.
func Latest() Matcher { return latest{} }

func (latest) Name() string { return LatestMatcher }

func (latest) IsDynamic(c string) bool { return strings.HasPrefix(c, latestPrefix) }

func (latest) Accept(string, string) bool { return true }

func (latest) NeedsDescriptor(c string) bool {
	return module.StatusPriority(strings.TrimPrefix(c, latestPrefix)) < module.StatusPriority(module.StatusIntegration)
}

func (latest) AcceptDescriptor(c string, md *module.Descriptor) bool {
	asked := strings.TrimPrefix(c, latestPrefix)
	return module.StatusPriority(md.Status) <= module.StatusPriority(asked)
}

type semverMatcher struct {
	cache sync.Map // map[string]*semver.Constraints
}

// Semver handles semantic-version constraints such as "^1.2", "~1.4.0" or
// ">= 1.0, < 2.0". Revisions that are not valid semantic versions never
// match.
func Semver() Matcher { return &semverMatcher{} }

func (*semverMatcher) Name() string { return SemverMatcher }

func (m *semverMatcher) constraints(c string) (*semver.Constraints, bool) {
	c = strings.TrimSpace(c)
	if c == "" || (!strings.ContainsAny(c[:1], "^~<>=!") && !strings.Contains(c, "||")) {
		return nil, false
	}
	if cached, ok := m.cache.Load(c); ok {
		return cached.(*semver.Constraints), true
	}
	parsed, err := semver.NewConstraint(c)
	if err != nil {
		return nil, false
	}
	m.cache.Store(c, parsed)
	return parsed, true
}

func (m *semverMatcher) IsDynamic(c string) bool {
	_, ok := m.constraints(c)
	return ok
}

func (m *semverMatcher) Accept(c, r string) bool {
	cs, ok := m.constraints(c)
	if !ok {
		return false
	}
	v, err := semver.NewVersion(r)
	if err != nil {
		return false
	}
	return cs.Check(v)
}

func (*semverMatcher) NeedsDescriptor(string) bool                      { return false }
func (*semverMatcher) AcceptDescriptor(string, *module.Descriptor) bool { return true }

// Chain delegates each constraint to the first member that considers it
// dynamic, and treats it as exact otherwise.
type Chain struct {
	matchers []Matcher
}

// NewChain returns a chain over matchers, consulted in order.
func NewChain(matchers ...Matcher) *Chain {
	return &Chain{matchers: matchers}
}

// Default returns the chain of built-in matchers.
func Default() *Chain {
	return NewChain(Latest(), Range(), Semver(), Pattern())
}

func (c *Chain) Name() string { return ChainMatcher }

// Matchers returns the chain members.
func (c *Chain) Matchers() []Matcher { return c.matchers }

func (c *Chain) pick(constraint string) Matcher {
	for _, m := range c.matchers {
		if m.IsDynamic(constraint) {
			return m
		}
	}
	return exact{}
}

func (c *Chain) IsDynamic(constraint string) bool {
	return c.pick(constraint).IsDynamic(constraint)
}

func (c *Chain) Accept(constraint, revision string) bool {
	return c.pick(constraint).Accept(constraint, revision)
}

func (c *Chain) NeedsDescriptor(constraint string) bool {
	return c.pick(constraint).NeedsDescriptor(constraint)
}

func (c *Chain) AcceptDescriptor(constraint string, md *module.Descriptor) bool {
	return c.pick(constraint).AcceptDescriptor(constraint, md)
}

// AcceptID reports whether found satisfies the revision constraint carried
// by asked. Module ids must be equal.
func AcceptID(m Matcher, asked, found module.RevisionID) bool {
	if asked.ModuleID() != found.ModuleID() {
		return false
	}
	if asked.Revision == found.Revision {
		return true
	}
	return m.Accept(asked.Revision, found.Revision)
}

// Registry holds version matchers by name.
type Registry struct {
	mu       sync.RWMutex
	matchers map[string]Matcher
}

// NewRegistry returns a registry with the built-in matchers and the default
// chain.
func NewRegistry() *Registry {
	r := &Registry{matchers: make(map[string]Matcher)}
	for _, m := range []Matcher{Exact(), Pattern(), Range(), Latest(), Semver(), Default()} {
		r.Add(m)
	}
	return r
}

// Add registers m under its name.
func (r *Registry) Add(m Matcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers[m.Name()] = m
}

// Get returns the named matcher.
func (r *Registry) Get(name string) (Matcher, error) {
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
