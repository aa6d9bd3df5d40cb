// Package conflict provides the conflict managers that choose which
// revisions of a module survive when several are required under the same
// parent.
package conflict

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eed3si9n/ivy/latest"
	"github.com/eed3si9n/ivy/module"
)

// Manager names.
const (
	LatestRevision = latest.Revision
	LatestLexico   = latest.Lexico
	LatestTime     = latest.Time
	All            = "all"
	Strict         = "strict"

	// Default is an alias for the registry's default manager.
	Default = "default"
)

var (
	// ErrUndecided is returned when a manager lacks the information to
	// decide yet. Callers leave the conflict as it is and retry once the
	// candidates are loaded.
	ErrUndecided = errors.New("conflict cannot be decided yet")

	// ErrUnknownManager is returned for an unregistered manager name.
	ErrUnknownManager = errors.New("unknown conflict manager")
)

// Candidate is what a manager needs to know about a conflicting node.
type Candidate interface {
	ResolvedID() module.RevisionID

	// Published returns the publication date, zero when unknown.
	Published() time.Time

	// IsDynamic reports whether the candidate was requested with a dynamic
	// constraint that has not been resolved yet.
	IsDynamic() bool

	// IsForcedBy reports whether the dependency descriptor linking parent
	// to the candidate carries the force flag.
	IsForcedBy(parent Candidate) bool
}

// Manager selects the surviving subset of a conflict set.
type Manager interface {
	Name() string

	// Resolve returns the selected subset of candidates, all of which
	// share a module id and are required under parent.
	Resolve(parent Candidate, candidates []Candidate) ([]Candidate, error)
}

// StrictConflictError reports several revisions of a module under a strict
// manager.
type StrictConflictError struct {
	Module    module.ID
	Revisions []string
}

func (e *StrictConflictError) Error() string {
	return fmt.Sprintf("strict conflict on %s: %s", e.Module, strings.Join(e.Revisions, " vs "))
}

type latestManager struct {
	strategy latest.Strategy
}

// NewLatest returns a manager keeping only the latest candidate according
// to strategy. A forced candidate wins regardless of ordering.
func NewLatest(strategy latest.Strategy) Manager {
	return &latestManager{strategy: strategy}
}

func (m *latestManager) Name() string { return m.strategy.Name() }

func (m *latestManager) Resolve(parent Candidate, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}
	for _, c := range candidates {
		if c.IsForcedBy(parent) {
			return []Candidate{c}, nil
		}
	}
	infos := make([]latest.Info, len(candidates))
	for i, c := range candidates {
		if c.IsDynamic() {
			return nil, ErrUndecided
		}
		infos[i] = latest.Info{Revision: c.ResolvedID().Revision, Published: c.Published()}
	}
	best, err := latest.FindLatest(m.strategy, infos)
	if err != nil {
		if errors.Is(err, latest.ErrNotEnoughInformation) {
			return nil, fmt.Errorf("%w: %v", ErrUndecided, err)
		}
		return nil, err
	}
	return []Candidate{candidates[best]}, nil
}

type allManager struct{}

// NewAll returns a manager that evicts nothing.
func NewAll() Manager { return allManager{} }

func (allManager) Name() string { return All }

func (allManager) Resolve(_ Candidate, candidates []Candidate) ([]Candidate, error) {
	return candidates, nil
}

type strictManager struct{}

// NewStrict returns a manager that fails when more than one distinct
// revision is requested.
func NewStrict() Manager { return strictManager{} }

func (strictManager) Name() string { return Strict }

func (strictManager) Resolve(_ Candidate, candidates []Candidate) ([]Candidate, error) {
	var winner Candidate
	for _, c := range candidates {
		if c.IsDynamic() {
			return nil, ErrUndecided
		}
		if winner == nil {
			winner = c
			continue
		}
		if c.ResolvedID() != winner.ResolvedID() {
			revs := make([]string, 0, len(candidates))
			seen := make(map[string]bool)
			for _, cc := range candidates {
				r := cc.ResolvedID().Revision
				if !seen[r] {
					seen[r] = true
					revs = append(revs, r)
				}
			}
			sort.Strings(revs)
			return nil, &StrictConflictError{Module: c.ResolvedID().ModuleID(), Revisions: revs}
		}
	}
	if winner == nil {
		return nil, nil
	}
	return []Candidate{winner}, nil
}

// Registry holds managers by name and resolves the "default" alias.
type Registry struct {
	mu          sync.RWMutex
	managers    map[string]Manager
	defaultName string
}

// NewRegistry returns a registry with the built-in managers and
// latest-revision as default.
func NewRegistry() *Registry {
	r := &Registry{managers: make(map[string]Manager), defaultName: LatestRevision}
	r.Add(NewLatest(latest.ByRevision()))
	r.Add(NewLatest(latest.ByLexico()))
	r.Add(NewLatest(latest.ByTime()))
	r.Add(NewAll())
	r.Add(NewStrict())
	return r
}

// Add registers m under its name.
func (r *Registry) Add(m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[m.Name()] = m
}

// SetDefault makes name the target of the "default" alias.
func (r *Registry) SetDefault(name string) error {
	if _, err := r.Get(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
	return nil
}

// Default returns the default manager.
func (r *Registry) Default() Manager {
	m, _ := r.Get(Default)
	return m
}

// Get returns the named manager.
func (r *Registry) Get(name string) (Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == Default || name == "" {
		name = r.defaultName
	}
	m, ok := r.managers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownManager, name)
	}
	return m, nil
}

// Names returns the registered manager names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.managers))
	for n := range r.managers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
