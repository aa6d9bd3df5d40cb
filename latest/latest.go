// Package latest orders candidate revisions so that conflict managers and
// resolvers can pick the most recent one.
package latest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eed3si9n/ivy/version"
)

// Strategy names.
const (
	Revision = "latest-revision"
	Lexico   = "latest-lexico"
	Time     = "latest-time"
)

var (
	// ErrNotEnoughInformation is returned when a strategy cannot order
	// candidates yet, for instance publication dates that are not known
	// before descriptors are loaded.
	ErrNotEnoughInformation = errors.New("not enough information to order revisions")

	// ErrUnknownStrategy is returned for an unregistered strategy name.
	ErrUnknownStrategy = errors.New("unknown latest strategy")
)

// Info is what a strategy knows about one candidate.
type Info struct {
	Revision  string
	Published time.Time
}

// Strategy orders candidates from oldest to latest.
type Strategy interface {
	Name() string
	Compare(a, b Info) (int, error)
}

type revisionStrategy struct{}

func (revisionStrategy) Name() string { return Revision }

func (revisionStrategy) Compare(a, b Info) (int, error) {
	return version.Compare(a.Revision, b.Revision), nil
}

type lexicoStrategy struct{}

func (lexicoStrategy) Name() string { return Lexico }

func (lexicoStrategy) Compare(a, b Info) (int, error) {
	return strings.Compare(a.Revision, b.Revision), nil
}

type timeStrategy struct{}

func (timeStrategy) Name() string { return Time }

func (timeStrategy) Compare(a, b Info) (int, error) {
	if a.Published.IsZero() || b.Published.IsZero() {
		return 0, ErrNotEnoughInformation
	}
	return a.Published.Compare(b.Published), nil
}

// ByRevision orders with the parsed-revision comparison.
func ByRevision() Strategy { return revisionStrategy{} }

// ByLexico orders revisions as plain strings.
func ByLexico() Strategy { return lexicoStrategy{} }

// ByTime orders by publication date.
func ByTime() Strategy { return timeStrategy{} }

// FindLatest returns the index of the latest candidate. Ties keep the
// earliest candidate. It returns -1 for an empty slice.
func FindLatest(s Strategy, infos []Info) (int, error) {
	best := -1
	for i, info := range infos {
		if best < 0 {
			best = i
			continue
		}
		c, err := s.Compare(info, infos[best])
		if err != nil {
			return -1, err
		}
		if c > 0 {
			best = i
		}
	}
	return best, nil
}

// Sort orders infos from oldest to latest, keeping equal elements in their
// original order.
func Sort(s Strategy, infos []Info) error {
	var err error
	sort.SliceStable(infos, func(i, j int) bool {
		c, cerr := s.Compare(infos[i], infos[j])
		if cerr != nil && err == nil {
			err = cerr
		}
		return c < 0
	})
	return err
}

// Registry holds strategies by name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns a registry with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Add(ByRevision())
	r.Add(ByLexico())
	r.Add(ByTime())
	return r
}

// Add registers s under its name.
func (r *Registry) Add(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
