package lockfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/version"
)

// Change is a module added or removed between two files.
type Change struct {
	Module   module.ID `json:"module"`
	Revision string    `json:"revision"`
}

// Upgrade is a module whose revision differs between two files.
type Upgrade struct {
	Module      module.ID `json:"module"`
	OldRevision string    `json:"old_revision"`
	NewRevision string    `json:"new_revision"`
}

// Diff describes the differences between two resolutions.
type Diff struct {
	// Added contains modules present in new but not in old.
	Added []Change `json:"added,omitempty"`

	// Removed contains modules present in old but not in new.
	Removed []Change `json:"removed,omitempty"`

	// Upgraded contains modules where the new revision sorts higher.
	Upgraded []Upgrade `json:"upgraded,omitempty"`

	// Downgraded contains modules where the new revision sorts lower.
	Downgraded []Upgrade `json:"downgraded,omitempty"`
}

// IsEmpty reports whether the two resolutions pin the same revisions.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		len(d.Upgraded) == 0 &&
		len(d.Downgraded) == 0
}

// TotalChanges returns the number of changed modules.
func (d *Diff) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Upgraded) + len(d.Downgraded)
}

// Summary returns a one-line description of d.
func (d *Diff) Summary() string {
	if d.IsEmpty() {
		return "no changes"
	}
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Upgraded); n > 0 {
		parts = append(parts, fmt.Sprintf("%d upgraded", n))
	}
	if n := len(d.Downgraded); n > 0 {
		parts = append(parts, fmt.Sprintf("%d downgraded", n))
	}
	return strings.Join(parts, ", ")
}

// Compare computes the difference between two files. A nil file counts as
// empty. Revisions are ordered with version.Compare; two different strings
// that compare equal are not reported.
func Compare(old, new *File) *Diff {
	d := &Diff{}
	oldModules := modules(old)
	newModules := modules(new)

	for mid, n := range newModules {
		o, existed := oldModules[mid]
		if !existed {
			d.Added = append(d.Added, Change{Module: mid, Revision: n.Revision})
			continue
		}
		if o.Revision == n.Revision {
			continue
		}
		up := Upgrade{Module: mid, OldRevision: o.Revision, NewRevision: n.Revision}
		switch c := version.Compare(n.Revision, o.Revision); {
		case c > 0:
			d.Upgraded = append(d.Upgraded, up)
		case c < 0:
			d.Downgraded = append(d.Downgraded, up)
		}
	}
	for mid, o := range oldModules {
		if _, ok := newModules[mid]; !ok {
			d.Removed = append(d.Removed, Change{Module: mid, Revision: o.Revision})
		}
	}

	sortChanges(d.Added)
	sortChanges(d.Removed)
	sortUpgrades(d.Upgraded)
	sortUpgrades(d.Downgraded)
	return d
}

func modules(f *File) map[module.ID]Entry {
	if f == nil {
		return nil
	}
	return f.Modules
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Module.String() < changes[j].Module.String()
	})
}

func sortUpgrades(upgrades []Upgrade) {
	sort.Slice(upgrades, func(i, j int) bool {
		return upgrades[i].Module.String() < upgrades[j].Module.String()
	})
}
