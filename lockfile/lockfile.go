package lockfile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/eed3si9n/ivy/module"
)

// CurrentVersion is the file format version written by this package.
const CurrentVersion = 1

// ErrConflict is returned by Merge under MergeErrorOnConflict when both
// files pin the same module to different entries.
var ErrConflict = errors.New("conflicting resolved revisions")

// Entry is the resolution outcome for one module.
type Entry struct {
	Revision string `json:"revision"`
	Status   string `json:"status,omitempty"`
}

// File holds the resolved revisions of one root module.
type File struct {
	Version int

	// Root is the resolved revision id of the module that was resolved.
	Root module.RevisionID

	Modules map[module.ID]Entry
}

// New returns an empty file for root.
func New(root module.RevisionID) *File {
	return &File{
		Version: CurrentVersion,
		Root:    root,
		Modules: make(map[module.ID]Entry),
	}
}

// Set records e for mid, replacing any previous entry.
func (f *File) Set(mid module.ID, e Entry) {
	f.Modules[mid] = e
}

// Get returns the entry for mid.
func (f *File) Get(mid module.ID) (Entry, bool) {
	e, ok := f.Modules[mid]
	return e, ok
}

// Len returns the number of modules recorded.
func (f *File) Len() int {
	return len(f.Modules)
}

// IDs returns the recorded module ids sorted by their string form.
func (f *File) IDs() []module.ID {
	ids := make([]module.ID, 0, len(f.Modules))
	for mid := range f.Modules {
		ids = append(ids, mid)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// MergeStrategy defines how Merge handles a module present in both files
// with different entries.
type MergeStrategy int

const (
	// MergePreferExisting keeps the receiver's entry.
	MergePreferExisting MergeStrategy = iota

	// MergePreferNew takes the other file's entry.
	MergePreferNew

	// MergeErrorOnConflict fails with ErrConflict.
	MergeErrorOnConflict
)

// Merge folds other into f. Merging a nil file is a no-op.
func (f *File) Merge(other *File, strategy MergeStrategy) error {
	if other == nil {
		return nil
	}
	for _, mid := range other.IDs() {
		e := other.Modules[mid]
		existing, ok := f.Modules[mid]
		if !ok || existing == e {
			f.Modules[mid] = e
			continue
		}
		switch strategy {
		case MergePreferExisting:
		case MergePreferNew:
			f.Modules[mid] = e
		case MergeErrorOnConflict:
			return fmt.Errorf("%w for %s: %s vs %s", ErrConflict, mid, existing.Revision, e.Revision)
		}
	}
	return nil
}
