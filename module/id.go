// Package module holds the resolution data model: module and revision
// identifiers, configurations, artifacts, dependency descriptors and module
// descriptors.
package module

import (
	"fmt"
	"sort"
	"strings"
)

// ID identifies a module regardless of revision.
type ID struct {
	Organisation string
	Name         string
}

// NewID returns the module id for organisation and name.
func NewID(organisation, name string) ID {
	return ID{Organisation: organisation, Name: name}
}

// String returns "organisation#name".
func (id ID) String() string {
	return id.Organisation + "#" + id.Name
}

// ParseID parses "organisation#name".
func ParseID(s string) (ID, error) {
	org, name, ok := strings.Cut(s, "#")
	if !ok || org == "" || name == "" {
		return ID{}, fmt.Errorf("invalid module id %q: expected organisation#name", s)
	}
	return NewID(org, name), nil
}

// RevisionID identifies one concrete revision of a module. It is comparable
// and therefore usable as a map key; extra attributes are kept in a canonical
// encoded form.
type RevisionID struct {
	ID
	Revision string
	extra    string
}

// NewRevisionID returns a revision id without extra attributes.
func NewRevisionID(organisation, name, revision string) RevisionID {
	return RevisionID{ID: NewID(organisation, name), Revision: revision}
}

// NewRevisionIDWithExtra returns a revision id carrying extra attributes.
func NewRevisionIDWithExtra(organisation, name, revision string, extra map[string]string) RevisionID {
	id := NewRevisionID(organisation, name, revision)
	id.extra = encodeExtra(extra)
	return id
}

// Equal reports whether r and o name the same revision, extra attributes
// included.
func (r RevisionID) Equal(o RevisionID) bool {
	return r == o
}

// ModuleID returns the revision-agnostic part of r.
func (r RevisionID) ModuleID() ID {
	return r.ID
}

// IsZero reports whether r is the zero value.
func (r RevisionID) IsZero() bool {
	return r == RevisionID{}
}

// WithRevision returns a copy of r with a different revision.
func (r RevisionID) WithRevision(revision string) RevisionID {
	r.Revision = revision
	return r
}

// Extra returns a copy of the extra attributes, or nil when there are none.
func (r RevisionID) Extra() map[string]string {
	if r.extra == "" {
		return nil
	}
	out := make(map[string]string)
	for _, kv := range strings.Split(r.extra, ",") {
		k, v, _ := strings.Cut(kv, "=")
		out[k] = v
	}
	return out
}

// String returns "organisation#name;revision", followed by the extra
// attributes in brackets when present.
func (r RevisionID) String() string {
	s := r.ID.String() + ";" + r.Revision
	if r.extra != "" {
		s += "[" + r.extra + "]"
	}
	return s
}

// ParseRevisionID parses the String form of a revision id.
func ParseRevisionID(s string) (RevisionID, error) {
	var extra string
	if i := strings.IndexByte(s, '['); i >= 0 && strings.HasSuffix(s, "]") {
		extra = s[i+1 : len(s)-1]
		s = s[:i]
	}
	org, rest, ok := strings.Cut(s, "#")
	if !ok || org == "" {
		return RevisionID{}, fmt.Errorf("invalid revision id %q: missing organisation", s)
	}
	name, rev, ok := strings.Cut(rest, ";")
	if !ok || name == "" {
		return RevisionID{}, fmt.Errorf("invalid revision id %q: expected organisation#name;revision", s)
	}
	id := NewRevisionID(org, name, rev)
	id.extra = extra
	return id, nil
}

func encodeExtra(extra map[string]string) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+extra[k])
	}
	return strings.Join(parts, ",")
}
