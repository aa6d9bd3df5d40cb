package module

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Visibility of a configuration. Private configurations may only be
// requested by the module itself.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Configuration is a named axis of a module's dependency and artifact graph.
type Configuration struct {
	Name        string
	Description string
	Visibility  Visibility

	// Extends lists configurations whose dependencies this one inherits.
	Extends []string

	// Intransitive is true when dependencies reached through this
	// configuration must not be expanded further.
	Intransitive bool
}

// IsTransitive reports whether dependencies reached through c are expanded.
func (c *Configuration) IsTransitive() bool {
	return !c.Intransitive
}

// IsPublic reports whether c may be requested by other modules.
func (c *Configuration) IsPublic() bool {
	return c.Visibility != Private
}

// Artifact is a published file of a module revision.
type Artifact struct {
	Module    RevisionID
	Name      string
	Type      string
	Ext       string
	Confs     []string
	URL       string
	Published time.Time
}

// String returns "organisation#name;revision!artifact.ext(type)".
func (a *Artifact) String() string {
	return fmt.Sprintf("%s!%s.%s(%s)", a.Module, a.Name, a.Ext, a.Type)
}

// ExcludeRule drops matching modules from the dependencies pulled in
// below the rule's owner.
type ExcludeRule struct {
	Organisation string
	Module       string

	// Matcher names the pattern matcher used for Organisation and Module.
	// Empty means exact.
	Matcher string

	// Confs limits the rule to some owner configurations. Empty means all.
	Confs []string
}

// AppliesTo reports whether the rule is active for any of confs.
func (r ExcludeRule) AppliesTo(confs []string) bool {
	if len(r.Confs) == 0 {
		return true
	}
	for _, c := range confs {
		if slices.Contains(r.Confs, c) {
			return true
		}
	}
	return false
}

// ConflictRule routes module ids matching a pattern to a named conflict
// manager.
type ConflictRule struct {
	Organisation string
	Module       string
	Matcher      string
	Manager      string
}

// DependencyDescriptor is an edge from an owning module to a required module
// and revision constraint.
type DependencyDescriptor struct {
	// Owner is the revision id of the module declaring the dependency.
	Owner RevisionID

	// Dependency is the requested module; its revision may be a dynamic
	// constraint understood by a version matcher.
	Dependency RevisionID

	// Confs maps owner configurations to dependency configurations. The
	// key "*" applies to every owner configuration; the value "@" means
	// "the configuration with the same name as the owner's".
	Confs map[string][]string

	Intransitive bool

	// Force makes latest-style conflict managers keep this revision when
	// the conflict is resolved in the owner.
	Force bool

	Excludes []ExcludeRule
}

// NewDependencyDescriptor returns a transitive dependency from owner on dep
// with an empty configuration mapping.
func NewDependencyDescriptor(owner, dep RevisionID) *DependencyDescriptor {
	return &DependencyDescriptor{
		Owner:      owner,
		Dependency: dep,
		Confs:      make(map[string][]string),
	}
}

// AddDependencyConfiguration maps ownerConf to depConf.
func (dd *DependencyDescriptor) AddDependencyConfiguration(ownerConf, depConf string) {
	if dd.Confs == nil {
		dd.Confs = make(map[string][]string)
	}
	if !slices.Contains(dd.Confs[ownerConf], depConf) {
		dd.Confs[ownerConf] = append(dd.Confs[ownerConf], depConf)
	}
}

// ModuleConfigurations returns the owner configurations declared in the
// mapping, sorted.
func (dd *DependencyDescriptor) ModuleConfigurations() []string {
	out := make([]string, 0, len(dd.Confs))
	for k := range dd.Confs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DependencyConfigurations returns the dependency configurations required
// when the owner is fetched in ownerConf. An empty result means the
// dependency is not needed in that configuration.
func (dd *DependencyDescriptor) DependencyConfigurations(ownerConf string) []string {
	var out []string
	add := func(confs []string) {
		for _, c := range confs {
			if c == "@" {
				c = ownerConf
			}
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	add(dd.Confs[ownerConf])
	if ownerConf != "*" {
		add(dd.Confs["*"])
	}
	return out
}

// IsTransitive reports whether the dependency's own dependencies are
// expanded.
func (dd *DependencyDescriptor) IsTransitive() bool {
	return !dd.Intransitive
}

// Descriptor is the full definition of a module revision.
type Descriptor struct {
	// ID is the declared revision id.
	ID RevisionID

	// ResolvedID is the revision id after resolution. It differs from ID
	// when a resolver answered a dynamic constraint or when the caller
	// overrides the revision of the module being resolved.
	ResolvedID RevisionID

	Status    string
	Published time.Time

	Configurations []*Configuration
	Artifacts      []*Artifact
	Dependencies   []*DependencyDescriptor
	ConflictRules  []ConflictRule
	Excludes       []ExcludeRule
}

// NewDescriptor returns an empty descriptor for id with the default status.
func NewDescriptor(id RevisionID) *Descriptor {
	return &Descriptor{ID: id, ResolvedID: id, Status: DefaultStatus}
}

// ResolvedRevisionID returns ResolvedID, falling back to ID.
func (md *Descriptor) ResolvedRevisionID() RevisionID {
	if md.ResolvedID.IsZero() {
		return md.ID
	}
	return md.ResolvedID
}

// Configuration returns the named configuration, or nil.
func (md *Descriptor) Configuration(name string) *Configuration {
	for _, c := range md.Configurations {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ConfigurationNames returns the configuration names in declaration order.
func (md *Descriptor) ConfigurationNames() []string {
	out := make([]string, 0, len(md.Configurations))
	for _, c := range md.Configurations {
		out = append(out, c.Name)
	}
	return out
}

// PublicConfigurationNames returns the public configuration names in
// declaration order.
func (md *Descriptor) PublicConfigurationNames() []string {
	var out []string
	for _, c := range md.Configurations {
		if c.IsPublic() {
			out = append(out, c.Name)
		}
	}
	return out
}

// AddConfiguration appends c.
func (md *Descriptor) AddConfiguration(c *Configuration) {
	md.Configurations = append(md.Configurations, c)
}

// AddDependency appends dd, setting its owner to md's id.
func (md *Descriptor) AddDependency(dd *DependencyDescriptor) {
	dd.Owner = md.ID
	md.Dependencies = append(md.Dependencies, dd)
}

// AddArtifact appends a for the given configurations.
func (md *Descriptor) AddArtifact(a *Artifact) {
	if a.Module.IsZero() {
		a.Module = md.ResolvedRevisionID()
	}
	md.Artifacts = append(md.Artifacts, a)
}

// ArtifactsFor returns the artifacts published in conf. Artifacts declaring
// no configuration belong to every configuration.
func (md *Descriptor) ArtifactsFor(conf string) []*Artifact {
	var out []*Artifact
	for _, a := range md.Artifacts {
		if len(a.Confs) == 0 || slices.Contains(a.Confs, conf) || slices.Contains(a.Confs, "*") {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks that configuration names are unique and that every
// extended configuration exists.
func (md *Descriptor) Validate() error {
	seen := make(map[string]bool, len(md.Configurations))
	for _, c := range md.Configurations {
		if c.Name == "" {
			return fmt.Errorf("%s: configuration with empty name", md.ID)
		}
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate configuration %q", md.ID, c.Name)
		}
		seen[c.Name] = true
	}
	for _, c := range md.Configurations {
		for _, ext := range c.Extends {
			if !seen[ext] {
				return fmt.Errorf("%s: configuration %q extends unknown configuration %q", md.ID, c.Name, ext)
			}
		}
	}
	return nil
}
