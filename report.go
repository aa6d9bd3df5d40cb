package ivy

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/eed3si9n/ivy/descriptor"
	"github.com/eed3si9n/ivy/graph"
	"github.com/eed3si9n/ivy/lockfile"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/resolve"
)

// Report is the outcome of Resolve.
type Report struct {
	// ID identifies the run.
	ID uuid.UUID

	// Root is the revision the module was resolved under.
	Root module.RevisionID

	// Descriptor is the resolved module's descriptor carrying Root.
	Descriptor *module.Descriptor

	Date     time.Time
	Duration time.Duration

	// Configurations holds one report per requested root configuration,
	// in request order.
	Configurations []*ConfigurationReport

	// Artifacts lists every download outcome, empty without WithDownload.
	Artifacts []*ArtifactReport

	result *resolve.Result
}

// ConfigurationReport describes the resolution of one root configuration.
type ConfigurationReport struct {
	Name string

	// Err is set when the module does not declare the configuration.
	Err error

	Modules   []*ModuleReport
	Evicted   []*EvictedModule
	Problems  []*ModuleProblem
	Artifacts []*ArtifactReport
}

// ModuleReport is a module selected in a configuration.
type ModuleReport struct {
	ID module.RevisionID

	// Requested is the revision asked for; it differs from ID for
	// dynamic constraints.
	Requested module.RevisionID

	// Confs are the module's configurations required in the root
	// configuration.
	Confs []string

	Status    string
	Published time.Time
	Resolver  string
	Artifacts []*module.Artifact

	node *resolve.Node
}

// EvictedModule is a module evicted in a configuration together with the
// reason.
type EvictedModule struct {
	ID module.RevisionID

	// Manager and Parent tell which conflict manager evicted the module
	// and where the conflict was resolved.
	Manager string
	Parent  module.RevisionID

	SelectedBy []module.RevisionID

	// Transitive is true when the module was evicted because every
	// module depending on it was.
	Transitive bool
}

// ModuleProblem is a module that could not be loaded.
type ModuleProblem struct {
	ID  module.RevisionID
	Err error
}

func newReport(id uuid.UUID, root *module.Descriptor, res *resolve.Result, confs []string) *Report {
	r := &Report{
		ID:         id,
		Root:       root.ResolvedID,
		Descriptor: root,
		result:     res,
	}
	names := confs
	if len(names) == 0 || slices.Contains(names, "*") {
		names = root.ConfigurationNames()
	}
	for _, name := range names {
		cr := &ConfigurationReport{Name: name}
		if err, ok := res.Missing[name]; ok {
			cr.Err = err
		} else {
			fillConfiguration(cr, res)
		}
		r.Configurations = append(r.Configurations, cr)
	}
	return r
}

func fillConfiguration(cr *ConfigurationReport, res *resolve.Result) {
	for _, n := range res.Selected(cr.Name) {
		md := n.Descriptor()
		mr := &ModuleReport{
			ID:        n.ResolvedID(),
			Requested: n.ID(),
			Confs:     n.Configurations(cr.Name),
			Artifacts: n.ArtifactsFor(cr.Name),
			node:      n,
		}
		if md != nil {
			mr.Status = md.Status
			mr.Published = md.Published
		}
		if r := n.Resolver(); r != nil {
			mr.Resolver = r.Name()
		}
		cr.Modules = append(cr.Modules, mr)
	}
	for _, n := range res.Evicted(cr.Name) {
		em := &EvictedModule{ID: n.ResolvedID()}
		if ed := n.EvictionData(cr.Name); ed != nil {
			em.Transitive = ed.IsTransitive()
			if ed.Parent != nil {
				em.Parent = ed.Parent.ResolvedID()
			}
			if ed.Manager != nil {
				em.Manager = ed.Manager.Name()
			}
			for _, s := range ed.Selected {
				em.SelectedBy = append(em.SelectedBy, s.ResolvedID())
			}
		}
		cr.Evicted = append(cr.Evicted, em)
	}
	for _, n := range res.Problems() {
		if len(n.Callers(cr.Name)) > 0 {
			cr.Problems = append(cr.Problems, &ModuleProblem{ID: n.ID(), Err: n.Problem()})
		}
	}
}

// setArtifacts records download outcomes and files them under the
// configurations that selected them.
func (r *Report) setArtifacts(reports []*ArtifactReport) {
	r.Artifacts = reports
	byArtifact := make(map[*module.Artifact]*ArtifactReport, len(reports))
	for _, ar := range reports {
		byArtifact[ar.Artifact] = ar
	}
	for _, cr := range r.Configurations {
		cr.Artifacts = nil
		for _, mr := range cr.Modules {
			for _, a := range mr.Artifacts {
				if ar, ok := byArtifact[a]; ok {
					cr.Artifacts = append(cr.Artifacts, ar)
				}
			}
		}
	}
}

// Result returns the engine result the report was built from.
func (r *Report) Result() *resolve.Result {
	return r.result
}

// ConfigurationReport returns the report of conf, or nil.
func (r *Report) ConfigurationReport(conf string) *ConfigurationReport {
	for _, cr := range r.Configurations {
		if cr.Name == conf {
			return cr
		}
	}
	return nil
}

// Problems returns every module that failed to load, once.
func (r *Report) Problems() []*ModuleProblem {
	var out []*ModuleProblem
	seen := make(map[module.RevisionID]bool)
	for _, cr := range r.Configurations {
		for _, p := range cr.Problems {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// FailedArtifacts returns the artifacts that could not be downloaded.
func (r *Report) FailedArtifacts() []*ArtifactReport {
	var out []*ArtifactReport
	for _, ar := range r.Artifacts {
		if ar.Status == DownloadStatusFailed {
			out = append(out, ar)
		}
	}
	return out
}

// HasErrors reports whether a configuration was unknown, a module failed
// to load or an artifact failed to download.
func (r *Report) HasErrors() bool {
	for _, cr := range r.Configurations {
		if cr.Err != nil || len(cr.Problems) > 0 {
			return true
		}
	}
	return len(r.FailedArtifacts()) > 0
}

// Graph returns the dependency graph of conf; an empty conf merges every
// resolved configuration.
func (r *Report) Graph(conf string) *graph.Graph {
	return graph.Build(r.result, conf)
}

// ResolvedRevisions returns the revision and status of every selected
// module. Configurations are merged in order; the first one to select a
// module decides its revision.
func (r *Report) ResolvedRevisions() *lockfile.File {
	out := lockfile.New(r.Root)
	for _, cr := range r.Configurations {
		f := lockfile.New(r.Root)
		for _, mr := range cr.Modules {
			f.Set(mr.ID.ModuleID(), lockfile.Entry{Revision: mr.ID.Revision, Status: mr.Status})
		}
		// MergePreferExisting never fails.
		_ = out.Merge(f, lockfile.MergePreferExisting)
	}
	return out
}

// WriteResolvedRevisions writes ResolvedRevisions to path, as properties
// when path ends in ".properties" and as JSON otherwise.
func (r *Report) WriteResolvedRevisions(path string) error {
	f := r.ResolvedRevisions()
	if filepath.Ext(path) != ".properties" {
		return f.WriteFile(path)
	}
	var buf bytes.Buffer
	if err := f.WriteProperties(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ResolvedDescriptor renders the module descriptor with the resolved
// revision and with each direct dependency pinned to the revision it was
// resolved to.
func (r *Report) ResolvedDescriptor() []byte {
	md := *r.Descriptor
	md.ID = r.Root
	md.ResolvedID = r.Root
	md.Dependencies = make([]*module.DependencyDescriptor, len(r.Descriptor.Dependencies))
	for i, dd := range r.Descriptor.Dependencies {
		pinned := *dd
		pinned.Owner = r.Root
		if rev, ok := r.resolvedRevision(dd); ok {
			pinned.Dependency = dd.Dependency.WithRevision(rev)
		}
		md.Dependencies[i] = &pinned
	}
	return descriptor.MarshalStarlark(&md)
}

func (r *Report) resolvedRevision(dd *module.DependencyDescriptor) (string, bool) {
	if r.result == nil {
		return "", false
	}
	n := r.result.Node(dd.Dependency)
	if n == nil || n.IsRoot() || !n.IsLoaded() || n.Problem() != nil {
		return "", false
	}
	return n.ResolvedID().Revision, true
}

type yamlReport struct {
	ID             string              `yaml:"id"`
	Module         string              `yaml:"module"`
	Date           string              `yaml:"date"`
	Duration       string              `yaml:"duration"`
	Configurations []yamlConfiguration `yaml:"configurations"`
}

type yamlConfiguration struct {
	Name      string         `yaml:"name"`
	Error     string         `yaml:"error,omitempty"`
	Modules   []yamlModule   `yaml:"modules,omitempty"`
	Evicted   []yamlEvicted  `yaml:"evicted,omitempty"`
	Problems  []yamlProblem  `yaml:"problems,omitempty"`
	Artifacts []yamlArtifact `yaml:"artifacts,omitempty"`
}

type yamlModule struct {
	ID        string   `yaml:"id"`
	Requested string   `yaml:"requested,omitempty"`
	Confs     []string `yaml:"confs,flow"`
	Status    string   `yaml:"status,omitempty"`
	Resolver  string   `yaml:"resolver,omitempty"`
}

type yamlEvicted struct {
	ID         string   `yaml:"id"`
	Manager    string   `yaml:"manager,omitempty"`
	Parent     string   `yaml:"parent,omitempty"`
	SelectedBy []string `yaml:"selectedBy,omitempty,flow"`
	Transitive bool     `yaml:"transitive,omitempty"`
}

type yamlProblem struct {
	ID    string `yaml:"id"`
	Error string `yaml:"error"`
}

type yamlArtifact struct {
	Artifact string `yaml:"artifact"`
	Status   string `yaml:"status"`
	Path     string `yaml:"path,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// WriteYAML writes a human-readable summary of the report.
func (r *Report) WriteYAML(w io.Writer) error {
	out := yamlReport{
		ID:       r.ID.String(),
		Module:   r.Root.String(),
		Date:     r.Date.UTC().Format(time.RFC3339),
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
	for _, cr := range r.Configurations {
		yc := yamlConfiguration{Name: cr.Name}
		if cr.Err != nil {
			yc.Error = cr.Err.Error()
		}
		for _, m := range cr.Modules {
			ym := yamlModule{ID: m.ID.String(), Confs: m.Confs, Status: m.Status, Resolver: m.Resolver}
			if m.Requested != m.ID {
				ym.Requested = m.Requested.Revision
			}
			yc.Modules = append(yc.Modules, ym)
		}
		for _, e := range cr.Evicted {
			ye := yamlEvicted{ID: e.ID.String(), Manager: e.Manager, Transitive: e.Transitive}
			if !e.Parent.IsZero() {
				ye.Parent = e.Parent.String()
			}
			for _, s := range e.SelectedBy {
				ye.SelectedBy = append(ye.SelectedBy, s.String())
			}
			yc.Evicted = append(yc.Evicted, ye)
		}
		for _, p := range cr.Problems {
			yc.Problems = append(yc.Problems, yamlProblem{ID: p.ID.String(), Error: p.Err.Error()})
		}
		for _, a := range cr.Artifacts {
			ya := yamlArtifact{Artifact: a.Artifact.String(), Status: string(a.Status), Path: a.Path}
			if a.Err != nil {
				ya.Error = a.Err.Error()
			}
			yc.Artifacts = append(yc.Artifacts, ya)
		}
		out.Configurations = append(out.Configurations, yc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
