package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eed3si9n/ivy/module"
)

type yamlDescriptor struct {
	Organisation   string              `yaml:"organisation"`
	Name           string              `yaml:"name"`
	Revision       string              `yaml:"revision,omitempty"`
	Status         string              `yaml:"status,omitempty"`
	Published      string              `yaml:"published,omitempty"`
	Extra          map[string]string   `yaml:"extra,omitempty"`
	Configurations []yamlConfiguration `yaml:"configurations,omitempty"`
	Artifacts      []yamlArtifact      `yaml:"artifacts,omitempty"`
	Dependencies   []yamlDependency    `yaml:"dependencies,omitempty"`
	Excludes       []yamlExclude       `yaml:"excludes,omitempty"`
	Conflicts      []yamlConflict      `yaml:"conflicts,omitempty"`
}

type yamlConfiguration struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Visibility  string   `yaml:"visibility,omitempty"`
	Extends     []string `yaml:"extends,omitempty"`
	Transitive  *bool    `yaml:"transitive,omitempty"`
}

type yamlArtifact struct {
	Name  string   `yaml:"name,omitempty"`
	Type  string   `yaml:"type,omitempty"`
	Ext   string   `yaml:"ext,omitempty"`
	Confs []string `yaml:"confs,omitempty"`
	URL   string   `yaml:"url,omitempty"`
}

type yamlDependency struct {
	Org        string        `yaml:"org,omitempty"`
	Name       string        `yaml:"name"`
	Rev        string        `yaml:"rev"`
	Conf       string        `yaml:"conf,omitempty"`
	Transitive *bool         `yaml:"transitive,omitempty"`
	Force      bool          `yaml:"force,omitempty"`
	Excludes   []yamlExclude `yaml:"excludes,omitempty"`
}

type yamlExclude struct {
	Org     string   `yaml:"org,omitempty"`
	Module  string   `yaml:"module,omitempty"`
	Matcher string   `yaml:"matcher,omitempty"`
	Confs   []string `yaml:"confs,omitempty"`
}

type yamlConflict struct {
	Org     string `yaml:"org,omitempty"`
	Module  string `yaml:"module,omitempty"`
	Matcher string `yaml:"matcher,omitempty"`
	Manager string `yaml:"manager"`
}

// ParseYAML parses a YAML descriptor. Unknown keys are rejected.
func ParseYAML(filename string, data []byte) (*module.Descriptor, error) {
	var doc yamlDescriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{
			Pos:     Position{Filename: filename},
			Message: fmt.Sprintf("invalid YAML: %v", err),
			Wrapped: err,
		}
	}
	fail := func(format string, args ...any) error {
		return &ParseError{Pos: Position{Filename: filename}, Message: fmt.Sprintf(format, args...)}
	}
	if doc.Organisation == "" || doc.Name == "" {
		return nil, fail("missing required 'organisation' or 'name'")
	}

	md := module.NewDescriptor(module.NewRevisionIDWithExtra(doc.Organisation, doc.Name, doc.Revision, doc.Extra))
	if doc.Status != "" {
		md.Status = doc.Status
	}
	if doc.Published != "" {
		t, err := parseTime(doc.Published)
		if err != nil {
			return nil, fail("invalid published date %q", doc.Published)
		}
		md.Published = t
	}

	for _, c := range doc.Configurations {
		if !isVisibility(c.Visibility) {
			return nil, fail("configuration %s: invalid visibility %q", c.Name, c.Visibility)
		}
		md.AddConfiguration(&module.Configuration{
			Name:         c.Name,
			Description:  c.Description,
			Visibility:   module.Visibility(c.Visibility),
			Extends:      c.Extends,
			Intransitive: c.Transitive != nil && !*c.Transitive,
		})
	}
	for _, a := range doc.Artifacts {
		art := &module.Artifact{Name: a.Name, Type: a.Type, Ext: a.Ext, Confs: a.Confs, URL: a.URL}
		if art.Name == "" {
			art.Name = doc.Name
		}
		if art.Type == "" {
			art.Type = "jar"
		}
		if art.Ext == "" {
			art.Ext = art.Type
		}
		if len(art.Confs) == 0 {
			art.Confs = []string{"*"}
		}
		md.AddArtifact(art)
	}
	for _, d := range doc.Dependencies {
		org := d.Org
		if org == "" {
			org = doc.Organisation
		}
		if d.Name == "" || d.Rev == "" {
			return nil, fail("dependency: missing required 'name' or 'rev'")
		}
		dd := module.NewDependencyDescriptor(md.ID, module.NewRevisionID(org, d.Name, d.Rev))
		mapping := d.Conf
		if mapping == "" {
			mapping = DefaultConfMapping
		}
		if err := ParseConfMapping(dd, mapping); err != nil {
			return nil, fail("dependency %s#%s: %v", org, d.Name, err)
		}
		dd.Intransitive = d.Transitive != nil && !*d.Transitive
		dd.Force = d.Force
		for _, ex := range d.Excludes {
			dd.Excludes = append(dd.Excludes, excludeRule(ex))
		}
		md.AddDependency(dd)
	}
	for _, ex := range doc.Excludes {
		if ex.Org == "" && ex.Module == "" {
			return nil, fail("exclude: one of 'org' or 'module' is required")
		}
		md.Excludes = append(md.Excludes, excludeRule(ex))
	}
	for _, c := range doc.Conflicts {
		if c.Manager == "" {
			return nil, fail("conflict: missing required 'manager'")
		}
		md.ConflictRules = append(md.ConflictRules, module.ConflictRule{
			Organisation: orAny(c.Org),
			Module:       orAny(c.Module),
			Matcher:      c.Matcher,
			Manager:      c.Manager,
		})
	}

	normalize(md)
	if err := md.Validate(); err != nil {
		return nil, &ParseError{Pos: Position{Filename: filename}, Message: err.Error(), Wrapped: err}
	}
	return md, nil
}

func excludeRule(ex yamlExclude) module.ExcludeRule {
	return module.ExcludeRule{
		Organisation: orAny(ex.Org),
		Module:       orAny(ex.Module),
		Matcher:      ex.Matcher,
		Confs:        ex.Confs,
	}
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// MarshalYAML renders md as a YAML descriptor.
func MarshalYAML(md *module.Descriptor) ([]byte, error) {
	id := md.ResolvedRevisionID()
	doc := yamlDescriptor{
		Organisation: id.Organisation,
		Name:         id.Name,
		Revision:     id.Revision,
		Status:       md.Status,
		Extra:        id.Extra(),
	}
	if !md.Published.IsZero() {
		doc.Published = md.Published.UTC().Format(time.RFC3339)
	}
	for _, c := range md.Configurations {
		yc := yamlConfiguration{Name: c.Name, Description: c.Description, Extends: c.Extends}
		if c.Visibility == module.Private {
			yc.Visibility = string(c.Visibility)
		}
		if c.Intransitive {
			yc.Transitive = new(bool)
		}
		doc.Configurations = append(doc.Configurations, yc)
	}
	for _, a := range md.Artifacts {
		doc.Artifacts = append(doc.Artifacts, yamlArtifact{Name: a.Name, Type: a.Type, Ext: a.Ext, Confs: a.Confs, URL: a.URL})
	}
	for _, dd := range md.Dependencies {
		yd := yamlDependency{
			Org:   dd.Dependency.Organisation,
			Name:  dd.Dependency.Name,
			Rev:   dd.Dependency.Revision,
			Conf:  FormatConfMapping(dd),
			Force: dd.Force,
		}
		if dd.Intransitive {
			yd.Transitive = new(bool)
		}
		for _, ex := range dd.Excludes {
			yd.Excludes = append(yd.Excludes, yamlExclude{Org: ex.Organisation, Module: ex.Module, Matcher: ex.Matcher, Confs: ex.Confs})
		}
		doc.Dependencies = append(doc.Dependencies, yd)
	}
	for _, ex := range md.Excludes {
		doc.Excludes = append(doc.Excludes, yamlExclude{Org: ex.Organisation, Module: ex.Module, Matcher: ex.Matcher, Confs: ex.Confs})
	}
	for _, cr := range md.ConflictRules {
		doc.Conflicts = append(doc.Conflicts, yamlConflict{Org: cr.Organisation, Module: cr.Module, Matcher: cr.Matcher, Manager: cr.Manager})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(strings.TrimLeft(buf.String(), "\n")), nil
}
