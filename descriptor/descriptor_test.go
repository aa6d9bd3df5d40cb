package descriptor

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eed3si9n/ivy/module"
)

const sampleStarlark = `# sample descriptor
module(
    organisation = "org.example",
    name = "app",
    revision = "1.2.0",
    status = "release",
    published = "2024-03-01T10:00:00Z",
    extra = {"platform": "linux"},
)

configuration("compile", description = "compile classpath")
configuration(name = "runtime", extends = ["compile"])
configuration(name = "test", extends = ["runtime"], visibility = "private", transitive = False)

artifact(name = "app", type = "jar", confs = ["compile"])
artifact(name = "app-sources", type = "source", ext = "jar", confs = "compile")

dependency(org = "org.lib", name = "core", rev = "2.+", conf = "compile->default")
dependency(name = "util", rev = "1.0", conf = "runtime->runtime;test->*", force = True)
dependency(org = "org.lib", name = "legacy", rev = "0.9", transitive = False, excludes = ["org.bad#evil", "noisy"])

exclude(org = "org.banned")
conflict(org = "org.lib", module = "*", manager = "strict")
`

func TestParseStarlark(t *testing.T) {
	res, err := ParseStarlark("ivy.star", []byte(sampleStarlark))
	if err != nil {
		t.Fatalf("ParseStarlark error: %v", err)
	}
	if res.HasErrors() {
		for _, e := range res.Errors {
			t.Errorf("Parse error: %s", e.Error())
		}
		return
	}
	md := res.Descriptor

	wantID := module.NewRevisionIDWithExtra("org.example", "app", "1.2.0", map[string]string{"platform": "linux"})
	if md.ID != wantID {
		t.Errorf("ID = %s, want %s", md.ID, wantID)
	}
	if md.Status != module.StatusRelease {
		t.Errorf("Status = %q, want %q", md.Status, module.StatusRelease)
	}
	if want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC); !md.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", md.Published, want)
	}

	if diff := cmp.Diff([]string{"compile", "runtime", "test"}, md.ConfigurationNames()); diff != "" {
		t.Errorf("configurations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"compile", "runtime"}, md.PublicConfigurationNames()); diff != "" {
		t.Errorf("public configurations mismatch (-want +got):\n%s", diff)
	}
	test := md.Configuration("test")
	if test.IsTransitive() {
		t.Error("test configuration should be intransitive")
	}
	if diff := cmp.Diff([]string{"runtime"}, test.Extends); diff != "" {
		t.Errorf("test extends mismatch (-want +got):\n%s", diff)
	}
	if got := md.Configuration("compile").Description; got != "compile classpath" {
		t.Errorf("compile description = %q", got)
	}

	if len(md.Artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(md.Artifacts))
	}
	if a := md.Artifacts[1]; a.Type != "source" || a.Ext != "jar" || a.Module != md.ID {
		t.Errorf("artifacts[1] = %+v", a)
	}

	if len(md.Dependencies) != 3 {
		t.Fatalf("got %d dependencies, want 3", len(md.Dependencies))
	}
	core, util, legacy := md.Dependencies[0], md.Dependencies[1], md.Dependencies[2]
	if core.Dependency != module.NewRevisionID("org.lib", "core", "2.+") {
		t.Errorf("core = %s", core.Dependency)
	}
	if core.Owner != md.ID {
		t.Errorf("core owner = %s, want %s", core.Owner, md.ID)
	}
	if diff := cmp.Diff([]string{"default"}, core.DependencyConfigurations("compile")); diff != "" {
		t.Errorf("core mapping mismatch (-want +got):\n%s", diff)
	}
	if util.Dependency.Organisation != "org.example" {
		t.Errorf("util organisation = %q, want the owner's", util.Dependency.Organisation)
	}
	if !util.Force {
		t.Error("util should be forced")
	}
	if diff := cmp.Diff([]string{"*"}, util.DependencyConfigurations("test")); diff != "" {
		t.Errorf("util test mapping mismatch (-want +got):\n%s", diff)
	}
	if legacy.IsTransitive() {
		t.Error("legacy should be intransitive")
	}
	wantExcludes := []module.ExcludeRule{
		{Organisation: "org.bad", Module: "evil"},
		{Organisation: "*", Module: "noisy"},
	}
	if diff := cmp.Diff(wantExcludes, legacy.Excludes); diff != "" {
		t.Errorf("legacy excludes mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]module.ExcludeRule{{Organisation: "org.banned", Module: "*"}}, md.Excludes); diff != "" {
		t.Errorf("module excludes mismatch (-want +got):\n%s", diff)
	}
	wantRules := []module.ConflictRule{{Organisation: "org.lib", Module: "*", Manager: "strict"}}
	if diff := cmp.Diff(wantRules, md.ConflictRules); diff != "" {
		t.Errorf("conflict rules mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStarlarkDefaults(t *testing.T) {
	res, err := ParseStarlark("ivy.star", []byte(`module(org = "o", name = "m", rev = "1")
dependency(name = "d", rev = "2")
`))
	if err != nil {
		t.Fatalf("ParseStarlark error: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	md := res.Descriptor
	if md.Status != module.DefaultStatus {
		t.Errorf("Status = %q, want %q", md.Status, module.DefaultStatus)
	}
	if diff := cmp.Diff([]string{"default"}, md.ConfigurationNames()); diff != "" {
		t.Errorf("configurations mismatch (-want +got):\n%s", diff)
	}
	if len(md.Artifacts) != 1 || md.Artifacts[0].Name != "m" || md.Artifacts[0].Ext != "jar" {
		t.Errorf("default artifact = %+v", md.Artifacts)
	}
	dd := md.Dependencies[0]
	if diff := cmp.Diff([]string{"*"}, dd.DependencyConfigurations("default")); diff != "" {
		t.Errorf("default mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStarlarkErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing module", `dependency(name = "d", rev = "1")`, "missing module()"},
		{"duplicate module", "module(org = \"o\", name = \"m\")\nmodule(org = \"o\", name = \"n\")", "more than once"},
		{"module without name", `module(org = "o")`, "'organisation' or 'name'"},
		{"dependency without rev", "module(org = \"o\", name = \"m\")\ndependency(name = \"d\")", "'name' or 'rev'"},
		{"bad visibility", "module(org = \"o\", name = \"m\")\nconfiguration(\"c\", visibility = \"secret\")", "invalid visibility"},
		{"unknown extends", "module(org = \"o\", name = \"m\")\nconfiguration(\"c\", extends = [\"nope\"])", "unknown configuration"},
		{"conflict without manager", "module(org = \"o\", name = \"m\")\nconflict(org = \"x\")", "'manager'"},
		{"bad published", `module(org = "o", name = "m", published = "yesterday")`, "invalid published"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseStarlark("ivy.star", []byte(tt.content))
			if err != nil {
				t.Fatalf("ParseStarlark error: %v", err)
			}
			if !res.HasErrors() {
				t.Fatal("expected errors")
			}
			if res.Descriptor != nil {
				t.Error("Descriptor should be nil when there are errors")
			}
			if !strings.Contains(res.Errors[0].Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", res.Errors[0].Error(), tt.wantErr)
			}
		})
	}
}

func TestParseStarlarkSyntaxError(t *testing.T) {
	_, err := ParseStarlark("ivy.star", []byte(`module(org = `))
	if err == nil {
		t.Fatal("expected syntax error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not a *ParseError", err)
	}
	if pe.Unwrap() == nil {
		t.Error("syntax error should wrap the underlying error")
	}
}

func TestParseStarlarkWarnings(t *testing.T) {
	res, err := ParseStarlark("ivy.star", []byte(`module(org = "o", name = "m")
publish(name = "x")
`))
	if err != nil {
		t.Fatalf("ParseStarlark error: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(res.Warnings))
	}
	if res.Warnings[0].Pos.Line != 2 {
		t.Errorf("warning line = %d, want 2", res.Warnings[0].Pos.Line)
	}
}

const sampleYAML = `organisation: org.example
name: app
revision: 1.2.0
status: release
configurations:
  - name: compile
  - name: runtime
    extends: [compile]
  - name: test
    extends: [runtime]
    visibility: private
    transitive: false
dependencies:
  - org: org.lib
    name: core
    rev: 2.+
    conf: compile->default
  - name: util
    rev: "1.0"
    force: true
    excludes:
      - org: org.bad
excludes:
  - module: noisy
    matcher: glob
conflicts:
  - org: org.lib
    manager: all
`

func TestParseYAML(t *testing.T) {
	md, err := ParseYAML("ivy.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML error: %v", err)
	}
	if md.ID != module.NewRevisionID("org.example", "app", "1.2.0") {
		t.Errorf("ID = %s", md.ID)
	}
	if diff := cmp.Diff([]string{"compile", "runtime"}, md.PublicConfigurationNames()); diff != "" {
		t.Errorf("public configurations mismatch (-want +got):\n%s", diff)
	}
	if md.Configuration("test").IsTransitive() {
		t.Error("test configuration should be intransitive")
	}
	if len(md.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(md.Dependencies))
	}
	util := md.Dependencies[1]
	if util.Dependency.Organisation != "org.example" || !util.Force {
		t.Errorf("util = %+v", util)
	}
	if diff := cmp.Diff([]module.ExcludeRule{{Organisation: "org.bad", Module: "*"}}, util.Excludes); diff != "" {
		t.Errorf("util excludes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]module.ExcludeRule{{Organisation: "*", Module: "noisy", Matcher: "glob"}}, md.Excludes); diff != "" {
		t.Errorf("excludes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]module.ConflictRule{{Organisation: "org.lib", Module: "*", Manager: "all"}}, md.ConflictRules); diff != "" {
		t.Errorf("conflict rules mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "'organisation' or 'name'"},
		{"unknown field", "organisation: o\nname: m\nversion: 1\n", "invalid YAML"},
		{"dependency without rev", "organisation: o\nname: m\ndependencies:\n  - name: d\n", "'name' or 'rev'"},
		{"bad visibility", "organisation: o\nname: m\nconfigurations:\n  - name: c\n    visibility: secret\n", "invalid visibility"},
		{"empty exclude", "organisation: o\nname: m\nexcludes:\n  - matcher: glob\n", "exclude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML("ivy.yaml", []byte(tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	res, err := ParseStarlark("ivy.star", []byte(sampleStarlark))
	if err != nil || res.HasErrors() {
		t.Fatalf("ParseStarlark: %v %v", err, res.Errors)
	}
	want := res.Descriptor

	for _, format := range []Format{Starlark, YAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Marshal(format, want)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			got, err := ParseFormat(format, "ivy", data)
			if err != nil {
				t.Fatalf("ParseFormat error: %v\n%s", err, data)
			}
			if diff := cmp.Diff(want, got, cmp.AllowUnexported(module.RevisionID{})); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s\n%s", diff, data)
			}
		})
	}
}

func TestWriteAndParseFile(t *testing.T) {
	md := module.NewDescriptor(module.NewRevisionID("o", "m", "1.0"))
	md.AddDependency(module.NewDependencyDescriptor(md.ID, module.NewRevisionID("o", "d", "2.0")))
	md.Dependencies[0].AddDependencyConfiguration("default", "runtime")
	normalize(md)

	for _, name := range []string{"ivy.star", "nested/ivy.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteFile(path, md); err != nil {
				t.Fatalf("WriteFile error: %v", err)
			}
			got, err := ParseFile(path)
			if err != nil {
				t.Fatalf("ParseFile error: %v", err)
			}
			if diff := cmp.Diff(md, got, cmp.AllowUnexported(module.RevisionID{})); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{"ivy.star", Starlark, false},
		{"deps/ivy.ivy", Starlark, false},
		{"ivy.yaml", YAML, false},
		{"IVY.YML", YAML, false},
		{"ivy.xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := FormatFor(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFor error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("error = %v, want ErrUnknownFormat", err)
			}
			if got != tt.want {
				t.Errorf("FormatFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfMapping(t *testing.T) {
	tests := []struct {
		mapping string
		want    map[string][]string
		format  string
	}{
		{"*->*", map[string][]string{"*": {"*"}}, "*->*"},
		{"compile", map[string][]string{"compile": {"compile"}}, "compile->compile"},
		{"a,b->c;d->e,f", map[string][]string{"a": {"c"}, "b": {"c"}, "d": {"e", "f"}}, "a->c;b->c;d->e,f"},
		{" test -> @ ", map[string][]string{"test": {"@"}}, "test->@"},
	}
	for _, tt := range tests {
		t.Run(tt.mapping, func(t *testing.T) {
			dd := module.NewDependencyDescriptor(module.RevisionID{}, module.NewRevisionID("o", "m", "1"))
			if err := ParseConfMapping(dd, tt.mapping); err != nil {
				t.Fatalf("ParseConfMapping error: %v", err)
			}
			if diff := cmp.Diff(tt.want, dd.Confs); diff != "" {
				t.Errorf("mapping mismatch (-want +got):\n%s", diff)
			}
			if got := FormatConfMapping(dd); got != tt.format {
				t.Errorf("FormatConfMapping = %q, want %q", got, tt.format)
			}
		})
	}

	dd := module.NewDependencyDescriptor(module.RevisionID{}, module.NewRevisionID("o", "m", "1"))
	if err := ParseConfMapping(dd, "a->"); err == nil {
		t.Error("expected error for a mapping without targets")
	}
}
