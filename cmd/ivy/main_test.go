package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eed3si9n/ivy/module"
)

const testSettings = `cacheDir: cache
defaultResolver: local
resolvers:
  - {name: local, type: file, root: repo}
  - {name: release, type: file, root: release}
`

const testRoot = `module(organisation = "org", name = "app", revision = "1.0")

configuration(name = "compile")

dependency(org = "org", name = "lib", rev = "1.+", conf = "compile->default")
`

// testWorkspace writes a settings file, a root descriptor and a file
// repository holding lib 1.0, lib 1.1 -> util 1.0 and util 1.0.
func testWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	publish := func(name, rev, dep string) {
		desc := fmt.Sprintf("organisation: org\nname: %s\nrevision: %q\nconfigurations:\n  - name: default\n", name, rev)
		if dep != "" {
			desc += fmt.Sprintf("dependencies:\n  - name: %s\n    rev: \"1.0\"\n    conf: default->default\n", dep)
		}
		write(fmt.Sprintf("repo/org/%s/%s/ivy.yaml", name, rev), desc)
		write(fmt.Sprintf("repo/org/%s/%s/jars/%s-%s.jar", name, rev, name, rev), name+rev)
	}

	write("ivysettings.yaml", testSettings)
	write("ivy.star", testRoot)
	publish("lib", "1.0", "")
	publish("lib", "1.1", "util")
	publish("util", "1.0", "")
	return dir
}

func runIvy(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{"--settings", filepath.Join(dir, "ivysettings.yaml")}, args...)
	err := run(args, &out, &errOut)
	if errOut.Len() > 0 {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--help"}, &out, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"Usage:", "resolve", "retrieve", "install", "search", "sort"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help output does not mention %q", want)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir := testWorkspace(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"resolve", "--nope"}, "unknown flag"},
		{"unknown command", []string{"publish"}, "unknown command"},
		{"missing descriptor", []string{"resolve", filepath.Join(dir, "missing.star")}, "parse descriptor"},
		{"bad graph format", []string{"resolve", filepath.Join(dir, "ivy.star"), "--graph", "svg"}, "unknown graph format"},
		{"bad date", []string{"resolve", filepath.Join(dir, "ivy.star"), "--date", "yesterday"}, "invalid --date"},
		{"install without destination", []string{"install", "org#lib;1.1", "--from", "local"}, "required flag"},
		{"bad pattern", []string{"search", "#lib"}, "missing organisation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runIvy(t, dir, tt.args...)
			if err == nil {
				t.Fatal("run() succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRun_MissingSettings(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"--settings", filepath.Join(t.TempDir(), "none.yaml"), "resolve"}, &out, &out)
	if err == nil || !strings.Contains(err.Error(), "read settings") {
		t.Errorf("run() error = %v, want a settings read error", err)
	}
}

func TestResolve(t *testing.T) {
	dir := testWorkspace(t)
	lock := filepath.Join(dir, "resolved.properties")
	pinned := filepath.Join(dir, "resolved.star")

	out, err := runIvy(t, dir, "resolve", filepath.Join(dir, "ivy.star"), "--lockfile", lock, "--resolved-descriptor", pinned)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	for _, want := range []string{"org#app;1.0", "compile: 2 modules", "org#lib;1.1", "org#util;1.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(lock)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "org#lib=1.1") {
		t.Errorf("lockfile:\n%s", data)
	}
	data, err = os.ReadFile(pinned)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"1.1"`) {
		t.Errorf("resolved descriptor does not pin lib 1.1:\n%s", data)
	}
}

func TestResolve_Outputs(t *testing.T) {
	dir := testWorkspace(t)
	root := filepath.Join(dir, "ivy.star")

	out, err := runIvy(t, dir, "resolve", root, "--graph", "json", "--conf", "compile")
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid([]byte(out)) || !strings.Contains(out, "org#util;1.0") {
		t.Errorf("--graph json output:\n%s", out)
	}

	out, err = runIvy(t, dir, "resolve", root, "--graph", "dot")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("--graph dot output:\n%s", out)
	}

	out, err = runIvy(t, dir, "resolve", root, "--yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "org#lib;1.1") || !strings.Contains(out, "compile") {
		t.Errorf("--yaml output:\n%s", out)
	}
}

func TestResolve_Problems(t *testing.T) {
	dir := testWorkspace(t)
	root := filepath.Join(dir, "broken.star")
	src := testRoot + `dependency(org = "org", name = "missing", rev = "1.0", conf = "compile->default")` + "\n"
	if err := os.WriteFile(root, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runIvy(t, dir, "resolve", root)
	if err == nil || !strings.Contains(err.Error(), "has errors") {
		t.Errorf("resolve error = %v, want resolution errors", err)
	}
	if !strings.Contains(out, "org#missing;1.0") {
		t.Errorf("output does not report the missing module:\n%s", out)
	}
}

func TestRetrieve(t *testing.T) {
	dir := testWorkspace(t)
	pattern := filepath.Join(dir, "lib", "[conf]", "[artifact]-[revision].[ext]")

	out, err := runIvy(t, dir, "retrieve", filepath.Join(dir, "ivy.star"), "--pattern", pattern)
	if err != nil {
		t.Fatalf("retrieve error = %v", err)
	}
	if !strings.Contains(out, "2 artifacts copied") {
		t.Errorf("output = %q", out)
	}
	for _, name := range []string{"lib-1.1.jar", "util-1.0.jar"} {
		if _, err := os.Stat(filepath.Join(dir, "lib", "compile", name)); err != nil {
			t.Error(err)
		}
	}

	out, err = runIvy(t, dir, "retrieve", filepath.Join(dir, "ivy.star"), "--pattern", pattern)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "0 artifacts copied") {
		t.Errorf("second retrieve output = %q", out)
	}
}

func TestSearch(t *testing.T) {
	dir := testWorkspace(t)
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"search", "org#lib"}, []string{"org#lib;1.0", "org#lib;1.1"}},
		{[]string{"search", "org#*;1.0"}, []string{"org#lib;1.0", "org#util;1.0"}},
		{[]string{"search", "org#l.*", "--matcher", "regexp", "--resolver", "local"}, []string{"org#lib;1.0", "org#lib;1.1"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runIvy(t, dir, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, strings.Fields(out)); diff != "" {
				t.Errorf("search mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstall(t *testing.T) {
	dir := testWorkspace(t)
	out, err := runIvy(t, dir, "install", "org#lib;1.1", "--from", "local", "--to", "release", "--transitive")
	if err != nil {
		t.Fatalf("install error = %v", err)
	}
	if !strings.Contains(out, "2 modules, 2 artifacts installed to release") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "release", "org", "util", "1.0", "ivy.yaml")); err != nil {
		t.Error(err)
	}

	out, err = runIvy(t, dir, "install", "org#lib;1.1", "--from", "local", "--to", "release")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "skipped org#lib;1.1") {
		t.Errorf("second install output:\n%s", out)
	}
}

func TestSort(t *testing.T) {
	dir := testWorkspace(t)
	lib := filepath.Join(dir, "repo", "org", "lib", "1.1", "ivy.yaml")
	util := filepath.Join(dir, "repo", "org", "util", "1.0", "ivy.yaml")
	root := filepath.Join(dir, "ivy.star")

	out, err := runIvy(t, dir, "sort", root, lib, util)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		order = append(order, strings.Fields(line)[0])
	}
	if diff := cmp.Diff([]string{"org#util;1.0", "org#lib;1.1", "org#app;1.0"}, order); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in      string
		want    module.RevisionID
		wantErr bool
	}{
		{"org", module.NewRevisionID("org", "", ""), false},
		{"org#lib", module.NewRevisionID("org", "lib", ""), false},
		{"org#lib;1.+", module.NewRevisionID("org", "lib", "1.+"), false},
		{"#lib", module.RevisionID{}, true},
	}
	for _, tt := range tests {
		got, err := parsePattern(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePattern(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePattern(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
