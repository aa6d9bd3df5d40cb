package module

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRevisionID_String(t *testing.T) {
	tests := []struct {
		name string
		id   RevisionID
		want string
	}{
		{"plain", NewRevisionID("acme", "core", "1.0"), "acme#core;1.0"},
		{"extra sorted", NewRevisionIDWithExtra("acme", "core", "1.0", map[string]string{"b": "2", "a": "1"}), "acme#core;1.0[a=1,b=2]"},
		{"empty revision", NewRevisionID("acme", "core", ""), "acme#core;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRevisionID(t *testing.T) {
	id, err := ParseRevisionID("acme#core;1.0[a=1,b=2]")
	if err != nil {
		t.Fatalf("ParseRevisionID() error = %v", err)
	}
	want := NewRevisionIDWithExtra("acme", "core", "1.0", map[string]string{"a": "1", "b": "2"})
	if id != want {
		t.Errorf("ParseRevisionID() = %v, want %v", id, want)
	}
	if diff := cmp.Diff(map[string]string{"a": "1", "b": "2"}, id.Extra()); diff != "" {
		t.Errorf("Extra() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "core;1.0", "acme#;1.0", "acme#core"} {
		if _, err := ParseRevisionID(bad); err == nil {
			t.Errorf("ParseRevisionID(%q) expected error", bad)
		}
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("acme#core")
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if id != NewID("acme", "core") {
		t.Errorf("ParseID() = %v", id)
	}
	for _, bad := range []string{"", "core", "#core", "acme#"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) expected error", bad)
		}
	}
}

func TestRevisionID_MapKey(t *testing.T) {
	m := map[RevisionID]int{}
	m[NewRevisionID("acme", "core", "1.0")] = 1
	m[NewRevisionID("acme", "core", "1.0")]++
	m[NewRevisionIDWithExtra("acme", "core", "1.0", map[string]string{"platform": "linux"})] = 5
	if len(m) != 2 {
		t.Fatalf("len = %d, want 2", len(m))
	}
	if m[NewRevisionID("acme", "core", "1.0")] != 2 {
		t.Errorf("equal ids must share a key")
	}
}

func TestDependencyConfigurations(t *testing.T) {
	dd := NewDependencyDescriptor(NewRevisionID("acme", "app", "1.0"), NewRevisionID("acme", "lib", "2.0"))
	dd.AddDependencyConfiguration("compile", "default")
	dd.AddDependencyConfiguration("runtime", "runtime")
	dd.AddDependencyConfiguration("runtime", "default")
	dd.AddDependencyConfiguration("*", "@")

	tests := []struct {
		conf string
		want []string
	}{
		{"compile", []string{"default", "compile"}},
		{"runtime", []string{"runtime", "default"}},
		{"test", []string{"test"}},
	}
	for _, tt := range tests {
		t.Run(tt.conf, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, dd.DependencyConfigurations(tt.conf)); diff != "" {
				t.Errorf("DependencyConfigurations(%q) mismatch (-want +got):\n%s", tt.conf, diff)
			}
		})
	}

	plain := NewDependencyDescriptor(dd.Owner, dd.Dependency)
	plain.AddDependencyConfiguration("compile", "default")
	if got := plain.DependencyConfigurations("test"); len(got) != 0 {
		t.Errorf("unmapped configuration should require nothing, got %v", got)
	}
}

func TestDescriptor_Validate(t *testing.T) {
	md := NewDescriptor(NewRevisionID("acme", "app", "1.0"))
	md.AddConfiguration(&Configuration{Name: "compile"})
	md.AddConfiguration(&Configuration{Name: "runtime", Extends: []string{"compile"}})
	if err := md.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	md.AddConfiguration(&Configuration{Name: "test", Extends: []string{"missing"}})
	if err := md.Validate(); err == nil {
		t.Error("Validate() expected error for unknown extended configuration")
	}
}

func TestDescriptor_ArtifactsFor(t *testing.T) {
	md := NewDescriptor(NewRevisionID("acme", "lib", "1.0"))
	md.AddConfiguration(&Configuration{Name: "default"})
	md.AddConfiguration(&Configuration{Name: "sources", Visibility: Private})
	md.AddArtifact(&Artifact{Name: "lib", Type: "jar", Ext: "jar", Confs: []string{"default"}})
	md.AddArtifact(&Artifact{Name: "lib-sources", Type: "source", Ext: "jar", Confs: []string{"sources"}})
	md.AddArtifact(&Artifact{Name: "LICENSE", Type: "text", Ext: "txt"})

	if got := len(md.ArtifactsFor("default")); got != 2 {
		t.Errorf("ArtifactsFor(default) = %d artifacts, want 2", got)
	}
	if got := md.PublicConfigurationNames(); len(got) != 1 || got[0] != "default" {
		t.Errorf("PublicConfigurationNames() = %v", got)
	}
	if md.Artifacts[0].Module != md.ID {
		t.Errorf("artifact module = %v, want %v", md.Artifacts[0].Module, md.ID)
	}
}

func TestStatusPriority(t *testing.T) {
	if StatusPriority(StatusRelease) >= StatusPriority(StatusMilestone) {
		t.Error("release must rank before milestone")
	}
	if StatusPriority(StatusMilestone) >= StatusPriority(StatusIntegration) {
		t.Error("milestone must rank before integration")
	}
	if StatusPriority("bogus") <= StatusPriority(StatusIntegration) {
		t.Error("unknown status must rank last")
	}
}
