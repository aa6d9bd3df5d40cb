package repository

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eed3si9n/ivy/module"
)

func publishAll(t *testing.T, p Publisher, mds ...*module.Descriptor) {
	t.Helper()
	for _, md := range mds {
		if err := p.PublishDescriptor(context.Background(), md); err != nil {
			t.Fatalf("PublishDescriptor(%s) error: %v", md.ID, err)
		}
	}
}

func TestFileResolver_PublishAndLoad(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver("local", root)
	ctx := context.Background()

	lib := newMD("org.example", "lib", "1.0", module.StatusRelease, day(1))
	dd := module.NewDependencyDescriptor(lib.ID, module.NewRevisionID("org.example", "util", "2.+"))
	dd.AddDependencyConfiguration("default", "default")
	lib.AddDependency(dd)
	publishAll(t, r, lib, newMD("org.example", "lib", "1.2", "", day(2)), newMD("org.example", "util", "2.1", "", day(1)))

	if _, err := os.Stat(filepath.Join(root, "org.example", "lib", "1.0", "ivy.yaml")); err != nil {
		t.Fatalf("descriptor not written at the pattern location: %v", err)
	}

	// a fresh resolver reads what was published
	r = NewFileResolver("local", root)
	rev, err := r.LoadDescriptor(ctx, Request{ID: module.NewRevisionID("org.example", "lib", "1.0")})
	if err != nil {
		t.Fatalf("LoadDescriptor error: %v", err)
	}
	md := rev.Descriptor
	if md.Status != module.StatusRelease {
		t.Errorf("Status = %q, want release", md.Status)
	}
	if len(md.Dependencies) != 1 || md.Dependencies[0].Dependency.Revision != "2.+" {
		t.Errorf("Dependencies = %+v", md.Dependencies)
	}
	if !strings.HasPrefix(rev.Location, "file://") || !strings.HasSuffix(rev.Location, "ivy.yaml") {
		t.Errorf("Location = %q", rev.Location)
	}

	// Test caching (second call should use cache)
	rev2, err := r.LoadDescriptor(ctx, Request{ID: module.NewRevisionID("org.example", "lib", "1.0")})
	if err != nil {
		t.Fatal(err)
	}
	if rev2.Descriptor != md {
		t.Error("Expected cached result to be same instance")
	}

	dyn, err := r.LoadDescriptor(ctx, Request{ID: module.NewRevisionID("org.example", "lib", "1.+")})
	if err != nil {
		t.Fatalf("dynamic LoadDescriptor error: %v", err)
	}
	if got := dyn.Descriptor.ID.Revision; got != "1.2" {
		t.Errorf("1.+ resolved to %q, want 1.2", got)
	}

	_, err = r.LoadDescriptor(ctx, Request{ID: module.NewRevisionID("org.example", "lib", "3.0")})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if !strings.HasPrefix(nf.Location, "file://") {
		t.Errorf("NotFoundError.Location = %q", nf.Location)
	}
}

func TestFileResolver_Listing(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver("local", root)
	publishAll(t, r,
		newMD("org.a", "x", "1.0", "", day(1)),
		newMD("org.a", "x", "1.1", "", day(1)),
		newMD("org.a", "y", "0.1", "", day(1)),
		newMD("org.b", "z", "2.0", "", day(1)),
	)
	// a directory without a descriptor is not a revision
	if err := os.MkdirAll(filepath.Join(root, "org.a", "x", "9.9"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	orgs, err := r.ListOrganisations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"org.a", "org.b"}, orgs); diff != "" {
		t.Errorf("ListOrganisations mismatch (-want +got):\n%s", diff)
	}
	mods, err := r.ListModules(ctx, "org.a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y"}, mods); diff != "" {
		t.Errorf("ListModules mismatch (-want +got):\n%s", diff)
	}
	revs, err := r.ListRevisions(ctx, module.NewID("org.a", "x"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1.0", "1.1"}, revs); diff != "" {
		t.Errorf("ListRevisions mismatch (-want +got):\n%s", diff)
	}
}

func TestFileResolver_StarlarkPattern(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver("local", root, WithDescriptorPattern("[organisation]/[module]/ivy-[revision].star"))
	publishAll(t, r, newMD("org", "m", "1.0", "", day(1)), newMD("org", "m", "1.5", "", day(1)))

	data, err := os.ReadFile(filepath.Join(root, "org", "m", "ivy-1.5.star"))
	if err != nil {
		t.Fatalf("descriptor not written: %v", err)
	}
	if !strings.Contains(string(data), "module(") {
		t.Errorf("descriptor is not Starlark:\n%s", data)
	}

	rev, err := r.LoadDescriptor(context.Background(), Request{ID: module.NewRevisionID("org", "m", "latest.integration")})
	if err != nil {
		t.Fatalf("LoadDescriptor error: %v", err)
	}
	if got := rev.Descriptor.ID.Revision; got != "1.5" {
		t.Errorf("resolved %q, want 1.5", got)
	}
}

func TestFileResolver_Artifacts(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver("local", root)
	ctx := context.Background()
	a := &module.Artifact{Module: module.NewRevisionID("org", "m", "1.0"), Name: "m", Type: "jar", Ext: "jar"}

	if ok, err := r.Exists(ctx, a); err != nil || ok {
		t.Errorf("Exists before publish = %v, %v", ok, err)
	}
	if err := r.Download(ctx, a, &bytes.Buffer{}); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("Download error = %v, want ErrArtifactNotFound", err)
	}
	if err := r.PublishArtifact(ctx, a, strings.NewReader("jar bytes")); err != nil {
		t.Fatalf("PublishArtifact error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "org", "m", "1.0", "jars", "m-1.0.jar")); err != nil {
		t.Errorf("artifact not written at the pattern location: %v", err)
	}
	if ok, err := r.Exists(ctx, a); err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true", ok, err)
	}
	var buf bytes.Buffer
	if err := r.Download(ctx, a, &buf); err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if buf.String() != "jar bytes" {
		t.Errorf("Download = %q", buf.String())
	}
}

func TestFileResolver_InvalidDescriptor(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "org", "m", "1.0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ivy.yaml"), []byte("name: m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewFileResolver("local", root)
	_, err := r.LoadDescriptor(context.Background(), Request{ID: module.NewRevisionID("org", "m", "1.0")})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrModuleNotFound) {
		t.Errorf("parse error should not read as not found: %v", err)
	}
}

func TestNewFileResolverURL(t *testing.T) {
	root := t.TempDir()
	r, err := NewFileResolverURL("local", pathToFileURL(root))
	if err != nil {
		t.Fatalf("NewFileResolverURL error: %v", err)
	}
	if r.Root() != filepath.Clean(root) {
		t.Errorf("Root = %q, want %q", r.Root(), root)
	}
	if runtime.GOOS != "windows" && r.URL() != "file://"+filepath.ToSlash(filepath.Clean(root)) {
		t.Errorf("URL = %q", r.URL())
	}

	if _, err := NewFileResolverURL("local", pathToFileURL(filepath.Join(root, "missing"))); err == nil {
		t.Error("expected error for a missing path")
	}
	if _, err := NewFileResolverURL("local", "https://example.com/repo"); err == nil {
		t.Error("expected error for a non-file URL")
	}
}

func TestParseFileURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"file:///tmp/repo", filepath.Clean("/tmp/repo"), false},
		{"file:///C:/Users/repo", filepath.Clean("C:/Users/repo"), false},
		{"http://example.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := parseFileURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFileURL error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFileURL = %q, want %q", got, tt.want)
			}
		})
	}
}
