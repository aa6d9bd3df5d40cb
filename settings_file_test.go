package ivy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

const sampleSettingsYAML = `
cacheDir: cache
defaultResolver: main
conflictManager: latest-revision
latestStrategy: latest-time
versionMatcher: chain
resolvers:
  - name: local
    type: file
    root: repo
  - name: main
    type: chain
    returnFirst: true
    resolvers:
      - ref: local
      - name: remote
        type: url
        url: https://repo.example.com/ivy
        timeout: 30s
        cache: {size: 16, ttl: 10m}
  - name: split
    type: dual
    descriptors:
      ref: local
    artifacts:
      name: blobs
      type: file
      root: /srv/blobs
      artifactPattern: "[organisation]/[artifact]-[revision].[ext]"
modules:
  - organisation: org.internal
    resolver: local
  - organisation: org
    module: "*-tools"
    matcher: glob
    resolver: split
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ivysettings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettingsFile(t *testing.T) {
	path := writeSettings(t, sampleSettingsYAML)
	s, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile() error = %v", err)
	}
	dir := filepath.Dir(path)

	if got, want := s.CacheDir(), filepath.Join(dir, "cache"); got != want {
		t.Errorf("CacheDir() = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"blobs", "local", "main", "remote", "split"}, s.ResolverNames()); diff != "" {
		t.Errorf("ResolverNames() mismatch (-want +got):\n%s", diff)
	}
	if got := s.DefaultResolver(); got != "main" {
		t.Errorf("DefaultResolver() = %q, want main", got)
	}

	local, _ := s.Resolver("local")
	fr, ok := local.(*repository.FileResolver)
	if !ok {
		t.Fatalf("local is %T, want *repository.FileResolver", local)
	}
	if got, want := fr.Root(), filepath.Join(dir, "repo"); got != want {
		t.Errorf("local root = %q, want %q", got, want)
	}

	main, _ := s.Resolver("main")
	if main.Kind() != repository.KindChain || len(main.Children()) != 2 || main.Children()[0] != local {
		t.Errorf("main = %v with children %v", main.Kind(), main.Children())
	}
	remote, _ := s.Resolver("remote")
	if _, ok := remote.(*repository.Cached); !ok {
		t.Errorf("remote is %T, want *repository.Cached", remote)
	}
	split, _ := s.Resolver("split")
	if split.Kind() != repository.KindDual || split.Children()[0] != local {
		t.Errorf("split = %v with children %v", split.Kind(), split.Children())
	}

	m, err := s.ConflictManager(conflict.Default)
	if err != nil || m.Name() != conflict.LatestRevision {
		t.Errorf("default conflict manager = %v, %v", m, err)
	}

	tests := []struct {
		mid  module.ID
		want string
	}{
		{module.NewID("org.internal", "x"), "local"},
		{module.NewID("org", "build-tools"), "split"},
		{module.NewID("org", "lib"), "main"},
	}
	for _, tt := range tests {
		r, err := s.ResolverFor(tt.mid)
		if err != nil || r.Name() != tt.want {
			t.Errorf("ResolverFor(%v) = %v, %v; want %s", tt.mid, r, err, tt.want)
		}
	}
}

func TestLoadSettings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown field",
			yaml:    "resolverz: []\n",
			wantMsg: "field resolverz not found",
		},
		{
			name:    "unknown resolver type",
			yaml:    "resolvers:\n  - {name: x, type: ftp}\n",
			wantErr: ErrUnknownResolverType,
		},
		{
			name:    "unknown default resolver",
			yaml:    "defaultResolver: nope\n",
			wantErr: ErrUnknownResolver,
		},
		{
			name:    "unknown ref",
			yaml:    "resolvers:\n  - name: c\n    type: chain\n    resolvers:\n      - ref: nope\n",
			wantErr: ErrUnknownResolver,
		},
		{
			name:    "unknown rule matcher",
			yaml:    "resolvers:\n  - {name: x, type: file, root: r}\nmodules:\n  - {organisation: org, matcher: fuzzy, resolver: x}\n",
			wantErr: ErrUnknownMatcher,
		},
		{
			name:    "unknown conflict manager",
			yaml:    "conflictManager: newest\n",
			wantErr: ErrUnknownConflictManager,
		},
		{
			name:    "unknown latest strategy",
			yaml:    "latestStrategy: newest\n",
			wantErr: ErrUnknownLatestStrategy,
		},
		{
			name:    "unknown version matcher",
			yaml:    "versionMatcher: fuzzy\n",
			wantErr: ErrUnknownVersionMatcher,
		},
		{
			name:    "top-level ref",
			yaml:    "resolvers:\n  - ref: x\n",
			wantMsg: "ref is only allowed",
		},
		{
			name:    "file without root",
			yaml:    "resolvers:\n  - {name: x, type: file}\n",
			wantMsg: "needs root or url",
		},
		{
			name:    "empty chain",
			yaml:    "resolvers:\n  - {name: x, type: chain}\n",
			wantMsg: "chain without resolvers",
		},
		{
			name:    "incomplete dual",
			yaml:    "resolvers:\n  - name: x\n    type: dual\n    descriptors: {name: d, type: file, root: r}\n",
			wantMsg: "needs descriptors and artifacts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(strings.NewReader(tt.yaml), t.TempDir())
			if err == nil {
				t.Fatal("LoadSettings() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadSettings_Empty(t *testing.T) {
	s, err := LoadSettings(strings.NewReader(""), "")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if len(s.ResolverNames()) != 0 {
		t.Errorf("ResolverNames() = %v", s.ResolverNames())
	}
}

func TestLoadSettingsFile_Resolve(t *testing.T) {
	path := writeSettings(t, "cacheDir: cache\nresolvers:\n  - {name: local, type: file, root: repo}\n")
	s, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	local, _ := s.Resolver("local")
	pub := local.(repository.Publisher)
	ctx := context.Background()

	lib := newDescriptor("org#lib;1.0")
	a := &module.Artifact{Name: "lib", Type: "jar", Ext: "jar"}
	lib.AddArtifact(a)
	if err := pub.PublishDescriptor(ctx, lib); err != nil {
		t.Fatal(err)
	}
	if err := pub.PublishArtifact(ctx, a, strings.NewReader("lib-content")); err != nil {
		t.Fatal(err)
	}

	root := newDescriptor("org#app;1.0")
	depend(root, "org#lib;latest.integration", "default", "default")
	report, err := Resolve(ctx, root, nil, WithSettings(s), WithDownload(true))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff([]string{"org#lib;1.0"}, ids(report.ConfigurationReport("default").Modules)); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
	if len(report.Artifacts) != 1 || report.Artifacts[0].Status != DownloadStatusDownloaded {
		t.Fatalf("Artifacts = %+v", report.Artifacts)
	}
	if want := filepath.Join(filepath.Dir(path), "cache"); !strings.HasPrefix(report.Artifacts[0].Path, want) {
		t.Errorf("artifact path = %q, want it under %q", report.Artifacts[0].Path, want)
	}
}
