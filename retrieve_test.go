package ivy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

func downloadedReport(t *testing.T, repo repository.Resolver, root *module.Descriptor) *Report {
	t.Helper()
	report, err := Resolve(context.Background(), root, nil,
		WithSettings(sampleSettings(t, repo)),
		WithCacheDir(t.TempDir()),
		WithDownload(true),
	)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return report
}

func TestRetrieve(t *testing.T) {
	repo, root := sampleRepo(t)
	report := downloadedReport(t, repo, root)
	dest := t.TempDir()
	pattern := filepath.Join(dest, "[conf]", "[artifact]-[revision].[ext]")

	n, err := Retrieve(report, pattern, nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Retrieve() copied %d files, want 3", n)
	}
	for _, rel := range []string{"compile/lib-1.1.jar", "compile/util-2.0.jar", "test/junit-4.0.jar"} {
		data, err := os.ReadFile(filepath.Join(dest, rel))
		if err != nil {
			t.Errorf("missing %s: %v", rel, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "compile", "util-1.0.jar")); !os.IsNotExist(err) {
		t.Errorf("evicted util-1.0.jar was retrieved: %v", err)
	}

	n, err = Retrieve(report, pattern, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second Retrieve() copied %d files, want 0", n)
	}
}

func TestRetrieve_Confs(t *testing.T) {
	repo, root := sampleRepo(t)
	report := downloadedReport(t, repo, root)
	dest := t.TempDir()

	n, err := Retrieve(report, filepath.Join(dest, "[artifact].[ext]"), []string{"test"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Retrieve() copied %d files, want 1", n)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 1 || entries[0].Name() != "junit.jar" {
		t.Errorf("retrieved %v, want only junit.jar", entries)
	}
}

func TestRetrieve_NewestWinsOnCollision(t *testing.T) {
	repo := repository.NewMemoryResolver("mem")
	old := newDescriptor("org#old;1.0")
	jar(repo, old).Published = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.Add(old)
	recent := newDescriptor("org#recent;1.0")
	jar(repo, recent).Published = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.Add(recent)

	root := newDescriptor("org#app;1.0")
	depend(root, "org#old;1.0", "default", "default")
	depend(root, "org#recent;1.0", "default", "default")
	report := downloadedReport(t, repo, root)

	dest := filepath.Join(t.TempDir(), "all.jar")
	n, err := Retrieve(report, dest, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Retrieve() copied %d files, want 1", n)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "org#recent;1.0" {
		t.Errorf("retrieved %q, want the most recently published artifact", got)
	}
}

func TestRetrieve_ArtifactFilter(t *testing.T) {
	repo, root := sampleRepo(t)
	report := downloadedReport(t, repo, root)
	dest := t.TempDir()

	onlyLib := func(a *module.Artifact) bool { return a.Name == "lib" }
	n, err := Retrieve(report, filepath.Join(dest, "[artifact].[ext]"), nil, WithArtifactFilter(onlyLib))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Retrieve() copied %d files, want 1", n)
	}
}

func TestRetrieve_EmptyPattern(t *testing.T) {
	repo, root := sampleRepo(t)
	report := downloadedReport(t, repo, root)
	if _, err := Retrieve(report, "", nil); err == nil {
		t.Error("Retrieve() accepted an empty pattern")
	}
}
