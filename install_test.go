package ivy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

func installSettings(t *testing.T) (*Settings, *repository.MemoryResolver) {
	t.Helper()
	src, _ := sampleRepo(t)
	dst := repository.NewMemoryResolver("dst")
	s := sampleSettings(t, src)
	if err := s.AddResolver(dst); err != nil {
		t.Fatal(err)
	}
	return s, dst
}

func revisionStrings(ids []module.RevisionID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func TestInstall(t *testing.T) {
	tests := []struct {
		name          string
		pattern       string
		opts          InstallOptions
		wantInstalled []string
	}{
		{
			name:          "single",
			pattern:       "org#lib;1.1",
			opts:          InstallOptions{From: "mem", To: "dst"},
			wantInstalled: []string{"org#lib;1.1"},
		},
		{
			name:          "transitive",
			pattern:       "org#lib;1.1",
			opts:          InstallOptions{From: "mem", To: "dst", Transitive: true},
			wantInstalled: []string{"org#lib;1.1", "org#util;2.0"},
		},
		{
			name:          "every revision matching a glob",
			pattern:       "org#lib;*",
			opts:          InstallOptions{From: "mem", To: "dst", Matcher: matcher.Glob},
			wantInstalled: []string{"org#lib;1.0", "org#lib;1.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dst := installSettings(t)
			ctx := context.Background()
			got, err := Install(ctx, rid(tt.pattern), tt.opts, WithSettings(s), WithCacheDir(t.TempDir()))
			if err != nil {
				t.Fatalf("Install() error = %v", err)
			}
			installed := revisionStrings(got.Installed)
			if diff := cmp.Diff(tt.wantInstalled, sortedStrings(installed)); diff != "" {
				t.Errorf("Installed mismatch (-want +got):\n%s", diff)
			}
			if got.Artifacts != len(tt.wantInstalled) {
				t.Errorf("Artifacts = %d, want %d", got.Artifacts, len(tt.wantInstalled))
			}
			for _, id := range got.Installed {
				rev, err := dst.LoadDescriptor(ctx, repository.Request{ID: id})
				if err != nil {
					t.Errorf("destination cannot load %s: %v", id, err)
					continue
				}
				for _, a := range rev.Descriptor.Artifacts {
					if ok, _ := dst.Exists(ctx, a); !ok {
						t.Errorf("destination is missing %s", a)
					}
				}
			}
		})
	}
}

func TestInstall_SkipsExisting(t *testing.T) {
	s, _ := installSettings(t)
	ctx := context.Background()
	iopts := InstallOptions{From: "mem", To: "dst", Transitive: true}

	if _, err := Install(ctx, rid("org#lib;1.1"), iopts, WithSettings(s)); err != nil {
		t.Fatal(err)
	}
	got, err := Install(ctx, rid("org#lib;1.1"), iopts, WithSettings(s))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Installed) != 0 || len(got.Skipped) != 2 {
		t.Errorf("second Install() installed %v, skipped %v", got.Installed, got.Skipped)
	}

	iopts.Overwrite = true
	got, err = Install(ctx, rid("org#lib;1.1"), iopts, WithSettings(s))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Installed) != 2 || len(got.Skipped) != 0 {
		t.Errorf("Install() with overwrite installed %v, skipped %v", got.Installed, got.Skipped)
	}
}

func TestInstall_Errors(t *testing.T) {
	s, _ := installSettings(t)
	if err := s.AddResolver(repository.NewURLResolver("remote", "https://repo.example.com")); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		opts    InstallOptions
		wantErr error
	}{
		{"unknown source", "org#lib;1.1", InstallOptions{From: "nope", To: "dst"}, ErrUnknownResolver},
		{"unknown matcher", "org#lib;1.1", InstallOptions{From: "mem", To: "dst", Matcher: "nope"}, ErrUnknownMatcher},
		{"nothing matches", "org#nope;*", InstallOptions{From: "mem", To: "dst", Matcher: matcher.Glob}, ErrModuleNotFound},
		{"destination cannot publish", "org#lib;1.1", InstallOptions{From: "mem", To: "remote"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Install(ctx, rid(tt.pattern), tt.opts, WithSettings(s))
			if err == nil {
				t.Fatal("Install() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
