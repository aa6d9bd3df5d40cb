package ivy

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
	"github.com/eed3si9n/ivy/version"
)

func TestSettings_AddResolver(t *testing.T) {
	local := repository.NewMemoryResolver("local")
	remote := repository.NewMemoryResolver("remote")
	chain := repository.NewChain("main", []repository.Resolver{local, remote})

	s := NewSettings()
	if err := s.AddResolver(chain); err != nil {
		t.Fatalf("AddResolver() error = %v", err)
	}
	if diff := cmp.Diff([]string{"local", "main", "remote"}, s.ResolverNames()); diff != "" {
		t.Errorf("ResolverNames() mismatch (-want +got):\n%s", diff)
	}
	if got := s.DefaultResolver(); got != "main" {
		t.Errorf("DefaultResolver() = %q, want main", got)
	}
	if r, err := s.Resolver("remote"); err != nil || r != remote {
		t.Errorf("Resolver(remote) = %v, %v", r, err)
	}

	if err := s.AddResolver(repository.NewMemoryResolver("")); err == nil {
		t.Error("AddResolver() accepted a resolver without a name")
	}
	if err := s.AddResolver(repository.NewMemoryResolver("other")); err != nil {
		t.Fatal(err)
	}
	if got := s.DefaultResolver(); got != "main" {
		t.Errorf("DefaultResolver() = %q after a second resolver, want main", got)
	}
}

func TestSettings_UnknownNames(t *testing.T) {
	s := NewSettings()
	if err := s.AddResolver(repository.NewMemoryResolver("mem")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"resolver", func() error { _, err := s.Resolver("nope"); return err }, ErrUnknownResolver},
		{"default resolver", func() error { return s.SetDefaultResolver("nope") }, ErrUnknownResolver},
		{"dictator", func() error { return s.SetDictatorResolver("nope") }, ErrUnknownResolver},
		{"rule resolver", func() error { return s.AddModuleRule(ModuleRule{Organisation: "org", Resolver: "nope"}) }, ErrUnknownResolver},
		{"rule matcher", func() error {
			return s.AddModuleRule(ModuleRule{Organisation: "org", Matcher: "nope", Resolver: "mem"})
		}, ErrUnknownMatcher},
		{"conflict manager", func() error { _, err := s.ConflictManager("nope"); return err }, ErrUnknownConflictManager},
		{"default conflict manager", func() error { return s.SetDefaultConflictManager("nope") }, ErrUnknownConflictManager},
		{"latest strategy", func() error { _, err := s.LatestStrategy("nope"); return err }, ErrUnknownLatestStrategy},
		{"pattern matcher", func() error { _, err := s.PatternMatcher("nope"); return err }, ErrUnknownMatcher},
		{"version matcher", func() error { return s.SetVersionMatcher("nope") }, ErrUnknownVersionMatcher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error %v is not a *ConfigError", err)
			}
			if ce.Name != "nope" || len(ce.Known) == 0 {
				t.Errorf("ConfigError = %+v", ce)
			}
		})
	}
}

func TestSettings_ResolverFor(t *testing.T) {
	s := NewSettings()
	for _, name := range []string{"main", "internal", "snapshots", "dictator"} {
		if err := s.AddResolver(repository.NewMemoryResolver(name)); err != nil {
			t.Fatal(err)
		}
	}
	rules := []ModuleRule{
		{Organisation: "com\\.corp\\..*", Resolver: "internal"},
		{Organisation: "org", Module: "*-snapshot", Matcher: matcher.Glob, Resolver: "snapshots"},
		{Organisation: "com.corp.special", Resolver: "main"},
	}
	for _, r := range rules {
		if err := s.AddModuleRule(r); err != nil {
			t.Fatalf("AddModuleRule(%+v) error = %v", r, err)
		}
	}
	if got := len(s.ModuleRules()); got != 3 {
		t.Errorf("ModuleRules() = %d, want 3", got)
	}

	tests := []struct {
		mid  module.ID
		want string
	}{
		{module.NewID("com.corp.tools", "x"), "internal"},
		{module.NewID("com.corp.special", "x"), "internal"},
		{module.NewID("org", "lib-snapshot"), "snapshots"},
		{module.NewID("org", "lib"), "main"},
	}
	for _, tt := range tests {
		r, err := s.ResolverFor(tt.mid)
		if err != nil {
			t.Fatalf("ResolverFor(%v) error = %v", tt.mid, err)
		}
		if r.Name() != tt.want {
			t.Errorf("ResolverFor(%v) = %s, want %s", tt.mid, r.Name(), tt.want)
		}
	}

	if err := s.SetDictatorResolver("dictator"); err != nil {
		t.Fatal(err)
	}
	if r, _ := s.ResolverFor(module.NewID("com.corp.tools", "x")); r.Name() != "dictator" {
		t.Errorf("ResolverFor() with dictator = %s", r.Name())
	}
	if err := s.SetDictatorResolver(""); err != nil {
		t.Fatal(err)
	}
	if got := s.DictatorResolver(); got != "" {
		t.Errorf("DictatorResolver() = %q after clearing", got)
	}
}

func TestSettings_NoResolver(t *testing.T) {
	_, err := NewSettings().ResolverFor(module.NewID("org", "lib"))
	if !errors.Is(err, ErrNoResolver) || !IsConfigError(err) {
		t.Errorf("ResolverFor() error = %v, want ErrNoResolver config error", err)
	}
}

func TestSettings_Registries(t *testing.T) {
	s := NewSettings()
	if err := s.SetDefaultConflictManager(conflict.All); err != nil {
		t.Fatal(err)
	}
	m, err := s.ConflictManager(conflict.Default)
	if err != nil || m.Name() != conflict.All {
		t.Errorf("ConflictManager(default) = %v, %v", m, err)
	}
	if err := s.SetVersionMatcher(version.ExactMatcher); err != nil {
		t.Fatal(err)
	}
	if got := s.VersionMatcher().Name(); got != version.ExactMatcher {
		t.Errorf("VersionMatcher() = %s, want %s", got, version.ExactMatcher)
	}
	s.SetCacheDir("/tmp/cache")
	if got := s.CacheDir(); got != "/tmp/cache" {
		t.Errorf("CacheDir() = %q", got)
	}
}
