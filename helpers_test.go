package ivy

import (
	"context"
	"sort"
	"testing"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

func rid(s string) module.RevisionID {
	id, err := module.ParseRevisionID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func newDescriptor(id string, confs ...string) *module.Descriptor {
	md := module.NewDescriptor(rid(id))
	if len(confs) == 0 {
		confs = []string{"default"}
	}
	for _, c := range confs {
		md.AddConfiguration(&module.Configuration{Name: c, Visibility: module.Public})
	}
	return md
}

func depend(md *module.Descriptor, target, ownerConf, depConf string) {
	dd := module.NewDependencyDescriptor(md.ID, rid(target))
	dd.AddDependencyConfiguration(ownerConf, depConf)
	md.AddDependency(dd)
}

// jar gives md a jar artifact named after the module and stores its
// content in repo.
func jar(repo *repository.MemoryResolver, md *module.Descriptor) *module.Artifact {
	a := &module.Artifact{Name: md.ID.Name, Type: "jar", Ext: "jar"}
	md.AddArtifact(a)
	repo.AddArtifact(a, []byte(md.ID.String()))
	return a
}

// sampleRepo returns a repository and a root module resolving to:
//
//	compile: util;1.0, lib;1.+ -> lib;1.1 -> util;2.0
//	test:    junit;4.0, missing;1.0
//
// util;2.0 evicts util;1.0 and missing;1.0 cannot be loaded.
func sampleRepo(t *testing.T) (*repository.MemoryResolver, *module.Descriptor) {
	t.Helper()
	repo := repository.NewMemoryResolver("mem")

	root := newDescriptor("org#app;1.0", "compile", "test")
	depend(root, "org#util;1.0", "compile", "default")
	depend(root, "org#lib;1.+", "compile", "default")
	depend(root, "org#junit;4.0", "test", "default")
	depend(root, "org#missing;1.0", "test", "default")

	lib10 := newDescriptor("org#lib;1.0")
	lib11 := newDescriptor("org#lib;1.1")
	depend(lib11, "org#util;2.0", "default", "default")
	util10 := newDescriptor("org#util;1.0")
	util20 := newDescriptor("org#util;2.0")
	junit := newDescriptor("org#junit;4.0")
	for _, md := range []*module.Descriptor{lib10, lib11, util10, util20, junit} {
		jar(repo, md)
		repo.Add(md)
	}
	return repo, root
}

func sampleSettings(t *testing.T, repo repository.Resolver) *Settings {
	t.Helper()
	s := NewSettings()
	if err := s.AddResolver(repo); err != nil {
		t.Fatal(err)
	}
	return s
}

func ids(mods []*ModuleReport) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.ID.String()
	}
	sort.Strings(out)
	return out
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func resolveSample(t *testing.T, repo repository.Resolver, root *module.Descriptor) *Report {
	t.Helper()
	report, err := Resolve(context.Background(), root, nil, WithSettings(sampleSettings(t, repo)))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return report
}
