package ivy

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

// installConf is the single configuration of the synthetic module that
// depends on everything being installed.
const installConf = "default"

// InstallOptions selects what Install copies and where.
type InstallOptions struct {
	// From and To name the source and destination resolvers.
	From string
	To   string

	// Matcher is the pattern matcher applied to the requested revision
	// id. Empty means exact.
	Matcher string

	// Transitive also installs the dependencies of the matched modules.
	Transitive bool

	// Overwrite republishes revisions the destination already has.
	Overwrite bool

	// Confs are the configurations of the matched modules to install.
	// Empty means all of them.
	Confs []string
}

// InstallReport is the outcome of Install.
type InstallReport struct {
	// Resolution is the resolution of the installed modules against the
	// source resolver.
	Resolution *Report

	Installed []module.RevisionID
	Skipped   []module.RevisionID
	Artifacts int
}

// Install copies the revisions matching pattern, and with Transitive their
// dependencies, from one resolver of the settings to another. Every
// revision found is kept: conflicts are resolved with the "all" manager
// and the source resolver answers for every module.
func Install(ctx context.Context, pattern module.RevisionID, iopts InstallOptions, opts ...Option) (*InstallReport, error) {
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return nil, err
	}
	s := cfg.settings

	from, err := s.Resolver(iopts.From)
	if err != nil {
		return nil, err
	}
	to, err := s.Resolver(iopts.To)
	if err != nil {
		return nil, err
	}
	pub, ok := to.(repository.Publisher)
	if !ok {
		return nil, fmt.Errorf("install: resolver %q does not accept publications", iopts.To)
	}
	pm, err := s.PatternMatcher(iopts.Matcher)
	if err != nil {
		return nil, err
	}

	ids := []module.RevisionID{pattern}
	if !matcher.IsExactRevision(pm, pattern) {
		ids, err = FindModuleRevisionIDs(ctx, from, pattern, pm)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("install %s: %w on %s", pattern, ErrModuleNotFound, from.Name())
		}
	}
	cfg.log().Info("installing", "modules", len(ids), "from", from.Name(), "to", to.Name())

	is := NewSettings()
	is.versionMatcher = s.VersionMatcher()
	if err := is.AddResolver(from); err != nil {
		return nil, err
	}
	if err := is.SetDictatorResolver(from.Name()); err != nil {
		return nil, err
	}
	if err := is.SetDefaultConflictManager(conflict.All); err != nil {
		return nil, err
	}

	icfg := *cfg
	icfg.settings = is
	icfg.download = true
	if icfg.cacheDir == "" {
		dir, err := os.MkdirTemp("", "ivy-install-")
		if err != nil {
			return nil, fmt.Errorf("install: %w", err)
		}
		defer os.RemoveAll(dir)
		icfg.cacheDir = dir
	}

	report, err := icfg.resolve(ctx, installDescriptor(ids, iopts), []string{installConf})
	if err != nil {
		return nil, err
	}
	out := &InstallReport{Resolution: report}
	for _, p := range report.Problems() {
		cfg.log().Warn("module not installed", "module", p.ID.String(), "error", p.Err)
	}

	downloaded := make(map[*module.Artifact]*ArtifactReport, len(report.Artifacts))
	for _, ar := range report.Artifacts {
		downloaded[ar.Artifact] = ar
	}
	for _, mr := range report.ConfigurationReport(installConf).Modules {
		if !iopts.Overwrite {
			_, err := to.LoadDescriptor(ctx, repository.Request{ID: mr.ID})
			if err == nil {
				out.Skipped = append(out.Skipped, mr.ID)
				continue
			}
			if !errors.Is(err, repository.ErrModuleNotFound) {
				return out, fmt.Errorf("install %s: %w", mr.ID, err)
			}
		}
		for _, a := range mr.Artifacts {
			if cfg.artifactFilter != nil && !cfg.artifactFilter(a) {
				continue
			}
			ar := downloaded[a]
			if ar == nil || ar.Status == DownloadStatusFailed {
				return out, fmt.Errorf("install %s: artifact %s was not downloaded", mr.ID, a)
			}
			if err := publishArtifact(ctx, pub, a, ar.Path); err != nil {
				return out, fmt.Errorf("install %s: %w", mr.ID, err)
			}
			out.Artifacts++
		}
		if err := pub.PublishDescriptor(ctx, mr.node.Descriptor()); err != nil {
			return out, fmt.Errorf("install %s: %w", mr.ID, err)
		}
		out.Installed = append(out.Installed, mr.ID)
		cfg.log().Debug("module installed", "module", mr.ID.String(), "to", to.Name())
	}
	return out, nil
}

func installDescriptor(ids []module.RevisionID, iopts InstallOptions) *module.Descriptor {
	md := module.NewDescriptor(module.NewRevisionID("caller", "install", "working"))
	md.AddConfiguration(&module.Configuration{Name: installConf})
	confs := iopts.Confs
	if len(confs) == 0 {
		confs = []string{"*"}
	}
	for _, id := range ids {
		dd := module.NewDependencyDescriptor(md.ID, id)
		dd.Intransitive = !iopts.Transitive
		for _, c := range confs {
			dd.AddDependencyConfiguration(installConf, c)
		}
		md.AddDependency(dd)
	}
	return md
}

func publishArtifact(ctx context.Context, pub repository.Publisher, a *module.Artifact, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pub.PublishArtifact(ctx, a, f)
}
