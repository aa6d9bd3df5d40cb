// Package ivy resolves the transitive dependencies of a module against one
// or more module repositories.
//
// Resolution follows the modules' configurations, keeps one revision per
// conflicting module according to pluggable conflict managers, evicts
// modules only reachable through evicted callers and orders the result so
// that every module comes after its dependencies.
//
// # Overview
//
// The package is organised around a few parts:
//
//   - Settings: named resolvers, rules routing modules to them, and the
//     registries of conflict managers, latest strategies and matchers
//   - Resolve: runs the engine of package resolve and builds a Report
//   - Report: selected, evicted and failed modules per configuration,
//     download outcomes, resolved revisions and graph export
//   - Retrieve, Install, FindModuleRevisionIDs, SortModuleDescriptors:
//     the workflows built on top of resolution
//
// # Quick Start
//
//	settings, err := ivy.LoadSettingsFile("ivysettings.yaml")
//	if err != nil {
//	    return err
//	}
//	report, err := ivy.ResolveFile(ctx, "ivy.star", []string{"compile"},
//	    ivy.WithSettings(settings),
//	    ivy.WithDownload(true),
//	)
//
// # Settings files
//
// Settings are usually read from YAML. Resolvers are declared by type
// (file, url, chain or dual) and may nest:
//
//	cacheDir: .ivy/cache
//	defaultResolver: main
//	resolvers:
//	  - name: main
//	    type: chain
//	    resolvers:
//	      - {name: local, type: file, root: repo}
//	      - {name: central, type: url, url: "https://repo.example.com/ivy"}
//
// # Thread Safety
//
// Settings is safe for concurrent use. A Report must not be modified while
// it is read from several goroutines.
package ivy

import (
	"context"
	"fmt"

	"github.com/eed3si9n/ivy/descriptor"
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/resolve"
)

// Resolve resolves the dependencies of md in confs and, with
// WithDownload, downloads the selected artifacts.
//
// An empty confs or "*" means every configuration of md. Unknown
// configurations are reported on their ConfigurationReport and skipped.
// Modules that fail to load are reported as problems and do not make
// Resolve fail; configuration errors and strict conflicts do.
func Resolve(ctx context.Context, md *module.Descriptor, confs []string, opts ...Option) (*Report, error) {
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return nil, err
	}
	return cfg.resolve(ctx, md, confs)
}

// ResolveFile parses the descriptor at path and resolves it.
func ResolveFile(ctx context.Context, path string, confs []string, opts ...Option) (*Report, error) {
	md, err := descriptor.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return Resolve(ctx, md, confs, opts...)
}

// GetDependencies runs the resolution engine only and returns its sorted,
// eviction-annotated node list. Nothing is downloaded.
func GetDependencies(ctx context.Context, md *module.Descriptor, confs []string, opts ...Option) (*resolve.Result, error) {
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return nil, err
	}
	res, _, err := cfg.dependencies(ctx, md, confs)
	return res, err
}
