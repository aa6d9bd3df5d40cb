package repository

import (
	"context"
	"io"

	"github.com/eed3si9n/ivy/module"
)

// Dual loads descriptors from one resolver and artifacts from another.
type Dual struct {
	name        string
	descriptors Resolver
	artifacts   Resolver
}

// NewDual creates a dual resolver.
func NewDual(name string, descriptors, artifacts Resolver) *Dual {
	return &Dual{name: name, descriptors: descriptors, artifacts: artifacts}
}

func (d *Dual) Name() string         { return d.name }
func (d *Dual) Kind() Kind           { return KindDual }
func (d *Dual) Children() []Resolver { return []Resolver{d.descriptors, d.artifacts} }

func (d *Dual) LoadDescriptor(ctx context.Context, req Request) (*ResolvedRevision, error) {
	rev, err := d.descriptors.LoadDescriptor(ctx, req)
	if err != nil {
		return nil, err
	}
	out := *rev
	out.ArtifactResolver = d.artifacts
	return &out, nil
}

func (d *Dual) Exists(ctx context.Context, a *module.Artifact) (bool, error) {
	return d.artifacts.Exists(ctx, a)
}

func (d *Dual) Download(ctx context.Context, a *module.Artifact, w io.Writer) error {
	return d.artifacts.Download(ctx, a, w)
}

func (d *Dual) ListOrganisations(ctx context.Context) ([]string, error) {
	return d.descriptors.ListOrganisations(ctx)
}

func (d *Dual) ListModules(ctx context.Context, organisation string) ([]string, error) {
	return d.descriptors.ListModules(ctx, organisation)
}

func (d *Dual) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	return d.descriptors.ListRevisions(ctx, id)
}
