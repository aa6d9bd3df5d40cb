package ivy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/resolve"
)

// WorkingRevisionPrefix starts the revision given to a module resolved
// without one.
const WorkingRevisionPrefix = "working@"

func (c *resolverConfig) resolve(ctx context.Context, md *module.Descriptor, confs []string) (*Report, error) {
	start := time.Now()
	res, root, err := c.dependencies(ctx, md, confs)
	c.metrics.resolved(err, time.Since(start))
	if err != nil {
		return nil, err
	}

	report := newReport(uuid.New(), root, res, confs)
	report.Date = start
	report.Duration = time.Since(start)

	if c.download {
		c.log().Info("downloading artifacts", "module", report.Root.String(), "cache", c.cacheDir)
		report.setArtifacts(c.downloadAll(ctx, res.Nodes))
	}
	return report, nil
}

// dependencies runs the engine on a copy of md carrying the revision to
// resolve under.
func (c *resolverConfig) dependencies(ctx context.Context, md *module.Descriptor, confs []string) (*resolve.Result, *module.Descriptor, error) {
	if md == nil {
		return nil, nil, errors.New("nil module descriptor")
	}
	root := *md
	root.ResolvedID = c.rootRevision(md)

	engine, err := resolve.New(resolve.Config{
		Resolver:         c.loaderFor,
		ConflictManagers: c.settings.ConflictManagers(),
		PatternMatchers:  c.settings.PatternMatchers(),
		VersionMatcher:   c.settings.VersionMatcher(),
		Date:             c.date,
		Logger:           c.log(),
		Observer:         &observer{cfg: c},
	})
	if err != nil {
		return nil, nil, err
	}

	c.progress(ProgressEvent{Type: ProgressResolveStart, Module: root.ResolvedID})
	res, err := engine.Resolve(ctx, &root, confs)
	c.progress(ProgressEvent{Type: ProgressResolveEnd, Module: root.ResolvedID, Err: err})
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", root.ResolvedID, err)
	}
	return res, &root, nil
}

func (c *resolverConfig) loaderFor(mid module.ID) (resolve.DescriptorLoader, error) {
	r, err := c.settings.ResolverFor(mid)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *resolverConfig) rootRevision(md *module.Descriptor) module.RevisionID {
	id := md.ResolvedRevisionID()
	switch {
	case c.revision != "":
		return id.WithRevision(c.revision)
	case id.Revision == "":
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		return id.WithRevision(WorkingRevisionPrefix + host)
	}
	return id
}
