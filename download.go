package ivy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
	"github.com/eed3si9n/ivy/resolve"
)

// CachePattern lays artifacts out below the cache directory.
const CachePattern = "[organisation]/[module]/[type]s/[artifact]-[revision].[ext]"

// DownloadStatus is the outcome of fetching one artifact.
type DownloadStatus string

const (
	// DownloadStatusDownloaded means the artifact was written to the cache.
	DownloadStatusDownloaded DownloadStatus = "downloaded"

	// DownloadStatusCached means the artifact was already in the cache.
	DownloadStatusCached DownloadStatus = "cached"

	// DownloadStatusFailed means the artifact could not be fetched.
	DownloadStatusFailed DownloadStatus = "failed"
)

// ArtifactReport is the download outcome of one artifact.
type ArtifactReport struct {
	Artifact *module.Artifact
	Status   DownloadStatus

	// Path is the cache file, empty on failure.
	Path string

	Size int64
	Err  error
}

// CachePath returns where a is stored below cacheDir.
func CachePath(cacheDir string, a *module.Artifact) string {
	rel := repository.Substitute(CachePattern, repository.ArtifactTokens(a, ""))
	return filepath.Join(cacheDir, filepath.FromSlash(rel))
}

// downloadAll fetches the selected artifacts of every node that is not
// completely evicted and loaded without problem. Nodes are handled
// concurrently, the artifacts of one node in order. The result follows the
// order of nodes.
func (c *resolverConfig) downloadAll(ctx context.Context, nodes []*resolve.Node) []*ArtifactReport {
	perNode := make([][]*ArtifactReport, len(nodes))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, n := range nodes {
		if n.Problem() != nil || n.IsCompletelyEvicted() || !n.IsLoaded() {
			continue
		}
		artifacts := n.SelectedArtifacts(c.artifactFilter)
		if len(artifacts) == 0 {
			continue
		}
		g.Go(func() error {
			reports := make([]*ArtifactReport, 0, len(artifacts))
			for _, a := range artifacts {
				reports = append(reports, c.fetchArtifact(ctx, n.ArtifactResolver(), a))
			}
			perNode[i] = reports
			return nil
		})
	}
	_ = g.Wait()

	var out []*ArtifactReport
	for _, reports := range perNode {
		out = append(out, reports...)
	}
	return out
}

// fetchArtifact copies a into the cache unless it is already there. Failures
// are recorded on the report.
func (c *resolverConfig) fetchArtifact(ctx context.Context, r repository.Resolver, a *module.Artifact) *ArtifactReport {
	c.progress(ProgressEvent{Type: ProgressDownloadStart, Module: a.Module, Artifact: a})
	ar := &ArtifactReport{Artifact: a, Path: CachePath(c.cacheDir, a)}

	if fi, err := os.Stat(ar.Path); err == nil && fi.Mode().IsRegular() {
		ar.Status = DownloadStatusCached
		ar.Size = fi.Size()
	} else if size, err := fetch(ctx, r, a, ar.Path); err != nil {
		ar.Status = DownloadStatusFailed
		ar.Path = ""
		ar.Err = err
		c.log().Warn("artifact download failed", "artifact", a.String(), "resolver", r.Name(), "error", err)
	} else {
		ar.Status = DownloadStatusDownloaded
		ar.Size = size
		c.log().Debug("artifact downloaded", "artifact", a.String(), "path", ar.Path, "size", size)
	}

	c.metrics.downloaded(ar.Status, ar.Size)
	c.progress(ProgressEvent{Type: ProgressDownloadEnd, Module: a.Module, Artifact: a, Err: ar.Err})
	return ar
}

// fetch writes a to a temporary file next to dest and renames it into
// place once complete.
func fetch(ctx context.Context, r repository.Resolver, a *module.Artifact, dest string) (size int64, err error) {
	if r == nil {
		return 0, fmt.Errorf("download %s: no resolver", a)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return 0, fmt.Errorf("create cache file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := r.Download(ctx, a, cw); err != nil {
		return 0, fmt.Errorf("download %s: %w", a, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
