package ivy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/repository"
)

// DefaultRetrievePattern is the destination pattern used by the command
// line when none is given.
const DefaultRetrievePattern = "lib/[conf]/[artifact]-[revision].[ext]"

// Retrieve copies the downloaded artifacts of report to the paths given by
// pattern, which may use the artifact tokens and [conf]. An empty confs
// means every configuration of the report.
//
// When several artifacts land on the same path the most recently published
// one wins. Files whose size and modification time already match are not
// copied again. Retrieve returns the number of files copied.
func Retrieve(report *Report, pattern string, confs []string, opts ...Option) (int, error) {
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return 0, err
	}
	if pattern == "" {
		return 0, fmt.Errorf("retrieve: empty destination pattern")
	}

	targets := make(map[string]*ArtifactReport)
	for _, cr := range report.Configurations {
		if cr.Err != nil || (len(confs) > 0 && !slices.Contains(confs, cr.Name)) {
			continue
		}
		for _, ar := range cr.Artifacts {
			if ar.Status == DownloadStatusFailed || ar.Path == "" {
				continue
			}
			if cfg.artifactFilter != nil && !cfg.artifactFilter(ar.Artifact) {
				continue
			}
			dest := filepath.FromSlash(repository.Substitute(pattern, repository.ArtifactTokens(ar.Artifact, cr.Name)))
			if prev, ok := targets[dest]; ok && prev != ar {
				if !newer(ar.Artifact, prev.Artifact) {
					continue
				}
				cfg.log().Debug("retrieve conflict", "path", dest, "kept", ar.Artifact.String(), "dropped", prev.Artifact.String())
			}
			targets[dest] = ar
		}
	}

	dests := make([]string, 0, len(targets))
	for dest := range targets {
		dests = append(dests, dest)
	}
	sort.Strings(dests)

	copied := 0
	for _, dest := range dests {
		src := targets[dest].Path
		ok, err := copyIfChanged(src, dest)
		if err != nil {
			return copied, fmt.Errorf("retrieve %s: %w", targets[dest].Artifact, err)
		}
		if ok {
			copied++
			cfg.log().Debug("artifact retrieved", "from", src, "to", dest)
		}
	}
	cfg.log().Info("artifacts retrieved", "module", report.Root.String(), "copied", copied, "up_to_date", len(dests)-copied)
	return copied, nil
}

// newer reports whether a was published after b. Unknown dates lose.
func newer(a, b *module.Artifact) bool {
	return a.Published.After(b.Published)
}

// copyIfChanged copies src to dest unless dest has the same size and
// modification time. The copy gets src's modification time.
func copyIfChanged(src, dest string) (bool, error) {
	sfi, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if dfi, err := os.Stat(dest); err == nil && dfi.Size() == sfi.Size() && dfi.ModTime().Equal(sfi.ModTime()) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, err
	}
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Close(); err != nil {
		return false, err
	}
	if err := os.Chtimes(dest, sfi.ModTime(), sfi.ModTime()); err != nil {
		return false, err
	}
	return true, nil
}
