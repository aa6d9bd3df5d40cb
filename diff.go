package ivy

import (
	"github.com/eed3si9n/ivy/lockfile"
)

// ResolutionDiff describes the differences between two resolutions:
// modules added, removed, upgraded and downgraded.
type ResolutionDiff = lockfile.Diff

// DiffResolutions compares the resolved revisions of two reports across all
// their configurations.
//
// Example usage:
//
//	before, _ := ivy.Resolve(ctx, oldDescriptor, nil, opts...)
//	after, _ := ivy.Resolve(ctx, newDescriptor, nil, opts...)
//	diff := ivy.DiffResolutions(before, after)
//
//	if !diff.IsEmpty() {
//	    fmt.Println(diff.Summary())
//	}
//
// A nil report is treated as empty. Results are sorted by module id.
func DiffResolutions(old, new *Report) *ResolutionDiff {
	return lockfile.Compare(resolvedRevisions(old, ""), resolvedRevisions(new, ""))
}

// DiffConfiguration compares the modules selected in conf by two reports.
func DiffConfiguration(old, new *Report, conf string) *ResolutionDiff {
	return lockfile.Compare(resolvedRevisions(old, conf), resolvedRevisions(new, conf))
}

// DiffLockfile compares a previously written resolved-revisions file with
// a new resolution.
func DiffLockfile(old *lockfile.File, new *Report) *ResolutionDiff {
	return lockfile.Compare(old, resolvedRevisions(new, ""))
}

func resolvedRevisions(r *Report, conf string) *lockfile.File {
	if r == nil {
		return nil
	}
	if conf == "" {
		return r.ResolvedRevisions()
	}
	f := lockfile.New(r.Root)
	if cr := r.ConfigurationReport(conf); cr != nil {
		for _, mr := range cr.Modules {
			f.Set(mr.ID.ModuleID(), lockfile.Entry{Revision: mr.ID.Revision, Status: mr.Status})
		}
	}
	return f
}
