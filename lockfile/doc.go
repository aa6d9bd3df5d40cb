// Package lockfile reads and writes resolved-revisions files.
//
// A resolved-revisions file records, for one resolution of a root module,
// the revision and status every live dependency resolved to. It lets a
// later build reproduce the same dependency set and lets tooling compare
// two resolutions.
//
// # Usage
//
// Record a resolution:
//
//	f := lockfile.New(rootID)
//	f.Set(module.NewID("org.example", "lib"), lockfile.Entry{Revision: "1.2", Status: "release"})
//	if err := f.WriteFile("ivy.lock"); err != nil {
//	    log.Fatal(err)
//	}
//
// Compare two files:
//
//	d := lockfile.Compare(oldFile, newFile)
//	fmt.Println(d.Summary())
//
// # Formats
//
// The JSON form is written with sorted keys and two-space indentation so the
// same resolution always produces the same bytes. The properties form has
// one "organisation#name=revision status" line per module, also sorted.
package lockfile
