// Package version implements revision ordering and the version matchers
// that decide whether a requested revision constraint is dynamic and which
// concrete revisions satisfy it.
//
// Revision format: identifiers separated by '.', '-', '_' or '+', with an
// implicit separator at every switch between digits and letters, so that
// "1.0rc2" reads as 1, 0, rc, 2.
//
// Ordering rules:
//   - digits-only identifiers compare numerically
//   - a digits-only identifier sorts after a word in the same position
//   - known qualifiers (dev, alpha, beta, milestone, rc, final, ga) compare
//     by maturity; other words compare lexicographically and sort below them
//   - when one revision runs out of identifiers, a trailing number makes the
//     longer revision greater ("1.0.1" > "1.0") while a trailing word makes
//     it smaller ("1.0-beta" < "1.0")
package version

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// qualifiers ranks well-known pre-release and release words. A rank of 0
// is equivalent to no qualifier at all.
var qualifiers = map[string]int{
	"dev":       -5,
	"snapshot":  -5,
	"alpha":     -4,
	"a":         -4,
	"beta":      -3,
	"b":         -3,
	"milestone": -2,
	"m":         -2,
	"rc":        -1,
	"cr":        -1,
	"final":     0,
	"ga":        0,
	"release":   0,
}

// unknownQualifierRank places unrecognized words below every known one.
const unknownQualifierRank = -6

// Identifier is one segment of a revision.
type Identifier struct {
	IsDigitsOnly bool
	AsNumber     uint64 // Only valid if IsDigitsOnly
	AsString     string
}

// ParseIdentifier classifies a single segment.
func ParseIdentifier(s string) Identifier {
	if s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		if num, err := strconv.ParseUint(s, 10, 64); err == nil {
			return Identifier{IsDigitsOnly: true, AsNumber: num, AsString: s}
		}
	}
	return Identifier{AsString: s}
}

func (id Identifier) rank() (int, bool) {
	r, ok := qualifiers[strings.ToLower(id.AsString)]
	return r, ok
}

// Split breaks a revision into identifiers.
func Split(revision string) []Identifier {
	var out []Identifier
	var cur strings.Builder
	var curDigit bool
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, ParseIdentifier(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range revision {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
			continue
		case cur.Len() > 0 && unicode.IsDigit(r) != curDigit:
			flush()
		}
		curDigit = unicode.IsDigit(r)
		cur.WriteRune(r)
	}
	flush()
	return out
}

// CompareIdentifiers compares two identifiers in the same position.
func CompareIdentifiers(a, b Identifier) int {
	if a.IsDigitsOnly && b.IsDigitsOnly {
		return cmp.Compare(a.AsNumber, b.AsNumber)
	}
	if a.IsDigitsOnly != b.IsDigitsOnly {
		if a.IsDigitsOnly {
			return 1
		}
		return -1
	}
	ra, okA := a.rank()
	rb, okB := b.rank()
	if okA || okB {
		if !okA {
			ra = unknownQualifierRank
		}
		if !okB {
			rb = unknownQualifierRank
		}
		if c := cmp.Compare(ra, rb); c != 0 {
			return c
		}
	}
	return strings.Compare(a.AsString, b.AsString)
}

// trailingWeight is the sign an extra identifier contributes when the other
// revision has run out.
func trailingWeight(id Identifier) int {
	if id.IsDigitsOnly {
		if id.AsNumber == 0 {
			return 0
		}
		return 1
	}
	r, ok := id.rank()
	if !ok {
		return -1
	}
	return cmp.Compare(r, 0)
}

// Compare orders two revisions. Returns -1 if a < b, 0 if equal, 1 if a > b.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	ia, ib := Split(a), Split(b)
	n := max(len(ia), len(ib))
	for i := range n {
		switch {
		case i >= len(ia):
			if w := trailingWeight(ib[i]); w != 0 {
				return -w
			}
		case i >= len(ib):
			if w := trailingWeight(ia[i]); w != 0 {
				return w
			}
		default:
			if c := CompareIdentifiers(ia[i], ib[i]); c != 0 {
				return c
			}
		}
	}
	return strings.Compare(a, b)
}

// Sort sorts revisions in ascending order.
func Sort(revisions []string) {
	slices.SortStableFunc(revisions, Compare)
}

// Max returns the higher of two revisions.
func Max(a, b string) string {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}
