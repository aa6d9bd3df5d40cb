package repository

import (
	"regexp"
	"strings"

	"github.com/eed3si9n/ivy/module"
)

// Pattern tokens.
const (
	TokenOrganisation = "organisation"
	TokenOrgPath      = "orgPath"
	TokenModule       = "module"
	TokenRevision     = "revision"
	TokenArtifact     = "artifact"
	TokenType         = "type"
	TokenExt          = "ext"
	TokenConf         = "conf"
)

// segment is literal text or a [token].
type segment struct {
	text  string
	token bool
}

// part is a run of segments; an optional part is written in parentheses
// and dropped when any of its tokens has no value.
type part struct {
	segments []segment
	optional bool
}

func parsePattern(pattern string) []part {
	var parts []part
	cur := part{}
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			cur.segments = append(cur.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}
	flushPart := func(optional bool) {
		flushLit()
		if len(cur.segments) > 0 {
			cur.optional = optional
			parts = append(parts, cur)
		}
		cur = part{}
	}
	inOptional := false
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				lit.WriteByte(c)
				continue
			}
			flushLit()
			cur.segments = append(cur.segments, segment{text: pattern[i+1 : i+end], token: true})
			i += end
		case c == '(' && !inOptional:
			flushPart(false)
			inOptional = true
		case c == ')' && inOptional:
			flushPart(true)
			inOptional = false
		default:
			lit.WriteByte(c)
		}
	}
	flushPart(inOptional)
	return parts
}

// Substitute replaces the [token]s of pattern with values from tokens.
// Optional parts in parentheses are left out when one of their tokens is
// empty; a missing token outside an optional part becomes empty.
func Substitute(pattern string, tokens map[string]string) string {
	var b strings.Builder
	for _, p := range parsePattern(pattern) {
		if p.optional && !p.complete(tokens) {
			continue
		}
		for _, s := range p.segments {
			if s.token {
				b.WriteString(tokens[s.text])
			} else {
				b.WriteString(s.text)
			}
		}
	}
	return b.String()
}

func (p part) complete(tokens map[string]string) bool {
	for _, s := range p.segments {
		if s.token && tokens[s.text] == "" {
			return false
		}
	}
	return true
}

// DescriptorTokens returns the pattern tokens of a revision id, including
// its extra attributes.
func DescriptorTokens(id module.RevisionID) map[string]string {
	tokens := make(map[string]string)
	for k, v := range id.Extra() {
		tokens[k] = v
	}
	tokens[TokenOrganisation] = id.Organisation
	tokens[TokenOrgPath] = strings.ReplaceAll(id.Organisation, ".", "/")
	tokens[TokenModule] = id.Name
	tokens[TokenRevision] = id.Revision
	return tokens
}

// ArtifactTokens returns the pattern tokens of an artifact. conf may be
// empty.
func ArtifactTokens(a *module.Artifact, conf string) map[string]string {
	tokens := DescriptorTokens(a.Module)
	tokens[TokenArtifact] = a.Name
	tokens[TokenType] = a.Type
	tokens[TokenExt] = a.Ext
	tokens[TokenConf] = conf
	return tokens
}

// tokenMatcher extracts the value of one token from substituted paths.
type tokenMatcher struct {
	glob string
	re   *regexp.Regexp
}

// newTokenMatcher builds a matcher for target in pattern, with fixed
// tokens substituted. Optional parts are left out. Every other token
// matches any run of characters within one path element.
func newTokenMatcher(pattern, target string, fixed map[string]string) (*tokenMatcher, bool) {
	var glob, re strings.Builder
	re.WriteString("^")
	found := false
	for _, p := range parsePattern(pattern) {
		if p.optional {
			continue
		}
		for _, s := range p.segments {
			switch {
			case !s.token:
				glob.WriteString(globEscape(s.text))
				re.WriteString(regexp.QuoteMeta(s.text))
			case fixed[s.text] != "":
				glob.WriteString(globEscape(fixed[s.text]))
				re.WriteString(regexp.QuoteMeta(fixed[s.text]))
			case s.text == target && !found:
				found = true
				glob.WriteString("*")
				re.WriteString("([^/]+)")
			default:
				glob.WriteString("*")
				re.WriteString("[^/]+")
			}
		}
	}
	re.WriteString("$")
	if !found {
		return nil, false
	}
	return &tokenMatcher{glob: glob.String(), re: regexp.MustCompile(re.String())}, true
}

// value returns the target token's value in path, which uses forward
// slashes.
func (m *tokenMatcher) value(path string) (string, bool) {
	sub := m.re.FindStringSubmatch(path)
	if sub == nil {
		return "", false
	}
	return sub[1], true
}

// dir splits the glob into its fixed leading directory and a last
// element holding the wildcards. ok is false when a wildcard appears
// before the last element.
func (m *tokenMatcher) dir() (prefix, elem string, ok bool) {
	elems := strings.Split(m.glob, "/")
	for i, e := range elems[:len(elems)-1] {
		if strings.ContainsAny(e, "*?[") {
			return strings.Join(elems[:i], "/"), e, false
		}
	}
	return strings.Join(elems[:len(elems)-1], "/"), elems[len(elems)-1], true
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

// truncatePattern cuts pattern after the first path element holding
// target, for listing the values of target as directory entries.
func truncatePattern(pattern, target string) (string, bool) {
	elems := strings.Split(pattern, "/")
	for i, e := range elems {
		if strings.Contains(e, "["+target+"]") {
			return strings.Join(elems[:i+1], "/"), true
		}
	}
	return "", false
}
