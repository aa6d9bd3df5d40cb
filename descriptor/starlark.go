package descriptor

import (
	"fmt"
	"strings"
	"time"

	"github.com/bazelbuild/buildtools/build"
	"github.com/eed3si9n/ivy/internal/buildutil"
	"github.com/eed3si9n/ivy/module"
)

// ParseResult contains the parsed descriptor and any diagnostics.
type ParseResult struct {
	Descriptor *module.Descriptor
	Errors     []*ParseError
	Warnings   []*ParseError
}

// HasErrors returns true if there were parse errors.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

type parser struct {
	filename string
	md       *module.Descriptor
	errors   []*ParseError
	warnings []*ParseError
}

// ParseStarlark parses a Starlark-syntax descriptor. Syntax errors are
// returned as an error; semantic problems are collected in the result.
func ParseStarlark(filename string, content []byte) (*ParseResult, error) {
	p := &parser{filename: filename}
	return p.parse(content)
}

func (p *parser) parse(content []byte) (*ParseResult, error) {
	f, err := build.ParseModule(p.filename, content)
	if err != nil {
		return nil, &ParseError{
			Pos:     Position{Filename: p.filename},
			Message: fmt.Sprintf("syntax error: %v", err),
			Wrapped: err,
		}
	}

	var rest []*build.CallExpr
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			if _, comment := stmt.(*build.CommentBlock); !comment {
				p.addWarning(p.position(stmt), "ignoring statement that is not a call")
			}
			continue
		}
		if buildutil.IsFuncCall(call, "module") {
			p.parseModule(call)
			continue
		}
		rest = append(rest, call)
	}
	if p.md == nil {
		p.addError(Position{Filename: p.filename}, "missing module() declaration")
		return p.result(), nil
	}

	for _, call := range rest {
		pos := p.position(call)
		switch name := buildutil.FuncName(call); name {
		case "configuration":
			p.parseConfiguration(call, pos)
		case "artifact":
			p.parseArtifact(call, pos)
		case "dependency":
			p.parseDependency(call, pos)
		case "exclude":
			if rule, ok := p.parseExcludeRule(call, pos); ok {
				p.md.Excludes = append(p.md.Excludes, rule)
			}
		case "conflict":
			p.parseConflict(call, pos)
		default:
			p.addWarning(pos, "unknown function %q", name)
		}
	}

	if !p.hasErrors() {
		normalize(p.md)
		if err := p.md.Validate(); err != nil {
			p.addError(Position{Filename: p.filename}, "%v", err)
		}
	}
	return p.result(), nil
}

func (p *parser) result() *ParseResult {
	res := &ParseResult{Errors: p.errors, Warnings: p.warnings}
	if !p.hasErrors() {
		res.Descriptor = p.md
	}
	return res
}

func (p *parser) hasErrors() bool {
	return len(p.errors) > 0
}

func (p *parser) parseModule(call *build.CallExpr) {
	pos := p.position(call)
	if p.md != nil {
		p.addError(pos, "module() declared more than once")
		return
	}
	org := firstString(call, "organisation", "org")
	name := buildutil.String(call, "name")
	if org == "" || name == "" {
		p.addError(pos, "module: missing required 'organisation' or 'name' attribute")
		return
	}
	rev := firstString(call, "revision", "rev")
	id := module.NewRevisionIDWithExtra(org, name, rev, p.getDict(call, "extra"))
	md := module.NewDescriptor(id)
	if status := buildutil.String(call, "status"); status != "" {
		md.Status = status
	}
	if published := buildutil.String(call, "published"); published != "" {
		t, err := parseTime(published)
		if err != nil {
			p.addError(pos, "module: invalid published date %q", published)
		} else {
			md.Published = t
		}
	}
	p.md = md
}

func (p *parser) parseConfiguration(call *build.CallExpr, pos Position) {
	name := firstString(call, "name", "")
	if name == "" {
		p.addError(pos, "configuration: missing required 'name' attribute")
		return
	}
	visibility := buildutil.String(call, "visibility")
	if !isVisibility(visibility) {
		p.addError(pos, "configuration %s: invalid visibility %q", name, visibility)
		return
	}
	p.md.AddConfiguration(&module.Configuration{
		Name:         name,
		Description:  buildutil.String(call, "description"),
		Visibility:   module.Visibility(visibility),
		Extends:      buildutil.StringList(call, "extends"),
		Intransitive: !buildutil.Bool(call, "transitive", true),
	})
}

func (p *parser) parseArtifact(call *build.CallExpr, pos Position) {
	a := &module.Artifact{
		Name:  firstString(call, "name", ""),
		Type:  buildutil.String(call, "type"),
		Ext:   buildutil.String(call, "ext"),
		Confs: buildutil.StringList(call, "confs"),
		URL:   buildutil.String(call, "url"),
	}
	if a.Name == "" {
		a.Name = p.md.ID.Name
	}
	if a.Type == "" {
		a.Type = "jar"
	}
	if a.Ext == "" {
		a.Ext = a.Type
	}
	if len(a.Confs) == 0 {
		a.Confs = []string{"*"}
	}
	p.md.AddArtifact(a)
}

func (p *parser) parseDependency(call *build.CallExpr, pos Position) {
	org := firstString(call, "org", "organisation")
	if org == "" {
		org = p.md.ID.Organisation
	}
	name := firstString(call, "name", "")
	rev := firstString(call, "rev", "revision")
	if name == "" || rev == "" {
		p.addError(pos, "dependency: missing required 'name' or 'rev' attribute")
		return
	}
	dd := module.NewDependencyDescriptor(p.md.ID, module.NewRevisionID(org, name, rev))
	mapping := buildutil.String(call, "conf")
	if mapping == "" {
		mapping = DefaultConfMapping
	}
	if err := ParseConfMapping(dd, mapping); err != nil {
		p.addError(pos, "dependency %s#%s: %v", org, name, err)
		return
	}
	dd.Intransitive = !buildutil.Bool(call, "transitive", true)
	dd.Force = buildutil.Bool(call, "force", false)
	matcherName := buildutil.String(call, "exclude_matcher")
	for _, ex := range buildutil.StringList(call, "excludes") {
		exOrg, exModule, ok := strings.Cut(ex, "#")
		if !ok {
			exOrg, exModule = "*", ex
		}
		dd.Excludes = append(dd.Excludes, module.ExcludeRule{
			Organisation: exOrg,
			Module:       exModule,
			Matcher:      matcherName,
		})
	}
	p.md.AddDependency(dd)
}

func (p *parser) parseExcludeRule(call *build.CallExpr, pos Position) (module.ExcludeRule, bool) {
	rule := module.ExcludeRule{
		Organisation: firstString(call, "org", "organisation"),
		Module:       buildutil.String(call, "module"),
		Matcher:      buildutil.String(call, "matcher"),
		Confs:        buildutil.StringList(call, "confs"),
	}
	if rule.Organisation == "" && rule.Module == "" {
		p.addError(pos, "exclude: one of 'org' or 'module' is required")
		return rule, false
	}
	rule.Organisation = orAny(rule.Organisation)
	rule.Module = orAny(rule.Module)
	return rule, true
}

func (p *parser) parseConflict(call *build.CallExpr, pos Position) {
	rule := module.ConflictRule{
		Organisation: firstString(call, "org", "organisation"),
		Module:       buildutil.String(call, "module"),
		Matcher:      buildutil.String(call, "matcher"),
		Manager:      buildutil.String(call, "manager"),
	}
	if rule.Manager == "" {
		p.addError(pos, "conflict: missing required 'manager' attribute")
		return
	}
	rule.Organisation = orAny(rule.Organisation)
	rule.Module = orAny(rule.Module)
	p.md.ConflictRules = append(p.md.ConflictRules, rule)
}

// Helper methods for extracting attributes

func (p *parser) position(expr build.Expr) Position {
	start, _ := expr.Span()
	return Position{
		Filename: p.filename,
		Line:     start.Line,
		Column:   start.LineRune,
	}
}

func (p *parser) addError(pos Position, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) addWarning(pos Position, format string, args ...any) {
	p.warnings = append(p.warnings, &ParseError{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) getDict(call *build.CallExpr, name string) map[string]string {
	dict, ok := buildutil.Arg(call, name).(*build.DictExpr)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(dict.List))
	for _, kv := range dict.List {
		k, kok := kv.Key.(*build.StringExpr)
		v, vok := kv.Value.(*build.StringExpr)
		if !kok || !vok {
			p.addWarning(p.position(kv), "%s: ignoring non-string entry", name)
			continue
		}
		out[k.Value] = v.Value
	}
	return out
}

// firstString returns the first non-empty string among the named
// arguments. An empty alias name selects the first positional argument.
func firstString(call *build.CallExpr, name, alias string) string {
	if s := buildutil.String(call, name); s != "" {
		return s
	}
	return buildutil.String(call, alias)
}

// MarshalStarlark renders md as a Starlark-syntax descriptor.
func MarshalStarlark(md *module.Descriptor) []byte {
	id := md.ResolvedRevisionID()
	moduleArgs := []buildutil.Attr{
		{Name: "organisation", Value: id.Organisation},
		{Name: "name", Value: id.Name},
		{Name: "revision", Value: id.Revision},
		{Name: "status", Value: md.Status},
	}
	if !md.Published.IsZero() {
		moduleArgs = append(moduleArgs, buildutil.Attr{Name: "published", Value: md.Published.UTC().Format(time.RFC3339)})
	}
	call := buildutil.Call("module", moduleArgs...)
	if extra := id.Extra(); len(extra) > 0 {
		dict := &build.DictExpr{}
		for _, k := range sortedKeys(extra) {
			dict.List = append(dict.List, &build.KeyValueExpr{
				Key:   &build.StringExpr{Value: k},
				Value: &build.StringExpr{Value: extra[k]},
			})
		}
		call.List = append(call.List, &build.AssignExpr{LHS: &build.Ident{Name: "extra"}, Op: "=", RHS: dict})
	}
	stmts := []build.Expr{call}

	for _, c := range md.Configurations {
		args := []buildutil.Attr{
			{Name: "name", Value: c.Name},
			{Name: "description", Value: c.Description},
			{Name: "extends", Value: c.Extends},
		}
		if c.Visibility == module.Private {
			args = append(args, buildutil.Attr{Name: "visibility", Value: string(c.Visibility)})
		}
		if c.Intransitive {
			args = append(args, buildutil.Attr{Name: "transitive", Value: false})
		}
		stmts = append(stmts, buildutil.Call("configuration", args...))
	}
	for _, a := range md.Artifacts {
		stmts = append(stmts, buildutil.Call("artifact",
			buildutil.Attr{Name: "name", Value: a.Name},
			buildutil.Attr{Name: "type", Value: a.Type},
			buildutil.Attr{Name: "ext", Value: a.Ext},
			buildutil.Attr{Name: "confs", Value: a.Confs},
			buildutil.Attr{Name: "url", Value: a.URL},
		))
	}
	for _, dd := range md.Dependencies {
		args := []buildutil.Attr{
			{Name: "org", Value: dd.Dependency.Organisation},
			{Name: "name", Value: dd.Dependency.Name},
			{Name: "rev", Value: dd.Dependency.Revision},
			{Name: "conf", Value: FormatConfMapping(dd)},
		}
		if dd.Intransitive {
			args = append(args, buildutil.Attr{Name: "transitive", Value: false})
		}
		if dd.Force {
			args = append(args, buildutil.Attr{Name: "force", Value: true})
		}
		if len(dd.Excludes) > 0 {
			excludes := make([]string, len(dd.Excludes))
			for i, ex := range dd.Excludes {
				excludes[i] = ex.Organisation + "#" + ex.Module
			}
			args = append(args,
				buildutil.Attr{Name: "excludes", Value: excludes},
				buildutil.Attr{Name: "exclude_matcher", Value: dd.Excludes[0].Matcher},
			)
		}
		stmts = append(stmts, buildutil.Call("dependency", args...))
	}
	for _, ex := range md.Excludes {
		stmts = append(stmts, buildutil.Call("exclude",
			buildutil.Attr{Name: "org", Value: ex.Organisation},
			buildutil.Attr{Name: "module", Value: ex.Module},
			buildutil.Attr{Name: "matcher", Value: ex.Matcher},
			buildutil.Attr{Name: "confs", Value: ex.Confs},
		))
	}
	for _, cr := range md.ConflictRules {
		stmts = append(stmts, buildutil.Call("conflict",
			buildutil.Attr{Name: "org", Value: cr.Organisation},
			buildutil.Attr{Name: "module", Value: cr.Module},
			buildutil.Attr{Name: "matcher", Value: cr.Matcher},
			buildutil.Attr{Name: "manager", Value: cr.Manager},
		))
	}
	return build.Format(&build.File{Type: build.TypeDefault, Stmt: stmts})
}
