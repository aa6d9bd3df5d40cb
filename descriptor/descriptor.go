// Package descriptor reads and writes module descriptors.
//
// Two formats are supported: a Starlark-syntax file (ivy.star) made of
// module(), configuration(), artifact(), dependency(), exclude() and
// conflict() calls, and an equivalent YAML document (ivy.yaml).
package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/eed3si9n/ivy/module"
)

// Format identifies a descriptor syntax.
type Format string

const (
	Starlark Format = "starlark"
	YAML     Format = "yaml"
)

// DefaultConfMapping is used for dependencies that declare no mapping.
const DefaultConfMapping = "*->*"

// ErrUnknownFormat is returned for file names no format is registered for.
var ErrUnknownFormat = errors.New("unknown descriptor format")

// Position is a location in a descriptor file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// ParseError is a descriptor error with position information.
type ParseError struct {
	Pos     Position
	Message string
	Wrapped error
}

func (e *ParseError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
	}
	if e.Pos.Filename != "" {
		return fmt.Sprintf("%s: %s", e.Pos.Filename, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Wrapped
}

// FormatFor returns the format of a file by its name.
func FormatFor(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".star", ".bzl", ".ivy":
		return Starlark, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
}

// ParseFile reads and parses a descriptor from disk.
func ParseFile(path string) (*module.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse parses data in the format implied by filename.
func Parse(filename string, data []byte) (*module.Descriptor, error) {
	format, err := FormatFor(filename)
	if err != nil {
		return nil, err
	}
	return ParseFormat(format, filename, data)
}

// ParseFormat parses data in the given format.
func ParseFormat(format Format, filename string, data []byte) (*module.Descriptor, error) {
	switch format {
	case Starlark:
		res, err := ParseStarlark(filename, data)
		if err != nil {
			return nil, err
		}
		if res.HasErrors() {
			errs := make([]error, len(res.Errors))
			for i, e := range res.Errors {
				errs[i] = e
			}
			return nil, errors.Join(errs...)
		}
		return res.Descriptor, nil
	case YAML:
		return ParseYAML(filename, data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Marshal serializes md in format.
func Marshal(format Format, md *module.Descriptor) ([]byte, error) {
	switch format {
	case Starlark:
		return MarshalStarlark(md), nil
	case YAML:
		return MarshalYAML(md)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// WriteFile serializes md to path in the format implied by its name.
func WriteFile(path string, md *module.Descriptor) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Marshal(format, md)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ParseConfMapping adds the mapping s to dd. s has the form
// "a,b->c;d->e"; a configuration without "->" maps to itself.
func ParseConfMapping(dd *module.DependencyDescriptor, s string) error {
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		owners, deps, ok := strings.Cut(part, "->")
		if !ok {
			deps = owners
		}
		ownerList := splitConfs(owners)
		depList := splitConfs(deps)
		if len(ownerList) == 0 || len(depList) == 0 {
			return fmt.Errorf("invalid configuration mapping %q", part)
		}
		for _, o := range ownerList {
			for _, d := range depList {
				dd.AddDependencyConfiguration(o, d)
			}
		}
	}
	return nil
}

func splitConfs(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// FormatConfMapping renders dd's mapping in the form ParseConfMapping
// reads, owner configurations sorted.
func FormatConfMapping(dd *module.DependencyDescriptor) string {
	parts := make([]string, 0, len(dd.Confs))
	for _, owner := range dd.ModuleConfigurations() {
		parts = append(parts, owner+"->"+strings.Join(dd.Confs[owner], ","))
	}
	return strings.Join(parts, ";")
}

// parseTime accepts RFC 3339 and the compact yyyyMMddHHmmss form.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("20060102150405", s)
}

// normalize fills the defaults shared by both formats: a "default"
// configuration when none is declared and one artifact named after the
// module when none is published.
func normalize(md *module.Descriptor) {
	if len(md.Configurations) == 0 {
		md.AddConfiguration(&module.Configuration{Name: "default", Visibility: module.Public})
	}
	for _, c := range md.Configurations {
		if c.Visibility == "" {
			c.Visibility = module.Public
		}
	}
	if len(md.Artifacts) == 0 {
		md.AddArtifact(&module.Artifact{
			Name:  md.ID.Name,
			Type:  "jar",
			Ext:   "jar",
			Confs: []string{"*"},
		})
	}
	for _, a := range md.Artifacts {
		a.Module = md.ResolvedRevisionID()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isVisibility(s string) bool {
	return slices.Contains([]string{"", string(module.Public), string(module.Private)}, s)
}
