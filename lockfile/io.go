package lockfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eed3si9n/ivy/module"
)

// filePermissions is the mode resolved-revisions files are written with.
const filePermissions = 0o644

// ReadFile reads and parses a JSON resolved-revisions file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resolved revisions: %w", err)
	}
	return Parse(data)
}

type jsonFile struct {
	Version int              `json:"version"`
	Root    string           `json:"root"`
	Modules map[string]Entry `json:"modules"`
}

// Parse parses JSON resolved-revisions data.
func Parse(data []byte) (*File, error) {
	var raw jsonFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse resolved revisions JSON: %w", err)
	}
	f := &File{Version: raw.Version, Modules: make(map[module.ID]Entry, len(raw.Modules))}
	if raw.Root != "" {
		root, err := module.ParseRevisionID(raw.Root)
		if err != nil {
			return nil, fmt.Errorf("invalid root: %w", err)
		}
		f.Root = root
	}
	for k, e := range raw.Modules {
		mid, err := module.ParseID(k)
		if err != nil {
			return nil, err
		}
		f.Modules[mid] = e
	}
	return f, nil
}

// WriteFile writes f as JSON to path, creating parent directories.
func (f *File) WriteFile(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermissions)
}

// WriteTo writes the JSON form of f to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	data, err := f.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Marshal serializes f to JSON with sorted module keys.
func (f *File) Marshal() ([]byte, error) {
	ordered := orderedFile{
		Version: f.Version,
		Modules: orderedEntries{f: f},
	}
	if !f.Root.IsZero() {
		ordered.Root = f.Root.String()
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ordered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type orderedFile struct {
	Version int            `json:"version"`
	Root    string         `json:"root,omitempty"`
	Modules orderedEntries `json:"modules"`
}

type orderedEntries struct {
	f *File
}

func (o orderedEntries) MarshalJSON() ([]byte, error) {
	ids := o.f.IDs()
	if len(ids) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mid := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(mid.String())
		valJSON, err := json.Marshal(o.f.Modules[mid])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteProperties writes one "organisation#name=revision status" line per
// module, sorted by module id.
func (f *File) WriteProperties(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if !f.Root.IsZero() {
		fmt.Fprintf(bw, "# %s\n", f.Root)
	}
	for _, mid := range f.IDs() {
		e := f.Modules[mid]
		value := e.Revision
		if e.Status != "" {
			value += " " + e.Status
		}
		fmt.Fprintf(bw, "%s=%s\n", mid, value)
	}
	return bw.Flush()
}

// ParseProperties reads the WriteProperties form. Blank lines and lines
// starting with '#' are skipped; the root is not recovered.
func ParseProperties(r io.Reader) (*File, error) {
	f := New(module.RevisionID{})
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", line)
		}
		mid, err := module.ParseID(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rev, status, _ := strings.Cut(strings.TrimSpace(value), " ")
		f.Set(mid, Entry{Revision: rev, Status: strings.TrimSpace(status)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Exists reports whether a file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
