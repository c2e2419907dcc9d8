// Package loader finds template and partial sources.
//
// A Loader maps the name used in a template, as seen from the template
// that uses it, to a canonical path and the source text. The canonical
// path is the cache key for compiled templates and the name reported in
// diagnostics.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/stache-go/stache/lexer"
)

// ErrNotFound is returned, wrapped, for names that resolve to nothing.
var ErrNotFound = errors.New("no such template")

// Loader loads the template called name from the template at path from.
// from is empty for the entry template.
type Loader interface {
	Load(from, name string) (path, src string, err error)
}

// Func adapts a function to Loader.
type Func func(from, name string) (string, string, error)

// Load calls f.
func (f Func) Load(from, name string) (string, string, error) { return f(from, name) }

// Resolver turns template names into canonical paths.
//
// An alias replaces the whole name. Names starting with ./ or ../ are
// relative to the directory of the template that uses them, everything
// else is relative to the root. A name without an extension gets Ext.
type Resolver struct {
	Aliases map[string]string
	Ext     string
}

// Resolve returns the canonical path of name used from from.
func (r Resolver) Resolve(from, name string) (string, error) {
	if alias, ok := r.Aliases[name]; ok {
		name = alias
	}
	var p string
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		p = path.Join(path.Dir(from), name)
	} else {
		p = path.Clean(strings.TrimPrefix(name, "/"))
	}
	if r.Ext != "" && path.Ext(p) == "" {
		p += r.Ext
	}
	if !fs.ValidPath(p) || p == "." {
		return "", fmt.Errorf("%w: %q escapes the template root", ErrNotFound, name)
	}
	return p, nil
}

// clean strips trailing whitespace from a loaded source.
func clean(src string) string {
	return lexer.TrimRight(src)
}

// FS loads templates from a file system.
type FS struct {
	Resolver
	fsys fs.FS
}

// NewFS returns a loader reading from fsys with the default extension
// ".hbs".
func NewFS(fsys fs.FS) *FS {
	return &FS{Resolver: Resolver{Ext: ".hbs"}, fsys: fsys}
}

// Load implements Loader.
func (l *FS) Load(from, name string) (string, string, error) {
	p, err := l.Resolve(from, name)
	if err != nil {
		return "", "", err
	}
	data, err := fs.ReadFile(l.fsys, p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return "", "", err
	}
	return p, clean(string(data)), nil
}

// Map loads templates from memory, keyed by canonical path.
type Map struct {
	Resolver
	Sources map[string]string
}

// NewMap returns a loader over sources without a default extension.
func NewMap(sources map[string]string) *Map {
	return &Map{Sources: sources}
}

// Load implements Loader.
func (l *Map) Load(from, name string) (string, string, error) {
	p, err := l.Resolve(from, name)
	if err != nil {
		return "", "", err
	}
	src, ok := l.Sources[p]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return p, clean(src), nil
}
