package stache

import (
	"errors"
	"fmt"
	"go/token"
	"path"
	"strings"
	"sync"

	"github.com/stache-go/stache/dom"
	"github.com/stache-go/stache/loader"
	"github.com/stache-go/stache/lower"
	"github.com/stache-go/stache/parser"
	"github.com/stache-go/stache/render"
)

// AutoEscape determines the auto-escaping strategy.
type AutoEscape int

const (
	AutoEscapeNone AutoEscape = iota
	AutoEscapeHTML
)

// AutoEscapeFunc determines auto-escaping based on template path.
type AutoEscapeFunc func(name string) AutoEscape

// DefaultAutoEscape escapes markup templates. A trailing .hbs is ignored,
// so page.html.hbs escapes.
func DefaultAutoEscape(name string) AutoEscape {
	switch path.Ext(strings.TrimSuffix(name, ".hbs")) {
	case ".html", ".htm", ".xml", ".svg":
		return AutoEscapeHTML
	}
	return AutoEscapeNone
}

// DefaultRecursionLimit is the partial nesting limit when none is set.
const DefaultRecursionLimit = 128

// Config controls compilation.
type Config struct {
	// Receiver is the receiver name of the generated method, "t" when
	// empty.
	Receiver string
	// AutoEscape picks escaping per template, DefaultAutoEscape when nil.
	AutoEscape AutoEscapeFunc
	// RecursionLimit bounds partial nesting.
	RecursionLimit int
	// NoFold disables constant folding and loop unrolling.
	NoFold bool
	// Imports are import paths of packages template expressions may use.
	Imports []string
	// Root is stripped from template paths in diagnostics.
	Root string
	// DOM also builds the DOM program of every compiled template.
	DOM bool
}

// Environment compiles templates from a loader. Parsed templates are
// cached by canonical path, so a partial shared by many templates is
// loaded and parsed once. An Environment is safe for concurrent use.
type Environment struct {
	cfg    Config
	loader loader.Loader
	fset   *token.FileSet

	mu        sync.Mutex
	templates map[string]*compiledTemplate
}

type compiledTemplate struct {
	path string
	tmpl *parser.Template
	err  error
}

// NewEnvironment creates an environment reading templates from l.
func NewEnvironment(l loader.Loader, cfg Config) *Environment {
	if cfg.Receiver == "" {
		cfg.Receiver = "t"
	}
	if cfg.AutoEscape == nil {
		cfg.AutoEscape = DefaultAutoEscape
	}
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = DefaultRecursionLimit
	}
	return &Environment{
		cfg:       cfg,
		loader:    l,
		fset:      token.NewFileSet(),
		templates: map[string]*compiledTemplate{},
	}
}

// Config returns the configuration with defaults applied.
func (e *Environment) Config() Config { return e.cfg }

// AddTemplate parses source and caches it under path, in front of the
// loader.
func (e *Environment) AddTemplate(path, source string) error {
	ct := e.parse(path, source)
	e.mu.Lock()
	e.templates[path] = ct
	e.mu.Unlock()
	return ct.err
}

func (e *Environment) parse(path, source string) *compiledTemplate {
	tmpl, err := parser.Parse(path, source, e.fset)
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			serr.WithRoot(e.cfg.Root)
		}
	}
	return &compiledTemplate{path: path, tmpl: tmpl, err: err}
}

// load returns the template name used from from. Templates added with
// AddTemplate are found by their exact name.
func (e *Environment) load(from, name string) (*compiledTemplate, error) {
	if !strings.HasPrefix(name, "./") && !strings.HasPrefix(name, "../") {
		e.mu.Lock()
		ct, ok := e.templates[name]
		e.mu.Unlock()
		if ok {
			return ct, nil
		}
	}
	if e.loader == nil {
		return nil, fmt.Errorf("%w: %s", loader.ErrNotFound, name)
	}
	p, src, err := e.loader.Load(from, name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ct, ok := e.templates[p]; ok {
		return ct, nil
	}
	ct := e.parse(p, src)
	e.templates[p] = ct
	return ct, nil
}

// parseAll loads name and every partial reachable from it and returns the
// entry template. Parse errors of all of them are collected; partials that
// cannot be loaded are left to lowering, which reports them where they are
// used.
func (e *Environment) parseAll(name string) (*compiledTemplate, error) {
	entry, err := e.load("", name)
	if err != nil {
		return nil, NewError(ErrTemplateNotFound, err.Error()).WithRoot(e.cfg.Root)
	}
	var (
		errs ErrorList
		seen = map[string]bool{}
		walk func(ct *compiledTemplate)
	)
	walk = func(ct *compiledTemplate) {
		if seen[ct.path] {
			return
		}
		seen[ct.path] = true
		if ct.err != nil {
			var serr *Error
			if errors.As(ct.err, &serr) {
				errs.Add(serr)
			} else {
				errs.Add(NewError(ErrSyntax, ct.err.Error()).WithName(ct.path))
			}
			return
		}
		for _, p := range ct.tmpl.Partials() {
			if sub, err := e.load(ct.path, p); err == nil {
				walk(sub)
			}
		}
	}
	walk(entry)
	errs.Sort()
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return entry, nil
}

// Compile parses, lowers and optionally DOM-lowers the template name.
// Parse errors across the template and its partials come back together as
// an ErrorList ordered by position.
func (e *Environment) Compile(name string) (*Unit, error) {
	entry, err := e.parseAll(name)
	if err != nil {
		return nil, err
	}
	escape := e.cfg.AutoEscape(entry.path) == AutoEscapeHTML
	cfg := lower.Config{
		Receiver:       e.cfg.Receiver,
		NoFold:         e.cfg.NoFold,
		RecursionLimit: e.cfg.RecursionLimit,
		Imports:        importNames(e.cfg.Imports),
		Partial: func(from, name string) (*parser.Template, error) {
			ct, err := e.load(from, name)
			if err != nil {
				return nil, err
			}
			if ct.err != nil {
				return nil, ct.err
			}
			return ct.tmpl, nil
		},
	}
	if escape {
		cfg.Escape = render.EscapeString
	}
	nodes, err := lower.Lower(entry.tmpl, cfg)
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			serr.WithRoot(e.cfg.Root)
		}
		return nil, err
	}
	u := &Unit{
		Path:     entry.path,
		Text:     entry.tmpl.Source,
		Nodes:    nodes,
		Escape:   escape,
		Receiver: e.cfg.Receiver,
		Imports:  e.cfg.Imports,
	}
	if e.cfg.DOM {
		if u.DOM, err = dom.Build(nodes, e.cfg.Receiver); err != nil {
			return nil, NewError(ErrSyntax, err.Error()).WithName(entry.path).WithRoot(e.cfg.Root)
		}
	}
	return u, nil
}

// importNames returns the package names of import paths.
func importNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = path.Base(p)
	}
	return out
}
