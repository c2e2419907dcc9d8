package stache

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stache-go/stache/loader"
)

func newEnv(sources map[string]string, cfg Config) *Environment {
	return NewEnvironment(loader.NewMap(sources), cfg)
}

func TestCompileAndSource(t *testing.T) {
	env := newEnv(map[string]string{
		"page.html": "<h1>{{ Title }}</h1>{{> card}}\n",
		"card":      "<p>{{ Body }}</p>\n",
	}, Config{})
	u, err := env.Compile("page.html")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !u.Escape {
		t.Error("html template does not escape")
	}
	want := "Lit \"<h1>\"\nExpr t.Title\nLit \"</h1><p>\"\nExpr t.Body\nLit \"</p>\"\n"
	if diff := cmp.Diff(want, u.Dump()); diff != "" {
		t.Errorf("HIR mismatch (-want +got):\n%s", diff)
	}
	out, err := u.Preview(map[string]any{"Title": "<x>", "Body": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "<h1>&lt;x&gt;</h1><p>b</p>" {
		t.Errorf("preview = %q", out)
	}
	src, err := u.Source("views", "Page")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"package views", "func (t *Page) Render(w io.Writer) error", "render.Escape(rw, t.Title)"} {
		if !strings.Contains(string(src), s) {
			t.Errorf("generated source lacks %q:\n%s", s, src)
		}
	}
}

func TestErrorAggregationOrder(t *testing.T) {
	env := newEnv(map[string]string{
		"main": "{{> a}}{{> b}}",
		"a":    strings.Repeat("x", 40) + "{{#if X}}",
		"b":    "ab{{ 1 + }}",
	}, Config{})
	_, err := env.Compile("main")
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("expected an error list, got %v", err)
	}
	var names []string
	for _, e := range list {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"b", "a"}, names); diff != "" {
		t.Errorf("error order mismatch (-want +got):\n%s", diff)
	}
	var first *Error
	if !errors.As(err, &first) || first.Name != "b" {
		t.Errorf("errors.As found %v", first)
	}
}

type countingLoader struct {
	loader.Loader
	loads map[string]int
}

func (l *countingLoader) Load(from, name string) (string, string, error) {
	p, src, err := l.Loader.Load(from, name)
	if err == nil {
		l.loads[p]++
	}
	return p, src, err
}

func TestPartialsLoadedOnce(t *testing.T) {
	l := &countingLoader{
		Loader: loader.NewMap(map[string]string{
			"x":      "{{> shared}}{{> shared}}",
			"y":      "{{> shared}}",
			"shared": "s",
		}),
		loads: map[string]int{},
	}
	env := NewEnvironment(l, Config{})
	for _, name := range []string{"x", "x", "y"} {
		if _, err := env.Compile(name); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(map[string]int{"x": 1, "y": 1, "shared": 1}, l.loads); diff != "" {
		t.Errorf("load counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		sources map[string]string
		cfg     Config
		kind    ErrorKind
	}{
		{"missing entry", map[string]string{}, Config{}, ErrTemplateNotFound},
		{"missing partial", map[string]string{"main": "{{> nope}}"}, Config{}, ErrTemplateNotFound},
		{"recursion", map[string]string{"main": "{{> main}}"}, Config{RecursionLimit: 3}, ErrRecursionLimit},
		{"unknown helper", map[string]string{"main": "{{#loop Items}}{{/loop}}"}, Config{}, ErrUnknownHelper},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEnv(tt.sources, tt.cfg).Compile("main")
			var serr *Error
			if !errors.As(err, &serr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if serr.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", serr.Kind, tt.kind)
			}
		})
	}
}

func TestRootStrippedInDiagnostics(t *testing.T) {
	env := newEnv(map[string]string{"views/bad": "{{ 1 + }}"}, Config{Root: "views"})
	_, err := env.Compile("views/bad")
	if err == nil || !strings.Contains(err.Error(), "(at bad line 1)") {
		t.Errorf("err = %v", err)
	}
}

func TestAddTemplate(t *testing.T) {
	env := NewEnvironment(nil, Config{Imports: []string{"strings"}})
	if err := env.AddTemplate("inline", "{{ strings.ToUpper(Name) }}"); err != nil {
		t.Fatal(err)
	}
	u, err := env.Compile("inline")
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Dump(); got != "Safe strings.ToUpper(t.Name)\n" {
		t.Errorf("dump = %q", got)
	}
	src, err := u.Source("p", "T")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(src), `"strings"`) {
		t.Errorf("generated source does not import strings:\n%s", src)
	}
	if err := env.AddTemplate("broken", "{{#if X}}"); err == nil {
		t.Error("expected parse error")
	}
}

func TestCompileDOM(t *testing.T) {
	env := newEnv(map[string]string{"p.html": "<p>{{ Title }}</p>"}, Config{DOM: true})
	u, err := env.Compile("p.html")
	if err != nil {
		t.Fatal(err)
	}
	if u.DOM == nil || u.DOM.Len() != 1 {
		t.Fatalf("dom program = %v", u.DOM)
	}
}

func TestDefaultAutoEscape(t *testing.T) {
	tests := map[string]AutoEscape{
		"a.html":     AutoEscapeHTML,
		"a.html.hbs": AutoEscapeHTML,
		"a.svg":      AutoEscapeHTML,
		"a.hbs":      AutoEscapeNone,
		"a.txt":      AutoEscapeNone,
		"a":          AutoEscapeNone,
	}
	for name, want := range tests {
		if got := DefaultAutoEscape(name); got != want {
			t.Errorf("DefaultAutoEscape(%q) = %d, want %d", name, got, want)
		}
	}
}
