package codegen

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stache-go/stache/hir"
	"github.com/stache-go/stache/lower"
	sparser "github.com/stache-go/stache/parser"
	"github.com/stache-go/stache/render"
)

// dataSource declares the receiver the generated methods are checked
// against.
const dataSource = `package views

type Item struct {
	Name string
	Done bool
	Tags []string
}

type User struct{ Name string }

type Point struct{ X, Y int }

type Page struct {
	Title string
	Count int
	Items []Item
	User  *User
	At    Point
	Meta  map[string]int
}
`

// htmlSource stands in for golang.org/x/net/html, of which the render
// package only calls EscapeString.
const htmlSource = `package html

func EscapeString(s string) string { return s }
`

// checker type-checks generated files. The render package is checked from
// its source in this module and the standard library from GOROOT.
type checker struct {
	fset *token.FileSet
	std  types.ImporterFrom
	pkgs map[string]*types.Package
}

func newChecker() *checker {
	fset := token.NewFileSet()
	return &checker{
		fset: fset,
		std:  importer.ForCompiler(fset, "source", nil).(types.ImporterFrom),
		pkgs: map[string]*types.Package{},
	}
}

func (c *checker) Import(path string) (*types.Package, error) {
	return c.ImportFrom(path, "", 0)
}

func (c *checker) ImportFrom(path, dir string, mode types.ImportMode) (*types.Package, error) {
	if pkg := c.pkgs[path]; pkg != nil {
		return pkg, nil
	}
	var files []*ast.File
	switch path {
	case "golang.org/x/net/html":
		f, err := parser.ParseFile(c.fset, "html.go", htmlSource, 0)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	case RenderImport:
		names, err := filepath.Glob(filepath.Join("..", "render", "*.go"))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if strings.HasSuffix(name, "_test.go") {
				continue
			}
			src, err := os.ReadFile(name)
			if err != nil {
				return nil, err
			}
			f, err := parser.ParseFile(c.fset, name, src, 0)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	default:
		return c.std.ImportFrom(path, dir, mode)
	}
	pkg, err := c.check(path, files)
	if err != nil {
		return nil, err
	}
	c.pkgs[path] = pkg
	return pkg, nil
}

func (c *checker) check(path string, files []*ast.File) (*types.Package, error) {
	conf := types.Config{Importer: c}
	return conf.Check(path, c.fset, files, nil)
}

func lowerWith(t *testing.T, src string, noFold bool, imports []string) []hir.Node {
	t.Helper()
	tmpl, err := sparser.Parse("test.html", src, nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	nodes, err := lower.Lower(tmpl, lower.Config{Escape: render.EscapeString, NoFold: noFold, Imports: imports})
	if err != nil {
		t.Fatalf("lower error: %v", err)
	}
	return nodes
}

func TestGeneratedCodeTypeChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("type-checks the standard library from source")
	}
	tests := []struct {
		name    string
		src     string
		imports []string
	}{
		{"text", "plain text", nil},
		{"each", "<h1>{{ Title }}</h1><ul>{{#each Items}}<li>{{ index }}:{{ Name }}{{#if first}}*{{/if}}{{#each Tags}}[{{ this }}]{{/each}}</li>{{else}}<li>none</li>{{/each}}</ul>", nil},
		{"if chain", "{{ let n = Count }}{{#if n > 2}}big{{else if n > 0}}small{{else}}none{{/if}}", nil},
		{"unless", "{{#unless Items[0].Done}}todo{{/unless}}", nil},
		{"with pointer", "{{#with User}}{{ Name }}{{else}}anon{{/with}}", nil},
		{"with struct", "{{#with At}}{{ X }},{{ Y }}{{else}}origin{{/with}}", nil},
		{"let string each", `{{ let s = "hé" }}{{#each s}}[{{ index0 }}={{ this }}]{{/each}}`, nil},
		{"literal string each", `{{#each "ab"}}{{ this }},{{/each}}`, nil},
		{"slice literal each", `{{ let xs = []string{"x", "y"} }}{{#each xs}}{{ this }}{{#if first}}*{{/if}}{{/each}}`, nil},
		{"map each", "{{#each Meta}}{{ index0 }}={{ this }};{{/each}}", nil},
		{"json", "{{ @json Items }}{{ @json_pretty Meta }}", nil},
		{"imports", "{{{ strings.ToUpper(Title) }}}", []string{"strings"}},
	}
	c := newChecker()
	data, err := parser.ParseFile(c.fset, "data.go", dataSource, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		for _, noFold := range []bool{false, true} {
			name := tt.name
			if noFold {
				name += "/nofold"
			}
			t.Run(name, func(t *testing.T) {
				nodes := lowerWith(t, tt.src, noFold, tt.imports)
				out, err := Generate(nodes, Options{Package: "views", Type: "Page", Escape: true, Imports: tt.imports})
				if err != nil {
					t.Fatal(err)
				}
				f, err := parser.ParseFile(c.fset, "page.go", out, 0)
				if err != nil {
					t.Fatalf("generated file does not parse: %v\n%s", err, out)
				}
				if _, err := c.check("example.com/views", []*ast.File{data, f}); err != nil {
					t.Errorf("generated file does not type-check: %v\n%s", err, out)
				}
			})
		}
	}
}
