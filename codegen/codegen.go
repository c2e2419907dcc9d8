// Package codegen prints HIR as a Go Render method.
//
// The generated method wraps its writer in a render.Writer, writes literal
// text with WriteString and expression values with render.Escape,
// render.Raw or render.JSON, and returns the first write error. Each and
// IfElse become range loops and if chains over the same expressions, so the
// output type-checks against the template's data type like hand-written
// code would.
package codegen

import (
	"fmt"
	"go/ast"
	"go/format"
	"sort"
	"strconv"
	"strings"

	"github.com/stache-go/stache/hir"
)

// RenderImport is the import path of the runtime helpers.
const RenderImport = "github.com/stache-go/stache/render"

// Options configures the generated file.
type Options struct {
	// Package is the package clause of the file.
	Package string
	// Type is the receiver type; the method is declared on *Type.
	Type string
	// Receiver is the receiver name the HIR uses, "t" when empty.
	Receiver string
	// Escape selects render.Escape for Expr nodes instead of render.Raw.
	Escape bool
	// Imports are extra import paths referenced by template expressions.
	Imports []string
	// Source names the template in the generated header.
	Source string
}

// Generate returns the gofmt-ed source of a file declaring the Render
// method for nodes.
func Generate(nodes []hir.Node, opts Options) ([]byte, error) {
	if opts.Package == "" || opts.Type == "" {
		return nil, fmt.Errorf("codegen: package and type names are required")
	}
	if opts.Receiver == "" {
		opts.Receiver = "t"
	}
	g := &generator{opts: opts}
	g.file(nodes)
	src, err := format.Source([]byte(g.b.String()))
	if err != nil {
		return nil, fmt.Errorf("codegen: formatting %s: %w", opts.Type, err)
	}
	return src, nil
}

// Method returns the body of the Render method without the file around it,
// for previews.
func Method(nodes []hir.Node, opts Options) string {
	if opts.Receiver == "" {
		opts.Receiver = "t"
	}
	g := &generator{opts: opts}
	g.nodes(nodes)
	return g.b.String()
}

type generator struct {
	opts  Options
	b     strings.Builder
	depth int
	empty int
}

func (g *generator) line(format string, args ...any) {
	g.b.WriteString(strings.Repeat("\t", g.depth))
	fmt.Fprintf(&g.b, format, args...)
	g.b.WriteByte('\n')
}

func (g *generator) file(nodes []hir.Node) {
	header := "// Code generated by stache. DO NOT EDIT."
	if g.opts.Source != "" {
		header = "// Code generated by stache from " + g.opts.Source + ". DO NOT EDIT."
	}
	g.line("%s", header)
	g.line("")
	g.line("package %s", g.opts.Package)
	g.line("")
	g.line("import (")
	g.depth++
	std, other := imports(g.opts.Imports)
	for _, path := range std {
		g.line("%s", strconv.Quote(path))
	}
	g.line("")
	for _, path := range other {
		g.line("%s", strconv.Quote(path))
	}
	g.depth--
	g.line(")")
	g.line("")
	g.line("// Render writes the template to w.")
	g.line("func (%s *%s) Render(w io.Writer) error {", g.opts.Receiver, g.opts.Type)
	g.depth++
	g.line("rw := render.NewWriter(w)")
	g.nodes(nodes)
	g.line("return rw.Err()")
	g.depth--
	g.line("}")
}

// imports returns the deduplicated import paths including io and the
// render package, split into standard library and other paths.
func imports(extra []string) (std, other []string) {
	seen := map[string]bool{}
	for _, path := range append([]string{"io", RenderImport}, extra...) {
		if seen[path] {
			continue
		}
		seen[path] = true
		if first, _, _ := strings.Cut(path, "/"); strings.Contains(first, ".") {
			other = append(other, path)
		} else {
			std = append(std, path)
		}
	}
	sort.Strings(std)
	sort.Strings(other)
	return std, other
}

func (g *generator) nodes(nodes []hir.Node) {
	for _, n := range nodes {
		g.node(n)
	}
}

func (g *generator) node(n hir.Node) {
	switch n := n.(type) {
	case *hir.Lit:
		g.line("rw.WriteString(%s)", strconv.Quote(n.Text))
	case *hir.Expr:
		if g.opts.Escape {
			g.line("render.Escape(rw, %s)", hir.ExprString(n.X))
		} else {
			g.line("render.Raw(rw, %s)", hir.ExprString(n.X))
		}
	case *hir.Safe:
		g.line("render.Raw(rw, %s)", hir.ExprString(n.X))
	case *hir.JSON:
		fn := "JSON"
		if n.Pretty {
			fn = "JSONPretty"
		}
		g.line("render.%s(rw, %s)", fn, hir.ExprString(n.X))
	case *hir.Local:
		g.local(n)
	case *hir.Each:
		g.each(n)
	case *hir.IfElse:
		g.ifElse(n)
	default:
		panic(fmt.Sprintf("internal error: unexpected HIR node %T", n))
	}
}

// local declares the names and marks them used, since the rest of the
// body may not read them.
func (g *generator) local(n *hir.Local) {
	names := make([]string, len(n.Names))
	for i, id := range n.Names {
		names[i] = id.Name
	}
	g.line("%s := %s", strings.Join(names, ", "), hir.ExprString(n.X))
	for _, name := range names {
		if name != "_" {
			g.line("_ = %s", name)
		}
	}
}

func rangeVars(index, elem *ast.Ident) string {
	switch {
	case index == nil && elem == nil:
		return ""
	case elem == nil:
		return index.Name + " := "
	case index == nil:
		return "_, " + elem.Name + " := "
	}
	return index.Name + ", " + elem.Name + " := "
}

func (g *generator) each(n *hir.Each) {
	head := fmt.Sprintf("for %srange %s {", rangeVars(n.Index, n.Elem), hir.ExprString(n.Iter))
	if n.Else == nil {
		g.line("%s", head)
		g.depth++
		g.nodes(n.Body)
		g.depth--
		g.line("}")
		return
	}
	g.empty++
	flag := "empty" + strconv.Itoa(g.empty) + "_"
	g.line("%s := true", flag)
	g.line("%s", head)
	g.depth++
	g.line("%s = false", flag)
	g.nodes(n.Body)
	g.depth--
	g.line("}")
	g.line("if %s {", flag)
	g.depth++
	g.nodes(n.Else)
	g.depth--
	g.line("}")
}

func (g *generator) ifElse(n *hir.IfElse) {
	for i, br := range n.Branches {
		if i == 0 {
			g.line("if %s {", hir.ExprString(br.Cond))
		} else {
			g.line("} else if %s {", hir.ExprString(br.Cond))
		}
		g.depth++
		g.nodes(br.Body)
		g.depth--
	}
	if n.Else != nil {
		g.line("} else {")
		g.depth++
		g.nodes(n.Else)
		g.depth--
	}
	g.line("}")
}
