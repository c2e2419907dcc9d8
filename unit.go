package stache

import (
	"github.com/stache-go/stache/codegen"
	"github.com/stache-go/stache/dom"
	"github.com/stache-go/stache/eval"
	"github.com/stache-go/stache/hir"
	"github.com/stache-go/stache/render"
	"github.com/stache-go/stache/value"
)

// Unit is a compiled template.
type Unit struct {
	// Path is the canonical path of the template.
	Path string
	// Text is the template source.
	Text string
	// Nodes is the lowered template.
	Nodes []hir.Node
	// Escape reports whether {{ }} output is HTML-escaped.
	Escape bool
	// Receiver is the receiver name the HIR uses for the template data.
	Receiver string
	// Imports are the import paths expressions may use.
	Imports []string
	// DOM is set when the environment builds DOM programs.
	DOM *dom.Program
}

// Source returns the Go file declaring the Render method of typ in
// package pkg.
func (u *Unit) Source(pkg, typ string) ([]byte, error) {
	return codegen.Generate(u.Nodes, codegen.Options{
		Package:  pkg,
		Type:     typ,
		Receiver: u.Receiver,
		Escape:   u.Escape,
		Imports:  u.Imports,
		Source:   u.Path,
	})
}

// Dump returns the HIR listing of the template.
func (u *Unit) Dump() string {
	return hir.Dump(u.Nodes)
}

// Preview renders the template for data with the HIR interpreter. It
// supports the constant subset of Go the folder understands, which covers
// field access, indexing, arithmetic and comparisons over plain data.
func (u *Unit) Preview(data any) (string, error) {
	var escape func(string) string
	if u.Escape {
		escape = render.EscapeString
	}
	return hir.Render(u.Nodes, eval.Vars{u.Receiver: value.FromGo(data)}, escape)
}
