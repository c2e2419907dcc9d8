package parser

import (
	"go/ast"

	"github.com/stache-go/stache/syntax"
)

// Span represents a location range in source code.
type Span = syntax.Span

// Ws holds the trim markers of a tag: Ws[0] is a `~` right after the opening
// delimiter, Ws[1] a `~` right before the closing one.
type Ws [2]bool

// Node is the interface implemented by all parse tree nodes.
type Node interface {
	node()
	Span() Span
}

// Lit is literal template text. Whitespace fringes are kept apart from the
// text so that trimming only ever removes whitespace.
type Lit struct {
	Lead  string
	Text  string
	Trail string
	span  Span
}

func (l *Lit) node()      {}
func (l *Lit) Span() Span { return l.span }

// String returns the literal with its fringes.
func (l *Lit) String() string { return l.Lead + l.Text + l.Trail }

// Expr outputs an escaped expression.
type Expr struct {
	Ws   Ws
	X    ast.Expr
	span Span
}

func (e *Expr) node()      {}
func (e *Expr) Span() Span { return e.span }

// Safe outputs an expression without escaping.
type Safe struct {
	Ws   Ws
	X    ast.Expr
	span Span
}

func (s *Safe) node()      {}
func (s *Safe) Span() Span { return s.span }

// Local binds names for the following siblings: {{ let a, b = expr }}.
type Local struct {
	Ws    Ws
	Names []*ast.Ident
	X     ast.Expr
	span  Span
}

func (l *Local) node()      {}
func (l *Local) Span() Span { return l.span }

// Else is the {{else}} arm of a block helper.
type Else struct {
	Ws   Ws
	Body []Node
}

// Each is {{#each iter}}body{{else}}empty{{/each}}.
type Each struct {
	Open  Ws
	Close Ws
	Iter  ast.Expr
	Body  []Node
	Else  *Else
	span  Span
}

func (e *Each) node()      {}
func (e *Each) Span() Span { return e.span }

// Branch is one conditional arm of an If chain.
type Branch struct {
	Ws   Ws
	Cond ast.Expr
	Body []Node
}

// If is {{#if c}}..{{else if c2}}..{{else}}..{{/if}}. The first branch holds
// the opening tag's markers.
type If struct {
	Branches []Branch
	Else     *Else
	Close    Ws
	span     Span
}

func (i *If) node()      {}
func (i *If) Span() Span { return i.span }

// Unless is {{#unless c}}body{{else}}..{{/unless}}.
type Unless struct {
	Open  Ws
	Close Ws
	Cond  ast.Expr
	Body  []Node
	Else  *Else
	span  Span
}

func (u *Unless) node()      {}
func (u *Unless) Span() Span { return u.span }

// With is {{#with x}}body{{else}}..{{/with}}. Bare identifiers in the body are
// fields of x.
type With struct {
	Open  Ws
	Close Ws
	X     ast.Expr
	Body  []Node
	Else  *Else
	span  Span
}

func (w *With) node()      {}
func (w *With) Span() Span { return w.span }

// Defined is a block helper with a name the engine does not provide.
type Defined struct {
	Open  Ws
	Close Ws
	Name  string
	Args  []ast.Expr
	Body  []Node
	span  Span
}

func (d *Defined) node()      {}
func (d *Defined) Span() Span { return d.span }

// NamedArg is a `name = expr` partial argument.
type NamedArg struct {
	Name string
	X    ast.Expr
	Span Span
}

// Args are the arguments of a partial: an optional scope expression followed
// by named arguments.
type Args struct {
	Scope ast.Expr
	Named []NamedArg
}

// Partial includes another template: {{> path scope name = expr}}.
type Partial struct {
	Ws   Ws
	Path string
	Args Args
	span Span
}

func (p *Partial) node()      {}
func (p *Partial) Span() Span { return p.span }

// PartialBlock includes another template and passes it a body that the
// partial renders with {{> @partial-block}}.
type PartialBlock struct {
	Open  Ws
	Close Ws
	Path  string
	Args  Args
	Body  []Node
	span  Span
}

func (p *PartialBlock) node()      {}
func (p *PartialBlock) Span() Span { return p.span }

// Block is {{> @partial-block}}.
type Block struct {
	Ws   Ws
	span Span
}

func (b *Block) node()      {}
func (b *Block) Span() Span { return b.span }

// Raw is a verbatim block: {{R}}text{{/R}}.
type Raw struct {
	Open  Ws
	Close Ws
	Lead  string
	Text  string
	Trail string
	span  Span
}

func (r *Raw) node()      {}
func (r *Raw) Span() Span { return r.span }

// String returns the verbatim text with its remaining fringes.
func (r *Raw) String() string { return r.Lead + r.Text + r.Trail }

// Comment is {{! text }} or {{!-- text --}}.
type Comment struct {
	Ws   Ws
	Text string
	span Span
}

func (c *Comment) node()      {}
func (c *Comment) Span() Span { return c.span }

// AtHelper is a builtin output helper: {{ @json x }}.
type AtHelper struct {
	Ws   Ws
	Name string
	Args []ast.Expr
	span Span
}

func (a *AtHelper) node()      {}
func (a *AtHelper) Span() Span { return a.span }

// Template is a parsed template.
type Template struct {
	Name   string
	Source string
	Nodes  []Node
}

// Partials returns the paths of all partials the template includes, in
// order of first appearance.
func (t *Template) Partials() []string {
	var out []string
	seen := map[string]bool{}
	var walk func([]Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *Partial:
				if !seen[n.Path] {
					seen[n.Path] = true
					out = append(out, n.Path)
				}
			case *PartialBlock:
				if !seen[n.Path] {
					seen[n.Path] = true
					out = append(out, n.Path)
				}
				walk(n.Body)
			case *Each:
				walk(n.Body)
				walkElse(n.Else, walk)
			case *If:
				for _, b := range n.Branches {
					walk(b.Body)
				}
				walkElse(n.Else, walk)
			case *Unless:
				walk(n.Body)
				walkElse(n.Else, walk)
			case *With:
				walk(n.Body)
				walkElse(n.Else, walk)
			case *Defined:
				walk(n.Body)
			}
		}
	}
	walk(t.Nodes)
	return out
}

func walkElse(e *Else, walk func([]Node)) {
	if e != nil {
		walk(e.Body)
	}
}
