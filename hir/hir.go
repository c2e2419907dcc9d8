// Package hir defines the flat, scope-resolved representation produced by
// lowering. Every identifier in a HIR expression is already qualified: the
// receiver (t.Name), a loop variable (this__1) or a local (a__2). Literal text
// is coalesced, so two Lit nodes are never adjacent.
package hir

import (
	"fmt"
	"go/ast"
)

// Node is one HIR instruction.
type Node interface {
	hirNode()
}

// Lit writes text verbatim.
type Lit struct {
	Text string
}

// Expr writes the value of X, escaped when the template escapes.
type Expr struct {
	X ast.Expr
}

// Safe writes the value of X without escaping.
type Safe struct {
	X ast.Expr
}

// JSON writes X encoded as JSON that is safe to embed in HTML.
type JSON struct {
	X      ast.Expr
	Pretty bool
}

// Local binds Names to X for the rest of the enclosing body.
type Local struct {
	Names []*ast.Ident
	X     ast.Expr
}

// Each ranges over Iter. Index and Elem are nil when the body does not use
// them. Else runs when Iter yields nothing.
type Each struct {
	Index *ast.Ident
	Elem  *ast.Ident
	Iter  ast.Expr
	Body  []Node
	Else  []Node
}

// Branch is one arm of an IfElse.
type Branch struct {
	Cond ast.Expr
	Body []Node
}

// IfElse runs the body of the first branch whose condition holds, or Else.
type IfElse struct {
	Branches []Branch
	Else     []Node
}

func (*Lit) hirNode()    {}
func (*Expr) hirNode()   {}
func (*Safe) hirNode()   {}
func (*JSON) hirNode()   {}
func (*Local) hirNode()  {}
func (*Each) hirNode()   {}
func (*IfElse) hirNode() {}

// Validate panics when nodes break the HIR invariants: adjacent literals,
// empty literals or an IfElse without branches.
func Validate(nodes []Node) {
	var prevLit bool
	for _, n := range nodes {
		_, isLit := n.(*Lit)
		if isLit && prevLit {
			panic("internal error: adjacent HIR literals")
		}
		prevLit = isLit
		switch n := n.(type) {
		case *Lit:
			if n.Text == "" {
				panic("internal error: empty HIR literal")
			}
		case *Each:
			Validate(n.Body)
			Validate(n.Else)
		case *IfElse:
			if len(n.Branches) == 0 {
				panic(fmt.Sprintf("internal error: IfElse without branches: %#v", n))
			}
			for _, b := range n.Branches {
				Validate(b.Body)
			}
			Validate(n.Else)
		}
	}
}

// Walk calls fn for every node in pre-order, descending into bodies while fn
// returns true.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		switch n := n.(type) {
		case *Each:
			Walk(n.Body, fn)
			Walk(n.Else, fn)
		case *IfElse:
			for _, b := range n.Branches {
				Walk(b.Body, fn)
			}
			Walk(n.Else, fn)
		}
	}
}
