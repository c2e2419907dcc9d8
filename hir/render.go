package hir

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"github.com/stache-go/stache/eval"
	"github.com/stache-go/stache/render"
	"github.com/stache-go/stache/value"
)

// frame is the environment of one body. Locals and loop variables are
// unique names, so a frame only ever shadows its parent deliberately.
type frame struct {
	vars   eval.Vars
	parent eval.Env
}

func (f *frame) Lookup(name string) (value.Value, bool) {
	if v, ok := f.vars[name]; ok {
		return v, true
	}
	if f.parent == nil {
		return value.Invalid(), false
	}
	return f.parent.Lookup(name)
}

func (f *frame) child() *frame {
	return &frame{vars: eval.Vars{}, parent: f}
}

// Render interprets nodes the way the generated code would run them. env
// must bind the receiver name to the template data. escape is applied to
// Expr output; nil leaves it unescaped.
func Render(nodes []Node, env eval.Env, escape func(string) string) (string, error) {
	var b strings.Builder
	r := &renderer{w: render.NewWriter(&b), escape: escape}
	if err := r.nodes(nodes, &frame{vars: eval.Vars{}, parent: env}); err != nil {
		return b.String(), err
	}
	return b.String(), r.w.Err()
}

type renderer struct {
	w      *render.Writer
	escape func(string) string
}

func (r *renderer) nodes(nodes []Node, f *frame) error {
	for _, n := range nodes {
		if err := r.node(n, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) node(n Node, f *frame) error {
	switch n := n.(type) {
	case *Lit:
		r.w.WriteString(n.Text)
	case *Expr:
		v, err := eval.Eval(n.X, f)
		if err != nil {
			return exprError(n.X, err)
		}
		s := render.Text(v.Native())
		if r.escape != nil {
			s = r.escape(s)
		}
		r.w.WriteString(s)
	case *Safe:
		v, err := eval.Eval(n.X, f)
		if err != nil {
			return exprError(n.X, err)
		}
		render.Raw(r.w, v.Native())
	case *JSON:
		v, err := eval.Eval(n.X, f)
		if err != nil {
			return exprError(n.X, err)
		}
		if n.Pretty {
			render.JSONPretty(r.w, v.Native())
		} else {
			render.JSON(r.w, v.Native())
		}
	case *Local:
		if len(n.Names) != 1 {
			return fmt.Errorf("cannot interpret multi-value binding of %s", types.ExprString(n.X))
		}
		v, err := eval.Eval(n.X, f)
		if err != nil {
			return exprError(n.X, err)
		}
		f.vars[n.Names[0].Name] = v
	case *Each:
		return r.each(n, f)
	case *IfElse:
		for _, b := range n.Branches {
			ok, err := eval.Bool(b.Cond, f)
			if err != nil {
				return exprError(b.Cond, err)
			}
			if ok {
				return r.nodes(b.Body, f.child())
			}
		}
		return r.nodes(n.Else, f.child())
	default:
		return fmt.Errorf("unknown HIR node %T", n)
	}
	return nil
}

func (r *renderer) each(n *Each, f *frame) error {
	v, err := eval.Eval(n.Iter, f)
	if err != nil {
		return exprError(n.Iter, err)
	}
	pairs, ok := v.Pairs()
	if !ok {
		return fmt.Errorf("cannot range over %s (%s)", types.ExprString(n.Iter), v.Kind())
	}
	if len(pairs) == 0 {
		return r.nodes(n.Else, f.child())
	}
	for _, p := range pairs {
		inner := f.child()
		if n.Index != nil {
			inner.vars[n.Index.Name] = p.Key
		}
		if n.Elem != nil {
			inner.vars[n.Elem.Name] = p.Elem
		}
		if err := r.nodes(n.Body, inner); err != nil {
			return err
		}
	}
	return nil
}

func exprError(x ast.Expr, err error) error {
	return fmt.Errorf("%s: %w", types.ExprString(x), err)
}
