// Package lower turns parse trees into HIR.
//
// Lowering resolves every identifier of the embedded Go expressions to a
// qualified path (receiver field, loop variable, local or partial argument)
// and folds what is known at compile time: constant output is merged into
// literal text, constant conditions pick their branch and constant
// iterables are unrolled.
package lower

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/stache-go/stache/eval"
	"github.com/stache-go/stache/hir"
	serrors "github.com/stache-go/stache/internal/errors"
	"github.com/stache-go/stache/internal/suggest"
	"github.com/stache-go/stache/parser"
	"github.com/stache-go/stache/render"
	"github.com/stache-go/stache/syntax"
	"github.com/stache-go/stache/value"
)

// maxUnroll is the largest constant iterable unrolled at compile time.
const maxUnroll = 256

// PartialFunc returns the parsed partial name included from the template
// named from.
type PartialFunc func(from, name string) (*parser.Template, error)

// Config controls lowering.
type Config struct {
	// Receiver is the name of the generated method's receiver. Bare names
	// at the top level of a template are fields of it.
	Receiver string

	// Escape is applied to constant output folded into literals. Nil means
	// the template does not escape.
	Escape func(string) string

	// NoFold disables constant folding and unrolling.
	NoFold bool

	// Imports lists names that pass through unresolved, usually package
	// names used in expressions.
	Imports []string

	// RecursionLimit bounds partial nesting.
	RecursionLimit int

	// Partial loads included templates.
	Partial PartialFunc
}

type onKind int

const (
	onRoot onKind = iota
	onEach
	onWith
	onPartial
)

// loop tracks which loop variables a runtime each body uses, so that
// unused ones are not declared.
type loop struct {
	index, elem         *ast.Ident
	usedIndex, usedElem bool
}

// on is the helper a bare identifier resolves against.
type on struct {
	kind   onKind
	this   ast.Expr
	index0 ast.Expr
	pos    int
	loop   *loop
	args   map[string]ast.Expr
}

func (o *on) target() ast.Expr {
	if o.loop != nil {
		o.loop.usedElem = true
	}
	return o.this
}

func (o *on) index() ast.Expr {
	if o.loop != nil {
		o.loop.usedIndex = true
	}
	return o.index0
}

// block is the body of a partial block together with the context of its
// caller, where it is lowered when the partial renders @partial-block.
type block struct {
	body    []parser.Node
	scope   *Scope
	on      []*on
	onFloor int
	args    map[string]ast.Expr
	known   eval.Vars
	tmpl    *parser.Template
	outer   []*block
}

type lowerer struct {
	cfg     Config
	imports map[string]bool
	scope   *Scope
	on      []*on
	onFloor int
	tmpl    *parser.Template
	args    map[string]ast.Expr
	blocks  []*block
	depth   int
	at      syntax.Span
	known   eval.Vars

	out []hir.Node
	buf strings.Builder
}

// Lower lowers t into HIR. Errors are *errors.Error values.
func Lower(t *parser.Template, cfg Config) ([]hir.Node, error) {
	if cfg.Receiver == "" {
		cfg.Receiver = "t"
	}
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = 128
	}
	l := &lowerer{
		cfg:     cfg,
		imports: map[string]bool{},
		scope:   NewScope(cfg.Receiver),
		tmpl:    t,
	}
	for _, name := range cfg.Imports {
		l.imports[name] = true
	}
	l.on = []*on{{kind: onRoot, this: ast.NewIdent(cfg.Receiver)}}
	if err := l.nodes(t.Nodes); err != nil {
		return nil, err
	}
	l.flush()
	if l.scope.Depth() != 0 {
		panic("internal error: unbalanced scope after lowering")
	}
	hir.Validate(l.out)
	return l.out, nil
}

func (l *lowerer) errorf(kind serrors.ErrorKind, span syntax.Span, format string, args ...any) error {
	return serrors.Errorf(kind, span, format, args...).WithName(l.tmpl.Name).WithSource(l.tmpl.Source)
}

func (l *lowerer) write(s string) {
	l.buf.WriteString(s)
}

func (l *lowerer) flush() {
	if l.buf.Len() == 0 {
		return
	}
	l.out = append(l.out, &hir.Lit{Text: l.buf.String()})
	l.buf.Reset()
}

func (l *lowerer) emit(n hir.Node) {
	l.flush()
	l.out = append(l.out, n)
}

// body lowers nodes into a fresh output list inside a new scope level.
func (l *lowerer) body(nodes []parser.Node) ([]hir.Node, error) {
	out, buf := l.out, l.buf.String()
	l.out = nil
	l.buf.Reset()
	l.scope.Enter()
	err := l.nodes(nodes)
	l.flush()
	l.scope.Exit()
	res := l.out
	l.out = out
	l.buf.WriteString(buf)
	return res, err
}

// inline lowers nodes into the current output inside a new scope level.
func (l *lowerer) inline(nodes []parser.Node) error {
	l.scope.Enter()
	defer l.scope.Exit()
	return l.nodes(nodes)
}

func (l *lowerer) nodes(nodes []parser.Node) error {
	for _, n := range nodes {
		if err := l.node(n); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) node(n parser.Node) error {
	l.at = n.Span()
	switch n := n.(type) {
	case *parser.Lit:
		l.write(n.String())
	case *parser.Raw:
		l.write(n.String())
	case *parser.Comment:
	case *parser.Expr:
		return l.output(n.X, l.cfg.Escape)
	case *parser.Safe:
		return l.output(n.X, nil)
	case *parser.AtHelper:
		return l.atHelper(n)
	case *parser.Local:
		return l.local(n)
	case *parser.If:
		return l.ifChain(n)
	case *parser.Unless:
		return l.unless(n)
	case *parser.With:
		return l.with(n)
	case *parser.Each:
		return l.each(n)
	case *parser.Defined:
		return l.defined(n)
	case *parser.Partial:
		return l.partial(n, n.Path, n.Args, nil)
	case *parser.PartialBlock:
		return l.partial(n, n.Path, n.Args, n.Body)
	case *parser.Block:
		return l.partialBlock(n)
	default:
		return l.errorf(serrors.ErrInternal, n.Span(), "unexpected node %T", n)
	}
	return nil
}

// constant evaluates a resolved expression at compile time.
func (l *lowerer) constant(x ast.Expr) (value.Value, bool) {
	if l.cfg.NoFold {
		return value.Invalid(), false
	}
	v, err := eval.Eval(x, eval.Empty)
	return v, err == nil
}

func (l *lowerer) output(x ast.Expr, escape func(string) string) error {
	rx, err := l.resolve(x)
	if err != nil {
		return err
	}
	if v, ok := l.constant(rx); ok && v.IsScalar() {
		s := v.String()
		if escape != nil {
			s = escape(s)
		}
		l.write(s)
		return nil
	}
	if escape != nil {
		l.emit(&hir.Expr{X: rx})
	} else {
		l.emit(&hir.Safe{X: rx})
	}
	return nil
}

func (l *lowerer) atHelper(n *parser.AtHelper) error {
	rx, err := l.resolve(n.Args[0])
	if err != nil {
		return err
	}
	pretty := n.Name == "json_pretty"
	if v, ok := l.constant(rx); ok {
		if s, err := render.EncodeJSON(v.Native(), pretty); err == nil {
			l.write(s)
			return nil
		}
	}
	l.emit(&hir.JSON{X: rx, Pretty: pretty})
	return nil
}

func (l *lowerer) local(n *parser.Local) error {
	rx, err := l.resolve(n.X)
	if err != nil {
		return err
	}
	if len(n.Names) == 1 {
		if v, ok := l.constant(rx); ok {
			if cx, ok := v.Expr(); ok {
				l.scope.Bind(n.Names[0].Name, paren(cx))
				return nil
			}
		}
	}
	names := make([]*ast.Ident, len(n.Names))
	for i, id := range n.Names {
		if id.Name == "_" {
			names[i] = ast.NewIdent("_")
			continue
		}
		names[i] = l.scope.Fresh(id.Name)
	}
	// Names become visible after the right-hand side was resolved.
	for i, id := range n.Names {
		if id.Name != "_" {
			l.scope.Bind(id.Name, names[i])
		}
	}
	// Values are remembered even when folding is off, so that a runtime
	// each can tell it ranges over a string.
	if len(names) == 1 && names[0].Name != "_" {
		if v, err := eval.Eval(rx, l.known); err == nil {
			if l.known == nil {
				l.known = eval.Vars{}
			}
			l.known[names[0].Name] = v
		}
	}
	l.emit(&hir.Local{Names: names, X: rx})
	return nil
}

// ifChain lowers an if/else-if/else chain. Branches whose condition is
// constant are decided at compile time until the first runtime condition;
// from then on every branch belongs to the runtime chain, since whether it
// is reached is no longer known.
func (l *lowerer) ifChain(n *parser.If) error {
	var chain *hir.IfElse
	for _, br := range n.Branches {
		cond, err := l.resolve(br.Cond)
		if err != nil {
			return err
		}
		if chain == nil {
			if v, ok := l.constant(cond); ok {
				if b, ok := v.AsBool(); ok {
					if b {
						return l.inline(br.Body)
					}
					continue
				}
			}
			chain = &hir.IfElse{}
		}
		body, err := l.body(br.Body)
		if err != nil {
			return err
		}
		chain.Branches = append(chain.Branches, hir.Branch{Cond: cond, Body: body})
	}
	if chain == nil {
		if n.Else != nil {
			return l.inline(n.Else.Body)
		}
		return nil
	}
	if n.Else != nil {
		els, err := l.body(n.Else.Body)
		if err != nil {
			return err
		}
		chain.Else = els
	}
	l.emit(chain)
	return nil
}

func (l *lowerer) unless(n *parser.Unless) error {
	cond, err := l.resolve(n.Cond)
	if err != nil {
		return err
	}
	if v, ok := l.constant(cond); ok {
		if b, ok := v.AsBool(); ok {
			if !b {
				return l.inline(n.Body)
			}
			if n.Else != nil {
				return l.inline(n.Else.Body)
			}
			return nil
		}
	}
	body, err := l.body(n.Body)
	if err != nil {
		return err
	}
	chain := &hir.IfElse{Branches: []hir.Branch{{Cond: not(cond), Body: body}}}
	if n.Else != nil {
		if chain.Else, err = l.body(n.Else.Body); err != nil {
			return err
		}
	}
	l.emit(chain)
	return nil
}

// target turns a resolved expression into something that can be repeated
// in every reference: paths and constants as they are, anything else bound
// to a local first.
func (l *lowerer) target(rx ast.Expr, name string) ast.Expr {
	if v, ok := l.constant(rx); ok {
		if cx, ok := v.Expr(); ok {
			return paren(cx)
		}
	}
	if isPath(rx) {
		return rx
	}
	id := l.scope.Fresh(name)
	l.emit(&hir.Local{Names: []*ast.Ident{id}, X: rx})
	return id
}

func (l *lowerer) with(n *parser.With) error {
	rx, err := l.resolve(n.X)
	if err != nil {
		return err
	}
	target := l.target(rx, "with")
	l.on = append(l.on, &on{kind: onWith, this: target})
	if n.Else == nil {
		err = l.inline(n.Body)
		l.on = l.on[:len(l.on)-1]
		return err
	}
	body, err := l.body(n.Body)
	l.on = l.on[:len(l.on)-1]
	if err != nil {
		return err
	}
	els, err := l.body(n.Else.Body)
	if err != nil {
		return err
	}
	cond := &ast.UnaryExpr{Op: token.NOT, X: renderCall("IsZero", target)}
	l.emit(&hir.IfElse{Branches: []hir.Branch{{Cond: cond, Body: body}}, Else: els})
	return nil
}

func (l *lowerer) each(n *parser.Each) error {
	iter, err := l.resolve(n.Iter)
	if err != nil {
		return err
	}
	// Strings iterate as single-character strings, unrolled or not.
	if v, err := eval.Eval(iter, l.known); err == nil && v.Kind() == value.KindString {
		iter = renderCall("Chars", iter)
	}
	if done, err := l.unroll(n, iter); done || err != nil {
		return err
	}

	lp := &loop{index: l.scope.Fresh("index0"), elem: l.scope.Fresh("this")}
	l.on = append(l.on, &on{kind: onEach, this: lp.elem, index0: lp.index, pos: -1, loop: lp})
	body, err := l.body(n.Body)
	l.on = l.on[:len(l.on)-1]
	if err != nil {
		return err
	}
	node := &hir.Each{Iter: iter, Body: body}
	if lp.usedIndex {
		node.Index = lp.index
	}
	if lp.usedElem {
		node.Elem = lp.elem
	}
	if n.Else != nil {
		if node.Else, err = l.body(n.Else.Body); err != nil {
			return err
		}
	}
	l.emit(node)
	return nil
}

// unroll lowers an each over a constant iterable as one copy of the body
// per element, in order.
func (l *lowerer) unroll(n *parser.Each, iter ast.Expr) (bool, error) {
	v, ok := l.constant(iter)
	if !ok {
		return false, nil
	}
	pairs, ok := v.Pairs()
	if !ok || len(pairs) > maxUnroll {
		return false, nil
	}
	type step struct{ index0, elem ast.Expr }
	steps := make([]step, len(pairs))
	for i, p := range pairs {
		kx, ok1 := p.Key.Expr()
		ex, ok2 := p.Elem.Expr()
		if !ok1 || !ok2 {
			return false, nil
		}
		steps[i] = step{paren(kx), paren(ex)}
	}
	if len(steps) == 0 {
		if n.Else != nil {
			return true, l.inline(n.Else.Body)
		}
		return true, nil
	}
	for i, s := range steps {
		l.on = append(l.on, &on{kind: onEach, this: s.elem, index0: s.index0, pos: i})
		err := l.inline(n.Body)
		l.on = l.on[:len(l.on)-1]
		if err != nil {
			return true, err
		}
	}
	return true, nil
}

// renderCall calls the render package function name with x.
func renderCall(name string, x ast.Expr) ast.Expr {
	return &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: ast.NewIdent("render"), Sel: ast.NewIdent(name)},
		Args: []ast.Expr{x},
	}
}

var builtinHelpers = []string{"each", "if", "unless", "with"}

func (l *lowerer) defined(n *parser.Defined) error {
	msg := "unknown helper `" + n.Name + "`"
	if s := suggest.Closest(n.Name, builtinHelpers); s != "" {
		msg += ", did you mean `" + s + "`?"
	}
	return l.errorf(serrors.ErrUnknownHelper, n.Span(), "%s", msg)
}
