package lower

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"unicode"

	serrors "github.com/stache-go/stache/internal/errors"
)

// resolve returns a copy of x with every free identifier qualified.
func (l *lowerer) resolve(x ast.Expr) (ast.Expr, error) {
	r := &rewriter{l: l}
	out := r.expr(x)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// isConstName reports whether name looks like a package level constant:
// at least two characters, all upper case letters, digits or underscores.
func isConstName(name string) bool {
	if len(name) < 2 || !unicode.IsUpper(rune(name[0])) {
		return false
	}
	for _, r := range name {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// tupleIndex parses _N.
func tupleIndex(name string) (int, bool) {
	if len(name) < 2 || name[0] != '_' {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (l *lowerer) ident(id *ast.Ident) ast.Expr {
	name := id.Name
	if name == "_" || isConstName(name) {
		return ast.NewIdent(name)
	}
	if x, ok := l.args[name]; ok {
		return x
	}
	if x, ok := l.scope.Lookup(name); ok {
		return x
	}
	if l.imports[name] || types.Universe.Lookup(name) != nil {
		return ast.NewIdent(name)
	}
	return l.project(l.on[len(l.on)-1], name)
}

// project resolves name against a helper: loop sugar on each, a field of
// the helper's target otherwise.
func (l *lowerer) project(o *on, name string) ast.Expr {
	if name == "this" {
		return o.target()
	}
	if o.kind == onEach {
		switch name {
		case "index0":
			return o.index()
		case "index":
			return &ast.ParenExpr{X: &ast.BinaryExpr{X: o.index(), Op: token.ADD, Y: intLit(1)}}
		case "first":
			return &ast.ParenExpr{X: &ast.BinaryExpr{X: o.index(), Op: token.EQL, Y: intLit(0)}}
		}
	}
	if n, ok := tupleIndex(name); ok {
		return &ast.IndexExpr{X: o.target(), Index: intLit(n)}
	}
	return &ast.SelectorExpr{X: o.target(), Sel: ast.NewIdent(name)}
}

// super resolves super.super.name. It returns ok false when x is not such
// a path.
func (l *lowerer) super(x *ast.SelectorExpr) (ast.Expr, bool, error) {
	var sels []*ast.Ident
	cur := ast.Expr(x)
	for {
		sel, ok := cur.(*ast.SelectorExpr)
		if !ok {
			break
		}
		sels = append(sels, sel.Sel)
		cur = sel.X
	}
	root, ok := cur.(*ast.Ident)
	if !ok || root.Name != "super" {
		return nil, false, nil
	}
	if _, shadowed := l.scope.Lookup("super"); shadowed {
		return nil, false, nil
	}
	// sels holds the selectors innermost last; walk them outermost first.
	depth := 1
	i := len(sels) - 1
	for i >= 0 && sels[i].Name == "super" {
		depth++
		i--
	}
	if i < 0 {
		return nil, true, l.errorf(serrors.ErrBadExpression, l.at, "super must be followed by a name")
	}
	idx := len(l.on) - 1 - depth
	if idx < l.onFloor {
		return nil, true, l.errorf(serrors.ErrSuperDepth, l.at, "%d levels of super but only %d enclosing helpers", depth, len(l.on)-1-l.onFloor)
	}
	out := l.project(l.on[idx], sels[i].Name)
	for i--; i >= 0; i-- {
		out = &ast.SelectorExpr{X: out, Sel: ast.NewIdent(sels[i].Name)}
	}
	return out, true, nil
}

func intLit(n int) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(n)}
}

// paren wraps x unless it already binds tighter than any operator.
func paren(x ast.Expr) ast.Expr {
	switch x.(type) {
	case *ast.Ident, *ast.BasicLit, *ast.ParenExpr, *ast.SelectorExpr,
		*ast.IndexExpr, *ast.CallExpr, *ast.CompositeLit:
		return x
	}
	return &ast.ParenExpr{X: x}
}

func not(x ast.Expr) ast.Expr {
	return &ast.UnaryExpr{Op: token.NOT, X: paren(x)}
}

// isPath reports whether x may be repeated without evaluating anything
// twice.
func isPath(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.Ident:
		return true
	case *ast.ParenExpr:
		return isPath(x.X)
	case *ast.SelectorExpr:
		return isPath(x.X)
	case *ast.IndexExpr:
		_, lit := x.Index.(*ast.BasicLit)
		return lit && isPath(x.X)
	}
	return false
}

// rewriter copies an expression while resolving identifiers. The first
// error stops resolution; the returned tree is then incomplete.
type rewriter struct {
	l   *lowerer
	err error
}

func (r *rewriter) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *rewriter) exprs(xs []ast.Expr) []ast.Expr {
	if xs == nil {
		return nil
	}
	out := make([]ast.Expr, len(xs))
	for i, x := range xs {
		out[i] = r.expr(x)
	}
	return out
}

func (r *rewriter) expr(x ast.Expr) ast.Expr {
	if x == nil || r.err != nil {
		return x
	}
	switch x := x.(type) {
	case *ast.Ident:
		return r.l.ident(x)
	case *ast.BasicLit:
		return &ast.BasicLit{Kind: x.Kind, Value: x.Value}
	case *ast.ParenExpr:
		return &ast.ParenExpr{X: r.expr(x.X)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Op: x.Op, X: r.expr(x.X)}
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{X: r.expr(x.X), Op: x.Op, Y: r.expr(x.Y)}
	case *ast.StarExpr:
		return &ast.StarExpr{X: r.expr(x.X)}
	case *ast.SelectorExpr:
		out, ok, err := r.l.super(x)
		if err != nil {
			r.fail(err)
			return x
		}
		if ok {
			return out
		}
		return &ast.SelectorExpr{X: r.expr(x.X), Sel: ast.NewIdent(x.Sel.Name)}
	case *ast.IndexExpr:
		return &ast.IndexExpr{X: r.expr(x.X), Index: r.expr(x.Index)}
	case *ast.IndexListExpr:
		// Generic instantiation; the indices are types.
		return &ast.IndexListExpr{X: r.expr(x.X), Indices: x.Indices}
	case *ast.SliceExpr:
		return &ast.SliceExpr{X: r.expr(x.X), Low: r.expr(x.Low), High: r.expr(x.High), Max: r.expr(x.Max), Slice3: x.Slice3}
	case *ast.TypeAssertExpr:
		return &ast.TypeAssertExpr{X: r.expr(x.X), Type: x.Type}
	case *ast.CallExpr:
		fun := x.Fun
		if !isType(fun) {
			fun = r.expr(fun)
		}
		return &ast.CallExpr{Fun: fun, Args: r.exprs(x.Args), Ellipsis: x.Ellipsis}
	case *ast.CompositeLit:
		return r.composite(x)
	case *ast.FuncLit:
		return r.funcLit(x)
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType,
		*ast.StructType, *ast.InterfaceType, *ast.Ellipsis:
		return x
	}
	r.fail(r.l.errorf(serrors.ErrBadExpression, r.l.at, "unsupported expression %T", x))
	return x
}

func isType(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType,
		*ast.StructType, *ast.InterfaceType:
		return true
	case *ast.ParenExpr:
		return isType(x.X)
	}
	return false
}

// composite resolves element values. Keys of struct literals are field
// names and stay as written; keys of maps, slices and arrays are
// expressions.
func (r *rewriter) composite(x *ast.CompositeLit) ast.Expr {
	keyed := false
	switch x.Type.(type) {
	case *ast.MapType, *ast.ArrayType:
		keyed = true
	}
	elts := make([]ast.Expr, len(x.Elts))
	for i, e := range x.Elts {
		kv, ok := e.(*ast.KeyValueExpr)
		if !ok {
			elts[i] = r.expr(e)
			continue
		}
		key := kv.Key
		if _, bare := key.(*ast.Ident); !bare || keyed {
			key = r.expr(key)
		}
		elts[i] = &ast.KeyValueExpr{Key: key, Value: r.expr(kv.Value)}
	}
	return &ast.CompositeLit{Type: x.Type, Elts: elts}
}

func (r *rewriter) funcLit(x *ast.FuncLit) ast.Expr {
	s := r.l.scope
	s.Enter()
	defer s.Exit()
	typ := &ast.FuncType{Params: r.fields(x.Type.Params), Results: r.fields(x.Type.Results)}
	return &ast.FuncLit{Type: typ, Body: r.block(x.Body)}
}

// fields declares parameter names in the current level.
func (r *rewriter) fields(fl *ast.FieldList) *ast.FieldList {
	if fl == nil {
		return nil
	}
	out := &ast.FieldList{}
	for _, f := range fl.List {
		nf := &ast.Field{Type: f.Type}
		for _, n := range f.Names {
			nf.Names = append(nf.Names, r.declare(n))
		}
		out.List = append(out.List, nf)
	}
	return out
}

func (r *rewriter) declare(id *ast.Ident) *ast.Ident {
	if id.Name == "_" {
		return ast.NewIdent("_")
	}
	return r.l.scope.Declare(id.Name)
}

func (r *rewriter) block(b *ast.BlockStmt) *ast.BlockStmt {
	if b == nil {
		return nil
	}
	s := r.l.scope
	s.Enter()
	defer s.Exit()
	out := &ast.BlockStmt{}
	for _, st := range b.List {
		out.List = append(out.List, r.stmt(st))
	}
	return out
}

func (r *rewriter) stmt(st ast.Stmt) ast.Stmt {
	if st == nil || r.err != nil {
		return st
	}
	s := r.l.scope
	switch st := st.(type) {
	case *ast.ReturnStmt:
		return &ast.ReturnStmt{Results: r.exprs(st.Results)}
	case *ast.ExprStmt:
		return &ast.ExprStmt{X: r.expr(st.X)}
	case *ast.IncDecStmt:
		return &ast.IncDecStmt{X: r.expr(st.X), Tok: st.Tok}
	case *ast.AssignStmt:
		rhs := r.exprs(st.Rhs)
		var lhs []ast.Expr
		if st.Tok == token.DEFINE {
			for _, x := range st.Lhs {
				id, ok := x.(*ast.Ident)
				if !ok {
					r.fail(r.l.errorf(serrors.ErrScope, r.l.at, "cannot declare %s", types.ExprString(x)))
					return st
				}
				lhs = append(lhs, r.declare(id))
			}
		} else {
			lhs = r.exprs(st.Lhs)
		}
		return &ast.AssignStmt{Lhs: lhs, Tok: st.Tok, Rhs: rhs}
	case *ast.BlockStmt:
		return r.block(st)
	case *ast.IfStmt:
		s.Enter()
		defer s.Exit()
		init := r.stmt(st.Init)
		return &ast.IfStmt{Init: init, Cond: r.expr(st.Cond), Body: r.block(st.Body), Else: r.stmt(st.Else)}
	case *ast.ForStmt:
		s.Enter()
		defer s.Exit()
		init := r.stmt(st.Init)
		cond := r.expr(st.Cond)
		post := r.stmt(st.Post)
		return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: r.block(st.Body)}
	case *ast.RangeStmt:
		x := r.expr(st.X)
		s.Enter()
		defer s.Exit()
		out := &ast.RangeStmt{Tok: st.Tok, X: x}
		if st.Tok == token.DEFINE {
			if id, ok := st.Key.(*ast.Ident); ok {
				out.Key = r.declare(id)
			}
			if id, ok := st.Value.(*ast.Ident); ok {
				out.Value = r.declare(id)
			}
		} else {
			out.Key, out.Value = r.expr(st.Key), r.expr(st.Value)
		}
		out.Body = r.block(st.Body)
		return out
	case *ast.BranchStmt:
		if st.Label == nil {
			return &ast.BranchStmt{Tok: st.Tok}
		}
	}
	r.fail(r.l.errorf(serrors.ErrScope, r.l.at, "unsupported statement %T in function literal", st))
	return st
}
