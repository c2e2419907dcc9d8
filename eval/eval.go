// Package eval interprets Go expressions over the value domain.
//
// With an empty environment Eval is the constant folder used during
// lowering: any expression that needs a runtime value fails with
// ErrNotConstant. With an environment holding data it is the reference
// interpreter behind previews and equivalence tests.
package eval

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/stache-go/stache/value"
)

// ErrNotConstant is reported for expressions that depend on runtime state
// or use syntax the interpreter does not support.
var ErrNotConstant = errors.New("not a constant expression")

// Env resolves free identifiers.
type Env interface {
	Lookup(name string) (value.Value, bool)
}

// Vars is a map backed Env.
type Vars map[string]value.Value

// Lookup implements Env.
func (v Vars) Lookup(name string) (value.Value, bool) {
	x, ok := v[name]
	return x, ok
}

// Empty is the environment of constant folding.
var Empty Env = Vars(nil)

func notConstant(x ast.Expr) error {
	return fmt.Errorf("%w: %s", ErrNotConstant, types.ExprString(x))
}

// Eval evaluates x in env.
func Eval(x ast.Expr, env Env) (value.Value, error) {
	if env == nil {
		env = Empty
	}
	return (&interp{env: env}).eval(x)
}

// Bool evaluates a condition.
func Bool(x ast.Expr, env Env) (bool, error) {
	v, err := Eval(x, env)
	if err != nil {
		return false, err
	}
	return value.Truth(v)
}

type interp struct {
	env Env
}

func (in *interp) eval(x ast.Expr) (value.Value, error) {
	switch x := x.(type) {
	case *ast.BasicLit:
		return basicLit(x)
	case *ast.Ident:
		if v, ok := in.env.Lookup(x.Name); ok {
			return v, nil
		}
		switch x.Name {
		case "true":
			return value.FromBool(true), nil
		case "false":
			return value.FromBool(false), nil
		case "nil":
			return value.Nil(), nil
		}
		return value.Invalid(), notConstant(x)
	case *ast.ParenExpr:
		return in.eval(x.X)
	case *ast.UnaryExpr:
		v, err := in.eval(x.X)
		if err != nil {
			return v, err
		}
		return value.Unary(x.Op, v)
	case *ast.BinaryExpr:
		return in.binary(x)
	case *ast.SelectorExpr:
		v, err := in.eval(x.X)
		if err != nil {
			return v, err
		}
		return value.Attr(v, x.Sel.Name)
	case *ast.IndexExpr:
		v, err := in.eval(x.X)
		if err != nil {
			return v, err
		}
		i, err := in.eval(x.Index)
		if err != nil {
			return i, err
		}
		return value.Index(v, i)
	case *ast.SliceExpr:
		return in.slice(x)
	case *ast.CompositeLit:
		return in.composite(x, x.Type)
	case *ast.CallExpr:
		return in.call(x)
	}
	return value.Invalid(), notConstant(x)
}

func basicLit(x *ast.BasicLit) (value.Value, error) {
	if x.Kind == token.IMAG {
		return value.Invalid(), notConstant(x)
	}
	v := value.FromConst(constant.MakeFromLiteral(x.Value, x.Kind, 0))
	if !v.IsValid() {
		return v, fmt.Errorf("malformed literal %s", x.Value)
	}
	return v, nil
}

// binary evaluates && and || lazily: the right operand is only evaluated,
// and only needs to be constant, when the left one does not decide.
func (in *interp) binary(x *ast.BinaryExpr) (value.Value, error) {
	l, err := in.eval(x.X)
	if err != nil {
		return l, err
	}
	if x.Op == token.LAND || x.Op == token.LOR {
		b, err := value.Truth(l)
		if err != nil {
			return value.Invalid(), err
		}
		if b == (x.Op == token.LOR) {
			return l, nil
		}
		r, err := in.eval(x.Y)
		if err != nil {
			return r, err
		}
		if _, err := value.Truth(r); err != nil {
			return value.Invalid(), err
		}
		return r, nil
	}
	r, err := in.eval(x.Y)
	if err != nil {
		return r, err
	}
	return value.Binary(x.Op, l, r)
}

func (in *interp) bound(x ast.Expr) (int, error) {
	if x == nil {
		return -1, nil
	}
	v, err := in.eval(x)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok || n < 0 {
		return 0, fmt.Errorf("invalid slice index %s", v)
	}
	return int(n), nil
}

func (in *interp) slice(x *ast.SliceExpr) (value.Value, error) {
	if x.Slice3 {
		return value.Invalid(), notConstant(x)
	}
	v, err := in.eval(x.X)
	if err != nil {
		return v, err
	}
	lo, err := in.bound(x.Low)
	if err != nil {
		return value.Invalid(), err
	}
	hi, err := in.bound(x.High)
	if err != nil {
		return value.Invalid(), err
	}
	return value.Slice(v, lo, hi)
}

// composite evaluates slice, array and string keyed map literals. typ is the
// literal's type, inherited from the parent for elided element types.
func (in *interp) composite(x *ast.CompositeLit, typ ast.Expr) (value.Value, error) {
	switch t := typ.(type) {
	case *ast.ArrayType:
		items := make([]value.Value, 0, len(x.Elts))
		for _, elt := range x.Elts {
			if _, ok := elt.(*ast.KeyValueExpr); ok {
				return value.Invalid(), notConstant(x)
			}
			v, err := in.element(elt, t.Elt)
			if err != nil {
				return v, err
			}
			items = append(items, v)
		}
		if t.Len != nil {
			if _, ok := t.Len.(*ast.Ellipsis); !ok {
				n, err := in.eval(t.Len)
				if err != nil {
					return n, err
				}
				if size, ok := n.AsInt(); !ok || size != int64(len(items)) {
					return value.Invalid(), notConstant(x)
				}
			}
		}
		return value.FromSeq(items).WithSource(withType(x, typ)), nil
	case *ast.MapType:
		m := make(map[string]value.Value, len(x.Elts))
		for _, elt := range x.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				return value.Invalid(), notConstant(x)
			}
			k, err := in.eval(kv.Key)
			if err != nil {
				return k, err
			}
			key, ok := k.AsString()
			if !ok {
				return value.Invalid(), notConstant(x)
			}
			v, err := in.element(kv.Value, t.Value)
			if err != nil {
				return v, err
			}
			m[key] = v
		}
		return value.FromMap(m).WithSource(withType(x, typ)), nil
	}
	return value.Invalid(), notConstant(x)
}

func (in *interp) element(elt, typ ast.Expr) (value.Value, error) {
	if lit, ok := elt.(*ast.CompositeLit); ok && lit.Type == nil {
		return in.composite(lit, typ)
	}
	v, err := in.eval(elt)
	if err != nil {
		return v, err
	}
	// Untyped elements take the element type: []float64{1} holds 1.0.
	if id, ok := typ.(*ast.Ident); ok && conversions[id.Name] && v.IsScalar() {
		return value.Convert(id.Name, v)
	}
	return v, nil
}

// withType returns lit with its elided type filled in, so that the literal
// stands on its own when substituted elsewhere.
func withType(lit *ast.CompositeLit, typ ast.Expr) *ast.CompositeLit {
	if lit.Type != nil {
		return lit
	}
	cp := *lit
	cp.Type = typ
	return &cp
}

var conversions = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "string": true, "bool": true,
	"rune": true, "byte": true,
}

// runtimeHelpers are the render package functions lowering inserts into
// expressions.
var runtimeHelpers = map[string]func(value.Value) (value.Value, error){
	"Chars": func(v value.Value) (value.Value, error) {
		chars, ok := v.Chars()
		if !ok {
			return value.Invalid(), fmt.Errorf("cannot split %s into characters", v.Kind())
		}
		return chars, nil
	},
	"IsZero": func(v value.Value) (value.Value, error) {
		return value.FromBool(v.IsZero()), nil
	},
}

func (in *interp) helper(x *ast.CallExpr) (value.Value, bool, error) {
	sel, ok := x.Fun.(*ast.SelectorExpr)
	if !ok || len(x.Args) != 1 {
		return value.Invalid(), false, nil
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "render" {
		return value.Invalid(), false, nil
	}
	if _, shadowed := in.env.Lookup(pkg.Name); shadowed {
		return value.Invalid(), false, nil
	}
	fn := runtimeHelpers[sel.Sel.Name]
	if fn == nil {
		return value.Invalid(), false, nil
	}
	arg, err := in.eval(x.Args[0])
	if err != nil {
		return arg, true, err
	}
	v, err := fn(arg)
	return v, true, err
}

func (in *interp) call(x *ast.CallExpr) (value.Value, error) {
	if v, ok, err := in.helper(x); ok {
		return v, err
	}
	fn, ok := x.Fun.(*ast.Ident)
	if !ok || x.Ellipsis.IsValid() || len(x.Args) != 1 {
		return value.Invalid(), notConstant(x)
	}
	if _, shadowed := in.env.Lookup(fn.Name); shadowed {
		return value.Invalid(), notConstant(x)
	}
	if fn.Name != "len" && !conversions[fn.Name] {
		return value.Invalid(), notConstant(x)
	}
	arg, err := in.eval(x.Args[0])
	if err != nil {
		return arg, err
	}
	if fn.Name == "len" {
		n, ok := arg.Len()
		if !ok {
			return value.Invalid(), fmt.Errorf("invalid argument: %s for len", arg.Kind())
		}
		return value.FromInt(int64(n)), nil
	}
	return value.Convert(fn.Name, arg)
}
