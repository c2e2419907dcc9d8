// Package value provides the value domain used to evaluate template
// expressions at compile time.
//
// # Core Concepts
//
// A Value is either a scalar backed by go/constant (bool, integer, float,
// string), a sequence, an integer range or a string keyed map. Scalars follow
// the rules of untyped Go constants: 7/2 is 3, 7.0/2 is 3.5, and integers
// never overflow.
//
// Values produced from composite literals remember the expression they came
// from, so that a folded [][]int{{1}, {2}} substitutes []int{1} back into the
// generated code rather than an untyped rendering.
//
// # Example Usage
//
//	xs := value.FromSeq([]value.Value{value.FromInt(1), value.FromInt(2)})
//	pairs, _ := xs.Pairs()
//	for _, p := range pairs {
//	    fmt.Println(p.Key, p.Elem)
//	}
//
//	sum, err := value.Binary(token.ADD, value.FromInt(1), value.FromFloat(0.5))
//	// sum.String() == "1.5"
package value

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind describes the type of a Value.
type Kind int

const (
	// KindInvalid is the zero Value. It is returned alongside errors.
	KindInvalid Kind = iota

	// KindNil is a nil pointer, interface, slice or map from data.
	KindNil

	// KindBool is a boolean constant.
	KindBool

	// KindInt is an integer constant of arbitrary precision.
	KindInt

	// KindFloat is a floating-point constant.
	KindFloat

	// KindString is a string constant.
	KindString

	// KindSeq is an ordered sequence, from a slice or array literal or from
	// data.
	KindSeq

	// KindRange is the sequence 0..n-1 produced by ranging over an integer.
	KindRange

	// KindMap is a string keyed map. Structs converted with FromGo become
	// maps of their exported fields.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSeq:
		return "sequence"
	case KindRange:
		return "range"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an immutable compile-time value.
type Value struct {
	kind Kind
	c    constant.Value
	seq  []Value
	n    int64
	m    map[string]Value
	src  ast.Expr
}

// Invalid returns the zero Value.
func Invalid() Value { return Value{} }

// Nil returns the value of a nil reference.
func Nil() Value { return Value{kind: KindNil} }

// FromBool creates a boolean value.
func FromBool(b bool) Value {
	return Value{kind: KindBool, c: constant.MakeBool(b)}
}

// FromInt creates an integer value.
func FromInt(i int64) Value {
	return Value{kind: KindInt, c: constant.MakeInt64(i)}
}

// FromFloat creates a float value.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, c: constant.MakeFloat64(f)}
}

// FromString creates a string value.
func FromString(s string) Value {
	return Value{kind: KindString, c: constant.MakeString(s)}
}

// FromConst wraps a go/constant value. Unknown and complex constants give
// an invalid Value.
func FromConst(c constant.Value) Value {
	switch c.Kind() {
	case constant.Bool:
		return Value{kind: KindBool, c: c}
	case constant.Int:
		return Value{kind: KindInt, c: c}
	case constant.Float:
		return Value{kind: KindFloat, c: c}
	case constant.String:
		return Value{kind: KindString, c: c}
	}
	return Invalid()
}

// FromSeq creates a sequence.
func FromSeq(items []Value) Value {
	return Value{kind: KindSeq, seq: items}
}

// Range creates the sequence 0..n-1.
func Range(n int64) Value {
	if n < 0 {
		n = 0
	}
	return Value{kind: KindRange, n: n}
}

// FromMap creates a map value.
func FromMap(m map[string]Value) Value {
	return Value{kind: KindMap, m: m}
}

// FromGo converts Go data into a Value. Structs become maps of their
// exported fields, pointers and interfaces are followed, and anything
// without a counterpart (channels, funcs) gives an invalid Value.
func FromGo(v any) Value {
	if v == nil {
		return Nil()
	}
	if val, ok := v.(Value); ok {
		return val
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) Value {
	if !rv.IsValid() {
		return Nil()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return FromBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Value{kind: KindInt, c: constant.MakeUint64(rv.Uint())}
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float())
	case reflect.String:
		return FromString(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return Nil()
		}
		fallthrough
	case reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = fromReflect(rv.Index(i))
		}
		return FromSeq(items)
	case reflect.Map:
		if rv.IsNil() {
			return Nil()
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key()
			key := fmt.Sprint(k.Interface())
			if k.Kind() == reflect.String {
				key = k.String()
			}
			m[key] = fromReflect(iter.Value())
		}
		return FromMap(m)
	case reflect.Struct:
		t := rv.Type()
		m := make(map[string]Value, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() {
				m[f.Name] = fromReflect(rv.Field(i))
			}
		}
		return FromMap(m)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Nil()
		}
		return fromReflect(rv.Elem())
	}
	return Invalid()
}

// WithSource records the expression v was evaluated from.
func (v Value) WithSource(x ast.Expr) Value {
	v.src = x
	return v
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// IsScalar reports whether v is backed by a constant.
func (v Value) IsScalar() bool { return v.c != nil }

// Const returns the constant behind a scalar, or nil.
func (v Value) Const() constant.Value { return v.c }

// AsBool returns the boolean behind v.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return constant.BoolVal(v.c), true
}

// AsInt returns the integer behind v when it fits an int64.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return constant.Int64Val(v.c)
}

// AsString returns the string behind v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return constant.StringVal(v.c), true
}

// Chars splits a string into a sequence of single-character strings.
func (v Value) Chars() (Value, bool) {
	s, ok := v.AsString()
	if !ok {
		return Invalid(), false
	}
	items := make([]Value, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		items = append(items, FromString(string(r)))
	}
	return FromSeq(items), true
}

// IsZero reports whether v is the zero value of its type. Sequences are
// never zero since only nil slices are, and those convert to Nil. A map
// built from a struct is zero when all of its fields are.
func (v Value) IsZero() bool {
	switch v.kind {
	case KindNil, KindInvalid:
		return true
	case KindBool:
		return !constant.BoolVal(v.c)
	case KindInt, KindFloat:
		return constant.Sign(v.c) == 0
	case KindString:
		return constant.StringVal(v.c) == ""
	case KindRange:
		return v.n == 0
	case KindMap:
		if len(v.m) == 0 {
			return false
		}
		for _, x := range v.m {
			if !x.IsZero() {
				return false
			}
		}
		return true
	}
	return false
}

// Len returns the length of a string (in bytes), sequence, range or map.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindString:
		return len(constant.StringVal(v.c)), true
	case KindSeq:
		return len(v.seq), true
	case KindRange:
		return int(v.n), true
	case KindMap:
		return len(v.m), true
	case KindNil:
		return 0, true
	}
	return 0, false
}

// Pair is one step of iteration: the index (or map key) and the element.
type Pair struct {
	Key  Value
	Elem Value
}

// Pairs returns the elements of an iterable value in iteration order,
// following range: strings yield runes keyed by byte offset, integers
// count up from zero and maps go in sorted key order. ok is false when v is
// not iterable.
func (v Value) Pairs() (pairs []Pair, ok bool) {
	switch v.kind {
	case KindSeq:
		pairs = make([]Pair, len(v.seq))
		for i, x := range v.seq {
			pairs[i] = Pair{Key: FromInt(int64(i)), Elem: x}
		}
	case KindRange:
		pairs = make([]Pair, v.n)
		for i := range pairs {
			pairs[i] = Pair{Key: FromInt(int64(i)), Elem: FromInt(int64(i))}
		}
	case KindInt:
		n, fits := v.AsInt()
		if !fits {
			return nil, false
		}
		return Range(n).Pairs()
	case KindString:
		s := constant.StringVal(v.c)
		pairs = make([]Pair, 0, utf8.RuneCountInString(s))
		for i, r := range s {
			pairs = append(pairs, Pair{Key: FromInt(int64(i)), Elem: FromInt(int64(r))})
		}
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs = make([]Pair, len(keys))
		for i, k := range keys {
			pairs[i] = Pair{Key: FromString(k), Elem: v.m[k]}
		}
	case KindNil:
	default:
		return nil, false
	}
	return pairs, true
}

// Native converts v back into plain Go data: bool, int64, float64, string,
// []any or map[string]any. Integers beyond int64 are returned as their
// decimal text.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return constant.BoolVal(v.c)
	case KindInt:
		if i, ok := constant.Int64Val(v.c); ok {
			return i
		}
		return v.c.ExactString()
	case KindFloat:
		f, _ := constant.Float64Val(v.c)
		return f
	case KindString:
		return constant.StringVal(v.c)
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, x := range v.seq {
			out[i] = x.Native()
		}
		return out
	case KindRange:
		out := make([]any, v.n)
		for i := range out {
			out[i] = int64(i)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, x := range v.m {
			out[k] = x.Native()
		}
		return out
	}
	return nil
}

// String returns the text a Go program prints for v with fmt.Print.
func (v Value) String() string {
	switch v.kind {
	case KindInvalid:
		return "<invalid>"
	case KindNil:
		return "<nil>"
	case KindString:
		return constant.StringVal(v.c)
	case KindInt:
		return v.c.ExactString()
	case KindSeq, KindRange:
		parts := make([]string, 0, len(v.seq))
		pairs, _ := v.Pairs()
		for _, p := range pairs {
			parts = append(parts, p.Elem.String())
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindMap:
		pairs, _ := v.Pairs()
		parts := make([]string, 0, len(pairs))
		for _, p := range pairs {
			parts = append(parts, p.Key.String()+":"+p.Elem.String())
		}
		return "map[" + strings.Join(parts, " ") + "]"
	}
	return fmt.Sprint(v.Native())
}

// Expr converts v into a Go expression. Values carrying their source
// expression return it unchanged; scalars become literals. ok is false for
// values without a literal form.
func (v Value) Expr() (ast.Expr, bool) {
	if v.src != nil {
		return v.src, true
	}
	switch v.kind {
	case KindBool:
		return ast.NewIdent(strconv.FormatBool(constant.BoolVal(v.c))), true
	case KindInt:
		return signed(v.c, &ast.BasicLit{Kind: token.INT, Value: absConst(v.c).ExactString()}), true
	case KindFloat:
		f, _ := constant.Float64Val(absConst(v.c))
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return signed(v.c, &ast.BasicLit{Kind: token.FLOAT, Value: s}), true
	case KindString:
		return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(constant.StringVal(v.c))}, true
	}
	return nil, false
}

func absConst(c constant.Value) constant.Value {
	if constant.Sign(c) < 0 {
		return constant.UnaryOp(token.SUB, c, 0)
	}
	return c
}

// signed wraps the literal for |c| in a negation when c is negative.
func signed(c constant.Value, lit *ast.BasicLit) ast.Expr {
	if constant.Sign(c) < 0 {
		return &ast.UnaryExpr{Op: token.SUB, X: lit}
	}
	return lit
}
