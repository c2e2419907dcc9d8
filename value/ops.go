package value

import (
	"fmt"
	"go/constant"
	"go/token"
)

// maxShift bounds shift counts so a stray 1 << 1e9 cannot exhaust memory.
const maxShift = 1 << 12

func isNumeric(v Value) bool {
	return v.kind == KindInt || v.kind == KindFloat
}

func isZero(v Value) bool {
	return isNumeric(v) && constant.Sign(v.c) == 0
}

func mismatch(op token.Token, x, y Value) error {
	return fmt.Errorf("invalid operation: operator %s not defined on %s and %s", op, x.kind, y.kind)
}

// Binary applies op to x and y following the rules for untyped Go
// constants. Integer division truncates and comparing a string with a
// number is an error.
func Binary(op token.Token, x, y Value) (Value, error) {
	if !x.IsScalar() || !y.IsScalar() {
		return Invalid(), mismatch(op, x, y)
	}
	switch op {
	case token.EQL, token.NEQ:
		if x.kind != y.kind && !(isNumeric(x) && isNumeric(y)) {
			return Invalid(), mismatch(op, x, y)
		}
		return FromBool(constant.Compare(x.c, op, y.c)), nil
	case token.LSS, token.LEQ, token.GTR, token.GEQ:
		ok := isNumeric(x) && isNumeric(y) || x.kind == KindString && y.kind == KindString
		if !ok {
			return Invalid(), mismatch(op, x, y)
		}
		return FromBool(constant.Compare(x.c, op, y.c)), nil
	case token.LAND, token.LOR:
		if x.kind != KindBool || y.kind != KindBool {
			return Invalid(), mismatch(op, x, y)
		}
		return FromConst(constant.BinaryOp(x.c, op, y.c)), nil
	case token.SHL, token.SHR:
		if x.kind != KindInt || y.kind != KindInt {
			return Invalid(), mismatch(op, x, y)
		}
		s, ok := constant.Uint64Val(y.c)
		if !ok || s > maxShift {
			return Invalid(), fmt.Errorf("invalid shift count %s", y)
		}
		return FromConst(constant.Shift(x.c, op, uint(s))), nil
	case token.ADD:
		if x.kind == KindString && y.kind == KindString {
			return FromConst(constant.BinaryOp(x.c, op, y.c)), nil
		}
		fallthrough
	case token.SUB, token.MUL:
		if !isNumeric(x) || !isNumeric(y) {
			return Invalid(), mismatch(op, x, y)
		}
		return FromConst(constant.BinaryOp(x.c, op, y.c)), nil
	case token.QUO:
		if !isNumeric(x) || !isNumeric(y) {
			return Invalid(), mismatch(op, x, y)
		}
		if isZero(y) {
			return Invalid(), fmt.Errorf("invalid operation: division by zero")
		}
		if x.kind == KindInt && y.kind == KindInt {
			op = token.QUO_ASSIGN
		}
		return FromConst(constant.BinaryOp(x.c, op, y.c)), nil
	case token.REM, token.AND, token.OR, token.XOR, token.AND_NOT:
		if x.kind != KindInt || y.kind != KindInt {
			return Invalid(), mismatch(op, x, y)
		}
		if op == token.REM && isZero(y) {
			return Invalid(), fmt.Errorf("invalid operation: division by zero")
		}
		return FromConst(constant.BinaryOp(x.c, op, y.c)), nil
	}
	return Invalid(), fmt.Errorf("unsupported operator %s", op)
}

// Unary applies a unary operator.
func Unary(op token.Token, x Value) (Value, error) {
	var ok bool
	switch op {
	case token.NOT:
		ok = x.kind == KindBool
	case token.ADD, token.SUB:
		ok = isNumeric(x)
	case token.XOR:
		ok = x.kind == KindInt
	}
	if !ok {
		return Invalid(), fmt.Errorf("invalid operation: operator %s not defined on %s", op, x.kind)
	}
	return FromConst(constant.UnaryOp(op, x.c, 0)), nil
}

// Truth returns the boolean behind a condition. Only booleans are
// conditions, as in Go.
func Truth(v Value) (bool, error) {
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("non-boolean condition of kind %s", v.kind)
	}
	return b, nil
}

// Index returns x[i]. Indexing a string yields the byte value.
func Index(x, i Value) (Value, error) {
	if x.kind == KindMap {
		key, ok := i.AsString()
		if !ok {
			return Invalid(), fmt.Errorf("map index must be a string, got %s", i.kind)
		}
		v, ok := x.m[key]
		if !ok {
			return Invalid(), fmt.Errorf("key %q not present", key)
		}
		return v, nil
	}
	n, ok := i.AsInt()
	if !ok {
		return Invalid(), fmt.Errorf("index must be an integer, got %s", i.kind)
	}
	size, ok := x.Len()
	if !ok || x.kind == KindNil {
		return Invalid(), fmt.Errorf("cannot index %s", x.kind)
	}
	if n < 0 || n >= int64(size) {
		return Invalid(), fmt.Errorf("index %d out of range [0:%d]", n, size)
	}
	switch x.kind {
	case KindString:
		return FromInt(int64(constant.StringVal(x.c)[n])), nil
	case KindRange:
		return FromInt(n), nil
	}
	return x.seq[n], nil
}

// Slice returns x[lo:hi] for strings and sequences. A negative bound means
// the bound was omitted.
func Slice(x Value, lo, hi int) (Value, error) {
	size, ok := x.Len()
	if !ok || x.kind == KindMap || x.kind == KindNil {
		return Invalid(), fmt.Errorf("cannot slice %s", x.kind)
	}
	if lo < 0 {
		lo = 0
	}
	if hi < 0 {
		hi = size
	}
	if lo > hi || hi > size {
		return Invalid(), fmt.Errorf("slice bounds out of range [%d:%d] with length %d", lo, hi, size)
	}
	switch x.kind {
	case KindString:
		return FromString(constant.StringVal(x.c)[lo:hi]), nil
	case KindRange:
		items := make([]Value, 0, hi-lo)
		for i := lo; i < hi; i++ {
			items = append(items, FromInt(int64(i)))
		}
		return FromSeq(items), nil
	}
	return FromSeq(x.seq[lo:hi]), nil
}

// Attr returns the named field of a map value.
func Attr(x Value, name string) (Value, error) {
	if x.kind != KindMap {
		return Invalid(), fmt.Errorf("%s has no field %s", x.kind, name)
	}
	v, ok := x.m[name]
	if !ok {
		return Invalid(), fmt.Errorf("no field or key %s", name)
	}
	return v, nil
}

// Convert applies a Go conversion to a basic type.
func Convert(typ string, x Value) (Value, error) {
	switch typ {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "rune", "byte":
		if !isNumeric(x) {
			break
		}
		c := constant.ToInt(x.c)
		if c.Kind() != constant.Int {
			return Invalid(), fmt.Errorf("cannot convert %s to %s: truncated", x, typ)
		}
		return FromConst(c), nil
	case "float32", "float64":
		if !isNumeric(x) {
			break
		}
		return FromConst(constant.ToFloat(x.c)), nil
	case "string":
		if x.kind == KindString {
			return x, nil
		}
		if n, ok := x.AsInt(); ok {
			return FromString(string(rune(n))), nil
		}
	case "bool":
		if x.kind == KindBool {
			return x, nil
		}
	}
	return Invalid(), fmt.Errorf("cannot convert %s to %s", x.kind, typ)
}
