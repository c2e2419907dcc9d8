package value

import (
	"go/token"
	"go/types"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBinaryUntypedSemantics(t *testing.T) {
	tests := []struct {
		op   token.Token
		x, y Value
		want string
	}{
		{token.QUO, FromInt(7), FromInt(2), "3"},
		{token.QUO, FromFloat(7), FromInt(2), "3.5"},
		{token.REM, FromInt(-7), FromInt(2), "-1"},
		{token.ADD, FromString("a"), FromString("b"), "ab"},
		{token.SHL, FromInt(1), FromInt(70), "1180591620717411303424"},
		{token.AND_NOT, FromInt(7), FromInt(2), "5"},
		{token.EQL, FromInt(1), FromFloat(1), "true"},
		{token.LSS, FromString("a"), FromString("b"), "true"},
	}
	for _, tt := range tests {
		got, err := Binary(tt.op, tt.x, tt.y)
		if err != nil {
			t.Fatalf("%v %s %v: %v", tt.x, tt.op, tt.y, err)
		}
		if got.String() != tt.want {
			t.Errorf("%v %s %v = %v, want %s", tt.x, tt.op, tt.y, got, tt.want)
		}
	}
}

func TestBinaryErrors(t *testing.T) {
	tests := []struct {
		op   token.Token
		x, y Value
	}{
		{token.QUO, FromInt(1), FromInt(0)},
		{token.REM, FromFloat(1), FromInt(2)},
		{token.ADD, FromString("a"), FromInt(1)},
		{token.EQL, FromBool(true), FromInt(1)},
		{token.SHL, FromInt(1), FromInt(1 << 20)},
		{token.ADD, FromSeq(nil), FromSeq(nil)},
	}
	for _, tt := range tests {
		if _, err := Binary(tt.op, tt.x, tt.y); err == nil {
			t.Errorf("%v %s %v: expected error", tt.x, tt.op, tt.y)
		}
	}
}

func TestPairs(t *testing.T) {
	collect := func(v Value) []string {
		pairs, ok := v.Pairs()
		if !ok {
			t.Fatalf("%v is not iterable", v)
		}
		var out []string
		for _, p := range pairs {
			out = append(out, p.Key.String()+"="+p.Elem.String())
		}
		return out
	}
	tests := []struct {
		name string
		v    Value
		want []string
	}{
		{"seq", FromSeq([]Value{FromString("a"), FromInt(2)}), []string{"0=a", "1=2"}},
		{"range", Range(3), []string{"0=0", "1=1", "2=2"}},
		{"int", FromInt(2), []string{"0=0", "1=1"}},
		{"string", FromString("hé!"), []string{"0=104", "1=233", "3=33"}},
		{"map", FromMap(map[string]Value{"b": FromInt(2), "a": FromInt(1)}), []string{"a=1", "b=2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, collect(tt.v)); diff != "" {
				t.Errorf("pairs mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if _, ok := FromBool(true).Pairs(); ok {
		t.Error("booleans must not be iterable")
	}
}

func TestChars(t *testing.T) {
	chars, ok := FromString("hé!").Chars()
	if !ok {
		t.Fatal("string has no chars")
	}
	pairs, _ := chars.Pairs()
	var got []string
	for _, p := range pairs {
		got = append(got, p.Key.String()+"="+p.Elem.String())
	}
	if diff := cmp.Diff([]string{"0=h", "1=é", "2=!"}, got); diff != "" {
		t.Errorf("chars mismatch (-want +got):\n%s", diff)
	}
	if _, ok := FromInt(1).Chars(); ok {
		t.Error("integers have no chars")
	}
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, true},
		{0, true},
		{"", true},
		{false, true},
		{struct{ X, Y int }{}, true},
		{struct{ X, Y int }{0, 1}, false},
		{"x", false},
		{[]int{}, false},
	}
	for _, tt := range tests {
		if got := FromGo(tt.v).IsZero(); got != tt.want {
			t.Errorf("IsZero(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestFromGo(t *testing.T) {
	type item struct {
		Name   string
		Price  float64
		hidden int
	}
	v := FromGo(map[string]any{
		"items": []item{{"a", 1.5, 1}},
		"count": uint8(3),
		"none":  (*item)(nil),
	})
	items, err := Attr(v, "items")
	if err != nil {
		t.Fatal(err)
	}
	first, err := Index(items, FromInt(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Attr(first, "hidden"); err == nil {
		t.Error("unexported fields must not be visible")
	}
	price, _ := Attr(first, "Price")
	if price.String() != "1.5" {
		t.Errorf("unexpected price %v", price)
	}
	count, _ := Attr(v, "count")
	if n, ok := count.AsInt(); !ok || n != 3 {
		t.Errorf("unexpected count %v", count)
	}
	none, _ := Attr(v, "none")
	if none.Kind() != KindNil {
		t.Errorf("expected nil, got %v", none.Kind())
	}
}

func TestExpr(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{FromBool(true), "true"},
		{FromInt(-3), "-3"},
		{FromFloat(2), "2.0"},
		{FromFloat(0.5), "0.5"},
		{FromString("a\"b"), `"a\"b"`},
	}
	for _, tt := range tests {
		x, ok := tt.v.Expr()
		if !ok {
			t.Fatalf("%v has no expression", tt.v)
		}
		if got := types.ExprString(x); got != tt.want {
			t.Errorf("Expr(%v) = %s, want %s", tt.v, got, tt.want)
		}
	}
	if _, ok := Range(2).Expr(); ok {
		t.Error("ranges have no literal form")
	}
}
