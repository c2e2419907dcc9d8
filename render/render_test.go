package render

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type name string

func TestChars(t *testing.T) {
	if diff := cmp.Diff([]string{"h", "é", "!"}, Chars("hé!")); diff != "" {
		t.Errorf("Chars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, Chars(name("ab"))); diff != "" {
		t.Errorf("Chars of named string mismatch (-want +got):\n%s", diff)
	}
	if got := Chars(""); len(got) != 0 {
		t.Errorf("Chars(\"\") = %q", got)
	}
}

func TestIsZero(t *testing.T) {
	var nilPtr *struct{ X int }
	tests := []struct {
		v    any
		want bool
	}{
		{nil, true},
		{nilPtr, true},
		{0, true},
		{"", true},
		{struct{ X, Y int }{}, true},
		{[]int(nil), true},
		{1, false},
		{"x", false},
		{struct{ X, Y int }{0, 1}, false},
		{&struct{ X int }{}, false},
		{[]int{}, false},
	}
	for _, tt := range tests {
		if got := IsZero(tt.v); got != tt.want {
			t.Errorf("IsZero(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := NewWriter(&buf)
	rw.WriteString("<p>")
	Escape(rw, "a<b")
	Raw(rw, "<br>")
	JSON(rw, map[string]any{"q": "it's"})
	rw.WriteString("</p>")
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	want := `<p>a&lt;b<br>{"q":"it\u0027s"}</p>`
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if rw.Written() != int64(len(want)) {
		t.Errorf("Written() = %d, want %d", rw.Written(), len(want))
	}
	if NewWriter(rw) != rw {
		t.Error("NewWriter should not wrap a Writer twice")
	}
}

func TestJSONError(t *testing.T) {
	var buf bytes.Buffer
	rw := NewWriter(&buf)
	JSON(rw, func() {})
	rw.WriteString("after")
	if rw.Err() == nil {
		t.Fatal("expected an encoding error")
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q after an error", buf.String())
	}
}
