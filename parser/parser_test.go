package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	serrors "github.com/stache-go/stache/internal/errors"
)

func mustParse(t *testing.T, src string) *Template {
	t.Helper()
	tmpl, err := Parse("test.hbs", src, nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return tmpl
}

func parseErr(t *testing.T, src string) *serrors.Error {
	t.Helper()
	_, err := Parse("test.hbs", src, nil)
	if err == nil {
		t.Fatalf("expected error for %q", src)
	}
	var perr *serrors.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	return perr
}

func TestParseTree(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "text only",
			src:  "  hello  ",
			want: `Lit("  ", "hello", "  ")` + "\n",
		},
		{
			name: "trim both sides",
			src:  "{{~foo~}}",
			want: "Expr(~|~, foo)\n",
		},
		{
			name: "trim neighbours",
			src:  "  a  {{~ foo ~}}  b  ",
			want: `Lit("  ", "a", "")` + "\nExpr(~|~, foo)\n" + `Lit("", "b", "  ")` + "\n",
		},
		{
			name: "no trim keeps fringes",
			src:  "a {{ foo }} b",
			want: `Lit("", "a", " ")` + "\nExpr(|, foo)\n" + `Lit(" ", "b", "")` + "\n",
		},
		{
			name: "each",
			src:  "{{#each x}}body{{/each}}",
			want: "Each(| |, x)\n  " + `Lit("", "body", "")` + "\n",
		},
		{
			name: "each else",
			src:  "{{#each xs}}a{{else}}none{{/each}}",
			want: "Each(| |, xs)\n  " + `Lit("", "a", "")` + "\nElse(|)\n  " + `Lit("", "none", "")` + "\n",
		},
		{
			name: "if chain",
			src:  "{{#if a}}A{{else if b}}B{{else}}C{{/if}}",
			want: "If(|, a)\n  " + `Lit("", "A", "")` + "\nElseIf(|, b)\n  " + `Lit("", "B", "")` +
				"\nElse(|)\n  " + `Lit("", "C", "")` + "\nEndIf(|)\n",
		},
		{
			name: "trim across helper boundaries",
			src:  "a {{~#if x~}} b {{~/if~}} c",
			want: `Lit("", "a", "")` + "\nIf(~|~, x)\n  " + `Lit("", "b", "")` + "\nEndIf(~|~)\n" + `Lit("", "c", "")` + "\n",
		},
		{
			name: "with and unless",
			src:  "{{#with user}}{{name}}{{/with}}{{#unless ok}}no{{/unless}}",
			want: "With(| |, user)\n  Expr(|, name)\nUnless(| |, ok)\n  " + `Lit("", "no", "")` + "\n",
		},
		{
			name: "defined helper",
			src:  "{{#repeat 3, x}}y{{/repeat}}",
			want: "Defined(| |, repeat, [3, x])\n  " + `Lit("", "y", "")` + "\n",
		},
		{
			name: "safe",
			src:  "{{{ html }}}{{{~ x ~}}}",
			want: "Safe(|, html)\nSafe(~|~, x)\n",
		},
		{
			name: "local",
			src:  "{{ let a, b = f(x) }}",
			want: "Local(|, a, b = f(x))\n",
		},
		{
			name: "partial",
			src:  `{{> card item, title = "x" }}`,
			want: `Partial(|, card item, title = "x")` + "\n",
		},
		{
			name: "partial block",
			src:  "{{#> layout}}body{{/layout}}",
			want: "PartialBlock(| |, layout)\n  " + `Lit("", "body", "")` + "\n",
		},
		{
			name: "partial block reference",
			src:  "{{> @partial-block }}",
			want: "Block(|)\n",
		},
		{
			name: "raw",
			src:  "{{R}}{{ not parsed }}{{/R}}",
			want: `Raw(| |, "", "{{ not parsed }}", "")` + "\n",
		},
		{
			name: "raw trimmed",
			src:  "{{R~}}  x  {{~/R}}",
			want: `Raw(|~ ~|, "", "x", "")` + "\n",
		},
		{
			name: "long comment",
			src:  "a {{!-- x }} --}} b",
			want: `Lit("", "a", " ")` + "\n" + `Comment(" x }} ")` + "\n" + `Lit(" ", "b", "")` + "\n",
		},
		{
			name: "short comment",
			src:  "{{! note ~}}  x",
			want: `Comment(" note ")` + "\n" + `Lit("", "x", "")` + "\n",
		},
		{
			name: "escaped open",
			src:  `\{{ name }}`,
			want: `Lit("", "{{ name }}", "")` + "\n",
		},
		{
			name: "empty tag is text",
			src:  "a {{}} b",
			want: `Lit("", "a {{}} b", "")` + "\n",
		},
		{
			name: "delimiter inside string",
			src:  `{{ "}}" }}`,
			want: `Expr(|, "}}")` + "\n",
		},
		{
			name: "composite literal",
			src:  "{{ []int{1, 2}}}",
			want: "Expr(|, []int{…})\n",
		},
		{
			name: "at helper",
			src:  "{{ @json data }}",
			want: "At(|, @json, [data])\n",
		},
		{
			name: "identifier starting with R",
			src:  "{{Rows}}",
			want: "Expr(|, Rows)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DebugString(mustParse(t, tt.src).Nodes)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tree mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind serrors.ErrorKind
		lo   int
	}{
		{"helper mismatch", "{{#each x}}body{{/wrong}}", serrors.ErrHelperMismatch, 15},
		{"unterminated tag", "Hello {{ name", serrors.ErrUncompleted, 6},
		{"unclosed helper", "{{#if x}}body", serrors.ErrUncompleted, 0},
		{"stray close", "a{{/if}}", serrors.ErrHelperMismatch, 1},
		{"stray else", "a{{else}}b", serrors.ErrSyntax, 1},
		{"double else", "{{#if a}}x{{else}}y{{else}}z{{/if}}", serrors.ErrSyntax, 19},
		{"at helper arity", "{{ @json a, b }}", serrors.ErrAtHelperArgs, 3},
		{"bad let", "{{ let = 1 }}", serrors.ErrSyntax, 6},
		{"unterminated raw", "{{R}}abc", serrors.ErrUncompleted, 0},
		{"unterminated comment", "{{!-- abc", serrors.ErrUncompleted, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErr(t, tt.src)
			if err.Kind != tt.kind {
				t.Fatalf("expected kind %v, got %v (%v)", tt.kind, err.Kind, err)
			}
			if err.Span == nil || err.Span.Lo != tt.lo {
				t.Errorf("expected span starting at %d, got %+v", tt.lo, err.Span)
			}
			if err.Name != "test.hbs" || err.Source != tt.src {
				t.Errorf("error is missing template info: %+v", err)
			}
		})
	}
}

func TestParseBadExpressionSpan(t *testing.T) {
	src := "ab\n{{ 1 + }}"
	err := parseErr(t, src)
	if err.Kind != serrors.ErrBadExpression {
		t.Fatalf("expected bad expression, got %v", err.Kind)
	}
	// The span must point inside the tag on the second line.
	if err.Span.Lo < 6 || err.Span.Lo > 9 {
		t.Errorf("span %+v is outside the tag payload", err.Span)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 in %q", err.Error())
	}
}

func TestParseUnknownAtHelperSuggests(t *testing.T) {
	err := parseErr(t, "{{ @jsn x }}")
	if err.Kind != serrors.ErrUnknownHelper {
		t.Fatalf("expected unknown helper, got %v", err.Kind)
	}
	if !strings.Contains(err.Message, "did you mean `@json`") {
		t.Errorf("expected suggestion in %q", err.Message)
	}
}

func TestTemplatePartials(t *testing.T) {
	tmpl := mustParse(t, "{{> a}}{{#each x}}{{> b}}{{> a}}{{/each}}{{#> c}}{{> d}}{{/c}}")
	want := []string{"a", "b", "c", "d"}
	if diff := cmp.Diff(want, tmpl.Partials()); diff != "" {
		t.Errorf("partials mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRecursionLimit(t *testing.T) {
	src := strings.Repeat("{{#if x}}", maxRecursion+1) + strings.Repeat("{{/if}}", maxRecursion+1)
	err := parseErr(t, src)
	if err.Kind != serrors.ErrRecursionLimit {
		t.Fatalf("expected recursion limit, got %v", err.Kind)
	}
}
