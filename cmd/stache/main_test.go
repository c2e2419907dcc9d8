package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTypeName(t *testing.T) {
	tests := map[string]string{
		"page.hbs":           "Page",
		"user-card.html.hbs": "UserCard",
		"order_list.hbs":     "OrderList",
	}
	for in, want := range tests {
		if got := typeName(in); got != want {
			t.Errorf("typeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"views":   "views",
		"My-View": "myview",
		"2fa":     "fa",
		"---":     "main",
	}
	for in, want := range tests {
		if got := packageName(in); got != want {
			t.Errorf("packageName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollectTemplates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.hbs", "_partial.hbs", "sub/b.html.hbs", "sub/c.txt", ".hidden/d.hbs"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := collectTemplates(dir, []string{"./..."})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.hbs"), filepath.Join(dir, "sub/b.html.hbs")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recursive mismatch (-want +got):\n%s", diff)
	}
	got, err = collectTemplates(dir, []string{"."})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "a.hbs")}, got); diff != "" {
		t.Errorf("directory mismatch (-want +got):\n%s", diff)
	}
}

func TestIncomplete(t *testing.T) {
	if !incomplete("{{#each Items}}") {
		t.Error("open helper not incomplete")
	}
	if incomplete("{{#each Items}}x{{/each}}") {
		t.Error("closed helper incomplete")
	}
	if incomplete("{{ 1 + }}") {
		t.Error("bad expression reported as incomplete")
	}
}
