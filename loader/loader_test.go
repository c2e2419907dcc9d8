package loader

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestResolve(t *testing.T) {
	r := Resolver{Aliases: map[string]string{"layout": "shared/base"}, Ext: ".hbs"}
	tests := []struct {
		from, name string
		want       string
	}{
		{"", "index", "index.hbs"},
		{"pages/home.hbs", "card", "card.hbs"},
		{"pages/home.hbs", "./card", "pages/card.hbs"},
		{"pages/home.hbs", "../shared/nav", "shared/nav.hbs"},
		{"pages/home.hbs", "layout", "shared/base.hbs"},
		{"pages/home.hbs", "notes.txt", "notes.txt"},
		{"", "/abs/x", "abs/x.hbs"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.from, tt.name)
		if err != nil {
			t.Errorf("Resolve(%q, %q): %v", tt.from, tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.from, tt.name, got, tt.want)
		}
	}
	if _, err := r.Resolve("a.hbs", "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("escaping path: err = %v", err)
	}
}

func TestFS(t *testing.T) {
	fsys := fstest.MapFS{
		"index.hbs":       {Data: []byte("{{> ./parts/head}}body\n\n")},
		"parts/head.hbs":  {Data: []byte("<head>\t \n")},
		"parts/other.htm": {Data: []byte("x")},
	}
	l := NewFS(fsys)
	p, src, err := l.Load("", "index")
	if err != nil {
		t.Fatal(err)
	}
	if p != "index.hbs" || src != "{{> ./parts/head}}body" {
		t.Errorf("Load = %q, %q", p, src)
	}
	p, src, err = l.Load(p, "./parts/head")
	if err != nil {
		t.Fatal(err)
	}
	if p != "parts/head.hbs" || src != "<head>" {
		t.Errorf("Load = %q, %q", p, src)
	}
	if _, _, err := l.Load("", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}

func TestMap(t *testing.T) {
	l := NewMap(map[string]string{"a": "A \n", "dir/b": "B"})
	if _, src, err := l.Load("", "a"); err != nil || src != "A" {
		t.Errorf("Load(a) = %q, %v", src, err)
	}
	if p, _, err := l.Load("dir/x", "./b"); err != nil || p != "dir/b" {
		t.Errorf("Load(./b) = %q, %v", p, err)
	}
	if _, _, err := l.Load("", "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(c): err = %v", err)
	}
}

func TestFunc(t *testing.T) {
	var l Loader = Func(func(from, name string) (string, string, error) {
		return name, "src of " + name, nil
	})
	if p, src, _ := l.Load("", "x"); p != "x" || src != "src of x" {
		t.Errorf("Load = %q, %q", p, src)
	}
}
