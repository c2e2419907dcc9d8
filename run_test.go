package stache

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const runTemplate = `{{ let s = "hé" }}{{#each s}}[{{ index0 }}={{ this }}]{{/each}}` +
	`{{#each "ab"}}({{ this }}){{/each}}` +
	`<h1>{{ Title }}</h1>{{#each Items}}{{ index }}.{{ Name }}{{#if Done}}!{{/if}} {{/each}}` +
	`{{#with User}}{{ Name }}{{else}}anon{{/with}} {{#with At}}{{ X }}{{else}}origin{{/with}} ` +
	`{{ let xs = []int{1, 2} }}{{#each xs}}{{ this * 10 }};{{/each}}`

const runMain = `package main

import (
	"fmt"
	"os"
)

type Item struct {
	Name string
	Done bool
}

type User struct{ Name string }

type Point struct{ X, Y int }

type Page struct {
	Title string
	Items []Item
	User  *User
	At    Point
}

type (
	Folded   Page
	Unfolded Page
)

func main() {
	p := Page{Title: "<T>", Items: []Item{{"a", true}, {"b", false}}}
	if err := (*Folded)(&p).Render(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print("\n")
	if err := (*Unfolded)(&p).Render(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
`

type runItem struct {
	Name string
	Done bool
}

type runUser struct{ Name string }

type runPoint struct{ X, Y int }

type runPage struct {
	Title string
	Items []runItem
	User  *runUser
	At    runPoint
}

// TestGeneratedCodeRuns builds the template folded and unfolded into one
// program, runs it and compares both outputs with the preview.
func TestGeneratedCodeRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs a Go program")
	}
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not found")
	}
	root, err := filepath.Abs(".")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	files := map[string]string{
		"go.mod": "module example.com/run\n\ngo 1.21\n\n" +
			"require github.com/stache-go/stache v0.0.0\n\n" +
			"replace github.com/stache-go/stache => " + root + "\n",
		"main.go": runMain,
	}
	var preview string
	for _, noFold := range []bool{false, true} {
		env := newEnv(map[string]string{"page.html": runTemplate}, Config{NoFold: noFold})
		u, err := env.Compile("page.html")
		if err != nil {
			t.Fatalf("%+v", err)
		}
		typ := "Folded"
		if noFold {
			typ = "Unfolded"
		}
		src, err := u.Source("main", typ)
		if err != nil {
			t.Fatal(err)
		}
		files[strings.ToLower(typ)+".go"] = string(src)
		if !noFold {
			data := runPage{Title: "<T>", Items: []runItem{{"a", true}, {"b", false}}}
			if preview, err = u.Preview(data); err != nil {
				t.Fatal(err)
			}
		}
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cmd := exec.Command(gobin, "run", ".")
	cmd.Dir = dir
	// Everything the program needs is in the module cache already, since
	// this package was built from the same module graph.
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod", "GOPROXY=off", "GOSUMDB=off", "GOWORK=off")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("go run: %v\n%s", err, stderr.String())
	}

	want := "[0=h][1=é](a)(b)<h1>&lt;T&gt;</h1>1.a! 2.b anon origin 10;20;"
	if preview != want {
		t.Errorf("preview = %q, want %q", preview, want)
	}
	folded, unfolded, _ := strings.Cut(string(out), "\n")
	if folded != want {
		t.Errorf("folded program printed %q, want %q", folded, want)
	}
	if unfolded != want {
		t.Errorf("unfolded program printed %q, want %q", unfolded, want)
	}
}
