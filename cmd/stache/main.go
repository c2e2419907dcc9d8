package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/stache-go/stache"
	"github.com/stache-go/stache/loader"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("stache: ")

	if len(os.Args) > 1 && os.Args[1] == "repl" {
		os.Exit(cmdRepl(os.Args[2:]))
	}

	flag.Usage = func() {
		_, _ = fmt.Fprintln(os.Stderr, "Usage: stache [flags] [paths...]")
		_, _ = fmt.Fprintln(os.Stderr, "       stache repl [-data file.json]")
		_, _ = fmt.Fprintln(os.Stderr, "")
		_, _ = fmt.Fprintln(os.Stderr, "Generates one <file>.go next to each *.hbs template. Templates whose")
		_, _ = fmt.Fprintln(os.Stderr, "name starts with _ are partials and get no file of their own.")
		_, _ = fmt.Fprintln(os.Stderr, "")
		_, _ = fmt.Fprintln(os.Stderr, "Paths behave like Go patterns:")
		_, _ = fmt.Fprintln(os.Stderr, "  - ./...         recurse from cwd")
		_, _ = fmt.Fprintln(os.Stderr, "  - ./dir         only that directory (non-recursive)")
		_, _ = fmt.Fprintln(os.Stderr, "  - ./dir/...     recurse from that directory")
		_, _ = fmt.Fprintln(os.Stderr, "  - ./page.hbs    only that file")
		flag.PrintDefaults()
	}
	rootFlag := flag.String("root", "", "template root; partial names resolve against it (defaults to the go.mod directory above cwd)")
	dirFlag := flag.String("dir", "", "if set, only generate for this directory (non-recursive). Useful with go:generate.")
	typeFlag := flag.String("type", "", "receiver type of the generated method (single template only)")
	pkgFlag := flag.String("pkg", "", "package name of generated files (defaults to the directory name)")
	dumpFlag := flag.String("dump", "", "print the lowered template instead of generating: hir or dom")
	verbose := flag.Bool("v", false, "log every generated file")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	root := *rootFlag
	if root == "" {
		if root, err = findModuleRoot(cwd); err != nil {
			root = cwd
		}
	}
	if root, err = filepath.Abs(root); err != nil {
		log.Fatal(err)
	}

	switch *dumpFlag {
	case "", "hir", "dom":
	default:
		log.Fatalf("unknown -dump mode %q", *dumpFlag)
	}
	if strings.TrimSpace(*dirFlag) != "" && flag.NArg() != 0 {
		log.Fatal("cannot use -dir with positional paths")
	}

	patterns := flag.Args()
	if d := strings.TrimSpace(*dirFlag); d != "" {
		patterns = []string{d}
	}
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	paths, err := collectTemplates(cwd, patterns)
	if err != nil {
		log.Fatal(err)
	}
	if *typeFlag != "" && len(paths) != 1 {
		log.Fatalf("-type needs exactly one template, found %d", len(paths))
	}

	g := &generator{
		root:    root,
		typ:     *typeFlag,
		pkg:     *pkgFlag,
		dump:    *dumpFlag,
		verbose: *verbose,
		env: stache.NewEnvironment(loader.NewFS(os.DirFS(root)), stache.Config{
			DOM: *dumpFlag == "dom",
		}),
	}
	failed := false
	for _, pth := range paths {
		if err := g.file(pth); err != nil {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

type generator struct {
	root    string
	typ     string
	pkg     string
	dump    string
	verbose bool

	// env is shared by all templates, so common partials are parsed once.
	env *stache.Environment
}

func (g *generator) file(pth string) error {
	rel, err := filepath.Rel(g.root, pth)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%s is outside the template root %s", pth, g.root)
	}
	unit, err := g.env.Compile(filepath.ToSlash(rel))
	if err != nil {
		return err
	}
	dir, name := filepath.Split(pth)
	switch g.dump {
	case "hir":
		fmt.Printf("# %s\n%s", pth, unit.Dump())
		return nil
	case "dom":
		fmt.Printf("# %s\n%s", pth, unit.DOM.Dump())
		return nil
	}

	typ := g.typ
	if typ == "" {
		typ = typeName(name)
	}
	pkg := g.pkg
	if pkg == "" {
		pkg = packageName(filepath.Base(filepath.Clean(dir)))
	}
	src, err := unit.Source(pkg, typ)
	if err != nil {
		return fmt.Errorf("%s: %w", pth, err)
	}
	out := pth + ".go"
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return err
	}
	if g.verbose {
		log.Printf("wrote %s.go (%s.Render)", rel, typ)
	}
	return nil
}

// typeName derives an exported type name from a template file name:
// user-card.html.hbs becomes UserCard.
func typeName(file string) string {
	base, _, _ := strings.Cut(file, ".")
	var b strings.Builder
	upper := true
	for _, r := range base {
		if r == '-' || r == '_' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func packageName(dir string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(dir) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) && b.Len() > 0 {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "main"
	}
	return b.String()
}

func isTemplate(name string) bool {
	return strings.HasSuffix(name, ".hbs") && !strings.HasPrefix(name, "_")
}

func findModuleRoot(start string) (string, error) {
	d := start
	for {
		if _, err := os.Stat(filepath.Join(d, "go.mod")); err == nil {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", fmt.Errorf("could not find go.mod above %s", start)
		}
		d = parent
	}
}

func collectTemplates(cwd string, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, raw := range patterns {
		pat := strings.TrimSpace(raw)
		if pat == "" {
			continue
		}
		recursive := strings.HasSuffix(pat, "...")
		if recursive {
			pat = strings.TrimSuffix(strings.TrimSuffix(pat, "..."), "/")
			if pat == "" {
				pat = "."
			}
		}
		if !filepath.IsAbs(pat) {
			pat = filepath.Join(cwd, pat)
		}
		info, err := os.Stat(pat)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(pat)
			continue
		}
		if !recursive {
			entries, err := os.ReadDir(pat)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !e.IsDir() && isTemplate(e.Name()) {
					add(filepath.Join(pat, e.Name()))
				}
			}
			continue
		}
		err = filepath.WalkDir(pat, func(path string, de fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if de.IsDir() {
				name := de.Name()
				if path != pat && (name == "vendor" || name == "node_modules" || strings.HasPrefix(name, ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if isTemplate(de.Name()) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}
