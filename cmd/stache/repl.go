package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/stache-go/stache"
	"github.com/stache-go/stache/codegen"
)

const (
	historyFile = ".stache_history"
	promptMain  = "stache> "
	promptCont  = "...... "
	replName    = "repl.html"
)

const replHelp = `Type a template to see its HIR, Go code and rendering.
Commands:
  :data {json}   set the template data
  :dom           toggle the DOM program listing
  :quit          leave`

type repl struct {
	data    any
	showDOM bool
}

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	dataFile := fs.String("data", "", "JSON file with the template data")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	r := &repl{data: map[string]any{}}
	if *dataFile != "" {
		b, err := os.ReadFile(*dataFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := r.setData(string(b)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	fmt.Println(replHelp)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		src, ok := readTemplate(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			cmd, rest, _ := strings.Cut(trimmed, " ")
			switch cmd {
			case ":quit":
				return 0
			case ":dom":
				r.showDOM = !r.showDOM
				fmt.Printf("dom listing %v\n", r.showDOM)
			case ":data":
				if err := r.setData(rest); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}
		r.eval(src)
	}
}

func (r *repl) setData(src string) error {
	var data any
	if err := json.Unmarshal([]byte(src), &data); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	r.data = data
	return nil
}

func (r *repl) eval(src string) {
	env := stache.NewEnvironment(nil, stache.Config{DOM: r.showDOM})
	if err := env.AddTemplate(replName, src); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		return
	}
	unit, err := env.Compile(replName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		return
	}
	fmt.Print("-- hir\n", unit.Dump())
	fmt.Print("-- go\n", codegen.Method(unit.Nodes, codegen.Options{Escape: unit.Escape}))
	if unit.DOM != nil {
		fmt.Print("-- dom\n", unit.DOM.Dump())
	}
	out, err := unit.Preview(r.data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return
	}
	fmt.Print("-- output\n", out, "\n")
}

// readTemplate reads lines until they form a template whose tags are all
// closed. A line ending in a backslash also continues.
func readTemplate(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if strings.HasSuffix(line, "\\") {
			b.WriteString(strings.TrimSuffix(line, "\\"))
			continue
		}
		b.WriteString(line)
		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !incomplete(src) {
			return src, true
		}
	}
}

// incomplete reports whether src fails to parse only because a tag or
// helper is still open.
func incomplete(src string) bool {
	err := stache.NewEnvironment(nil, stache.Config{}).AddTemplate(replName, src)
	var serr *stache.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Kind == stache.ErrUncompleted
}
