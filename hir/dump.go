package hir

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"strings"
)

// ExprString prints x as Go source on one line.
func ExprString(x ast.Expr) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, token.NewFileSet(), x); err != nil {
		return fmt.Sprintf("<%T>", x)
	}
	return buf.String()
}

// Dump renders nodes as an indented listing, one instruction per line.
func Dump(nodes []Node) string {
	var b strings.Builder
	dump(&b, nodes, 0)
	return b.String()
}

func identOr(id *ast.Ident) string {
	if id == nil {
		return "_"
	}
	return id.Name
}

func dump(b *strings.Builder, nodes []Node, depth int) {
	ind := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch n := n.(type) {
		case *Lit:
			fmt.Fprintf(b, "%sLit %q\n", ind, n.Text)
		case *Expr:
			fmt.Fprintf(b, "%sExpr %s\n", ind, ExprString(n.X))
		case *Safe:
			fmt.Fprintf(b, "%sSafe %s\n", ind, ExprString(n.X))
		case *JSON:
			kw := "JSON"
			if n.Pretty {
				kw = "JSONPretty"
			}
			fmt.Fprintf(b, "%s%s %s\n", ind, kw, ExprString(n.X))
		case *Local:
			names := make([]string, len(n.Names))
			for i, id := range n.Names {
				names[i] = id.Name
			}
			fmt.Fprintf(b, "%sLet %s = %s\n", ind, strings.Join(names, ", "), ExprString(n.X))
		case *Each:
			if n.Index == nil && n.Elem == nil {
				fmt.Fprintf(b, "%sEach range %s\n", ind, ExprString(n.Iter))
			} else {
				fmt.Fprintf(b, "%sEach %s, %s := range %s\n", ind, identOr(n.Index), identOr(n.Elem), ExprString(n.Iter))
			}
			dump(b, n.Body, depth+1)
			if n.Else != nil {
				fmt.Fprintf(b, "%sElse\n", ind)
				dump(b, n.Else, depth+1)
			}
			fmt.Fprintf(b, "%sEnd\n", ind)
		case *IfElse:
			for i, br := range n.Branches {
				kw := "If"
				if i > 0 {
					kw = "ElseIf"
				}
				fmt.Fprintf(b, "%s%s %s\n", ind, kw, ExprString(br.Cond))
				dump(b, br.Body, depth+1)
			}
			if n.Else != nil {
				fmt.Fprintf(b, "%sElse\n", ind)
				dump(b, n.Else, depth+1)
			}
			fmt.Fprintf(b, "%sEnd\n", ind)
		}
	}
}
