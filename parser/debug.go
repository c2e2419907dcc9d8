package parser

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"
)

// DebugString renders nodes as an indented tree, one node per line.
func DebugString(nodes []Node) string {
	var b strings.Builder
	writeNodes(&b, nodes, 0)
	return b.String()
}

func (w Ws) String() string {
	l, r := "", ""
	if w[0] {
		l = "~"
	}
	if w[1] {
		r = "~"
	}
	return l + "|" + r
}

func exprList(xs []ast.Expr) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = types.ExprString(x)
	}
	return strings.Join(parts, ", ")
}

func writeNodes(b *strings.Builder, nodes []Node, depth int) {
	for _, n := range nodes {
		writeNode(b, n, depth)
	}
}

func writeElse(b *strings.Builder, e *Else, depth int) {
	if e == nil {
		return
	}
	fmt.Fprintf(b, "%sElse(%s)\n", strings.Repeat("  ", depth), e.Ws)
	writeNodes(b, e.Body, depth+1)
}

func writeNode(b *strings.Builder, n Node, depth int) {
	ind := strings.Repeat("  ", depth)
	switch n := n.(type) {
	case *Lit:
		fmt.Fprintf(b, "%sLit(%q, %q, %q)\n", ind, n.Lead, n.Text, n.Trail)
	case *Expr:
		fmt.Fprintf(b, "%sExpr(%s, %s)\n", ind, n.Ws, types.ExprString(n.X))
	case *Safe:
		fmt.Fprintf(b, "%sSafe(%s, %s)\n", ind, n.Ws, types.ExprString(n.X))
	case *Local:
		names := make([]string, len(n.Names))
		for i, id := range n.Names {
			names[i] = id.Name
		}
		fmt.Fprintf(b, "%sLocal(%s, %s = %s)\n", ind, n.Ws, strings.Join(names, ", "), types.ExprString(n.X))
	case *Each:
		fmt.Fprintf(b, "%sEach(%s %s, %s)\n", ind, n.Open, n.Close, types.ExprString(n.Iter))
		writeNodes(b, n.Body, depth+1)
		writeElse(b, n.Else, depth)
	case *If:
		for i, br := range n.Branches {
			kw := "If"
			if i > 0 {
				kw = "ElseIf"
			}
			fmt.Fprintf(b, "%s%s(%s, %s)\n", ind, kw, br.Ws, types.ExprString(br.Cond))
			writeNodes(b, br.Body, depth+1)
		}
		writeElse(b, n.Else, depth)
		fmt.Fprintf(b, "%sEndIf(%s)\n", ind, n.Close)
	case *Unless:
		fmt.Fprintf(b, "%sUnless(%s %s, %s)\n", ind, n.Open, n.Close, types.ExprString(n.Cond))
		writeNodes(b, n.Body, depth+1)
		writeElse(b, n.Else, depth)
	case *With:
		fmt.Fprintf(b, "%sWith(%s %s, %s)\n", ind, n.Open, n.Close, types.ExprString(n.X))
		writeNodes(b, n.Body, depth+1)
		writeElse(b, n.Else, depth)
	case *Defined:
		fmt.Fprintf(b, "%sDefined(%s %s, %s, [%s])\n", ind, n.Open, n.Close, n.Name, exprList(n.Args))
		writeNodes(b, n.Body, depth+1)
	case *Partial:
		fmt.Fprintf(b, "%sPartial(%s, %s%s)\n", ind, n.Ws, n.Path, argsString(n.Args))
	case *PartialBlock:
		fmt.Fprintf(b, "%sPartialBlock(%s %s, %s%s)\n", ind, n.Open, n.Close, n.Path, argsString(n.Args))
		writeNodes(b, n.Body, depth+1)
	case *Block:
		fmt.Fprintf(b, "%sBlock(%s)\n", ind, n.Ws)
	case *Raw:
		fmt.Fprintf(b, "%sRaw(%s %s, %q, %q, %q)\n", ind, n.Open, n.Close, n.Lead, n.Text, n.Trail)
	case *Comment:
		fmt.Fprintf(b, "%sComment(%q)\n", ind, n.Text)
	case *AtHelper:
		fmt.Fprintf(b, "%sAt(%s, @%s, [%s])\n", ind, n.Ws, n.Name, exprList(n.Args))
	default:
		fmt.Fprintf(b, "%s%T\n", ind, n)
	}
}

func argsString(a Args) string {
	var parts []string
	if a.Scope != nil {
		parts = append(parts, types.ExprString(a.Scope))
	}
	for _, n := range a.Named {
		parts = append(parts, n.Name+" = "+types.ExprString(n.X))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, ", ")
}
