// Package parser turns template source into a tree of Nodes.
//
// The parser is a scanner over `{{` openings. Each tag kind has its own
// sub-parser that either produces a node, reports errRetry when the `{{` turns
// out not to start a tag, or fails with a fatal error. Whitespace control is
// resolved while scanning: the text before a tag is held back until the tag's
// `~` markers are known.
package parser

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	serrors "github.com/stache-go/stache/internal/errors"
	"github.com/stache-go/stache/internal/suggest"
	"github.com/stache-go/stache/lexer"
	"github.com/stache-go/stache/syntax"
)

const maxRecursion = 150

// errRetry reports that a `{{` does not start a tag and the scanner should
// treat it as text.
var errRetry = errors.New("not a tag")

// AtHelpers lists the builtin at-helpers and their arity.
var AtHelpers = map[string]int{
	"json":        1,
	"json_pretty": 1,
}

// Parser parses one template.
type Parser struct {
	name     string
	src      string
	fset     *token.FileSet
	skipLead bool
	depth    int
}

type closerKind int

const (
	closeEnd closerKind = iota
	closeElse
)

// closer is a tag that ends the body currently being scanned.
type closer struct {
	kind    closerKind
	name    string
	elseIf  bool
	cond    string
	condOff int
	ws      Ws
	span    Span
	next    lexer.Cursor
}

// New creates a parser. Expressions are parsed into fset, which may be shared
// between the templates of one compilation.
func New(name, src string, fset *token.FileSet) *Parser {
	if fset == nil {
		fset = token.NewFileSet()
	}
	return &Parser{name: name, src: src, fset: fset}
}

// Parse parses a template. Errors are *errors.Error values carrying the
// template name, source and span.
func Parse(name, src string, fset *token.FileSet) (*Template, error) {
	return New(name, src, fset).Parse()
}

// Parse runs the parser over the whole source.
func (p *Parser) Parse() (*Template, error) {
	nodes, cl, _, err := p.eat(lexer.New(p.src))
	if err == nil && cl != nil {
		if cl.kind == closeElse {
			err = serrors.Errorf(serrors.ErrSyntax, cl.span, "unexpected `else` outside of a helper")
		} else {
			err = serrors.Errorf(serrors.ErrHelperMismatch, cl.span, "unexpected closing tag `{{/%s}}`", cl.name)
		}
	}
	if err != nil {
		return nil, err.WithName(p.name).WithSource(p.src)
	}
	return &Template{Name: p.name, Source: p.src, Nodes: nodes}, nil
}

// eat scans nodes until the end of input or a closing tag, which is returned
// to the caller together with the cursor after it.
func (p *Parser) eat(c lexer.Cursor) ([]Node, *closer, lexer.Cursor, *serrors.Error) {
	var nodes []Node
	pending := ""
	litLo := c.Off
	scan := c
	for {
		i := scan.FindString("{{")
		if i < 0 {
			end := scan.Advance(scan.Len())
			nodes = p.pushLit(nodes, pending+scan.Rest, litLo, end.Off, false)
			return nodes, nil, end, nil
		}
		if i > 0 && scan.Rest[i-1] == '\\' {
			pending += scan.Rest[:i-1] + "{{"
			scan = scan.Advance(i + 2)
			continue
		}
		text := pending + scan.Rest[:i]
		at := scan.Advance(i)

		cl, err := p.closeTag(at)
		if err != nil {
			return nil, nil, c, err
		}
		if cl != nil {
			nodes = p.pushLit(nodes, text, litLo, at.Off, cl.ws[0])
			return nodes, cl, cl.next, nil
		}

		saved := p.skipLead
		withLit := p.pushLit(nodes, text, litLo, at.Off, openTrim(at))
		next, node, tagErr := p.tag(at)
		if errors.Is(tagErr, errRetry) {
			p.skipLead = saved
			pending = text + "{{"
			scan = at.Advance(2)
			continue
		}
		if tagErr != nil {
			var fatal *serrors.Error
			if errors.As(tagErr, &fatal) {
				return nil, nil, c, fatal
			}
			return nil, nil, c, serrors.Errorf(serrors.ErrSyntax, at.SpanN(2), "%v", tagErr)
		}
		nodes = append(withLit, node)
		p.skipLead = trailingTrim(node)
		pending = ""
		litLo = next.Off
		scan = next
	}
}

// pushLit appends the text before a tag, dropping whitespace requested by the
// previous tag's right marker and, when trimRight is set, by the next tag's
// left marker.
func (p *Parser) pushLit(nodes []Node, text string, lo, hi int, trimRight bool) []Node {
	if p.skipLead {
		text = lexer.TrimLeft(text)
		p.skipLead = false
	}
	if trimRight {
		text = lexer.TrimRight(text)
	}
	if text == "" {
		return nodes
	}
	lead, core, trail := lexer.Trim(text)
	return append(nodes, &Lit{Lead: lead, Text: core, Trail: trail, span: syntax.NewSpan(lo, hi)})
}

func openTrim(at lexer.Cursor) bool {
	if at.StartsWith("{{{") {
		return at.At(3) == '~'
	}
	return at.At(2) == '~'
}

func trailingTrim(n Node) bool {
	switch n := n.(type) {
	case *Expr:
		return n.Ws[1]
	case *Safe:
		return n.Ws[1]
	case *Local:
		return n.Ws[1]
	case *Each:
		return n.Close[1]
	case *If:
		return n.Close[1]
	case *Unless:
		return n.Close[1]
	case *With:
		return n.Close[1]
	case *Defined:
		return n.Close[1]
	case *Partial:
		return n.Ws[1]
	case *PartialBlock:
		return n.Close[1]
	case *Block:
		return n.Ws[1]
	case *Raw:
		return n.Close[1]
	case *Comment:
		return n.Ws[1]
	case *AtHelper:
		return n.Ws[1]
	}
	return false
}

// payload finds the end of the tag opened at start whose content begins at c.
func (p *Parser) payload(start, c lexer.Cursor, delim string) (inner string, off int, next lexer.Cursor, rtrim bool, err *serrors.Error) {
	end := lexer.TagEnd(c.Rest, delim)
	if end < 0 {
		return "", 0, c, false, serrors.Errorf(serrors.ErrUncompleted, start.SpanN(len(delim)), "tag is not closed, expected `%s`", delim)
	}
	inner = c.Rest[:end]
	if strings.HasSuffix(inner, "~") {
		rtrim = true
		inner = inner[:len(inner)-1]
	}
	return inner, c.Off, c.Advance(end + len(delim)), rtrim, nil
}

func isKeyword(s, kw string) bool {
	if !strings.HasPrefix(s, kw) {
		return false
	}
	rest := s[len(kw):]
	return rest == "" || lexer.IsWhitespace(rest[0]) || rest[0] == '~' || rest[0] == '}'
}

// closeTag recognizes `{{/name}}` and `{{else ...}}`.
func (p *Parser) closeTag(at lexer.Cursor) (*closer, *serrors.Error) {
	c := at.Advance(2)
	if at.StartsWith("{{{") {
		return nil, nil
	}
	var ws Ws
	if c.At(0) == '~' {
		ws[0] = true
		c = c.Advance(1)
	}
	switch {
	case c.At(0) == '/':
		inner, off, next, rtrim, err := p.payload(at, c.Advance(1), "}}")
		if err != nil {
			return nil, err
		}
		lead, name, _ := lexer.Trim(inner)
		if name == "" || lexer.Path(name) != len(name) {
			return nil, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(off+len(lead), off+len(inner)), "expected helper name in closing tag")
		}
		ws[1] = rtrim
		return &closer{kind: closeEnd, name: name, ws: ws, span: next.Span(at), next: next}, nil
	case isKeyword(c.SkipWS().Rest, "else"):
		kw := c.SkipWS()
		inner, off, next, rtrim, err := p.payload(at, kw.Advance(len("else")), "}}")
		if err != nil {
			return nil, err
		}
		ws[1] = rtrim
		cl := &closer{kind: closeElse, ws: ws, span: next.Span(at), next: next}
		lead, core, _ := lexer.Trim(inner)
		switch {
		case core == "":
		case isKeyword(core, "if"):
			cl.elseIf = true
			cl.cond = core[len("if"):]
			cl.condOff = off + len(lead) + len("if")
		default:
			return nil, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(off+len(lead), off+len(lead)+len(core)), "expected `else` or `else if`")
		}
		return cl, nil
	}
	return nil, nil
}

// tag dispatches on the byte after the opening delimiter.
func (p *Parser) tag(at lexer.Cursor) (lexer.Cursor, Node, error) {
	if at.StartsWith("{{{") {
		return p.safe(at)
	}
	c := at.Advance(2)
	var ws Ws
	if c.At(0) == '~' {
		ws[0] = true
		c = c.Advance(1)
	}
	switch c.At(0) {
	case '!':
		return p.comment(at, c.Advance(1), ws)
	case '#':
		if c.At(1) == '>' {
			return p.partialBlock(at, c.Advance(2), ws)
		}
		return p.helper(at, c.Advance(1), ws)
	case '>':
		return p.partial(at, c.Advance(1), ws)
	case 'R':
		if rest := c.Advance(1).SkipWS(); rest.StartsWith("}}") || rest.StartsWith("~}}") {
			return p.raw(at, c.Advance(1), ws)
		}
	}
	return p.expr(at, c, ws)
}

func (p *Parser) safe(at lexer.Cursor) (lexer.Cursor, Node, error) {
	c := at.Advance(3)
	var ws Ws
	if c.At(0) == '~' {
		ws[0] = true
		c = c.Advance(1)
	}
	inner, off, next, rtrim, err := p.payload(at, c, "}}}")
	if err != nil {
		return c, nil, err
	}
	if lexer.IsAllWhitespace(inner) {
		return c, nil, errRetry
	}
	ws[1] = rtrim
	x, xerr := p.parseExpr(inner, off)
	if xerr != nil {
		return c, nil, xerr
	}
	return next, &Safe{Ws: ws, X: x, span: next.Span(at)}, nil
}

func (p *Parser) expr(at, c lexer.Cursor, ws Ws) (lexer.Cursor, Node, error) {
	inner, off, next, rtrim, err := p.payload(at, c, "}}")
	if err != nil {
		return c, nil, err
	}
	if lexer.IsAllWhitespace(inner) {
		return c, nil, errRetry
	}
	ws[1] = rtrim
	lead, core, _ := lexer.Trim(inner)
	coreOff := off + len(lead)
	switch {
	case core[0] == '@':
		return p.atHelper(at, next, core, coreOff, ws)
	case isKeyword(core, "let"):
		return p.local(at, next, core, coreOff, ws)
	}
	x, xerr := p.parseExpr(core, coreOff)
	if xerr != nil {
		return c, nil, xerr
	}
	return next, &Expr{Ws: ws, X: x, span: next.Span(at)}, nil
}

func (p *Parser) local(at, next lexer.Cursor, core string, off int, ws Ws) (lexer.Cursor, Node, error) {
	rest := core[len("let"):]
	off += len("let")
	names, rhs, ok := lexer.Assign(rest)
	if !ok {
		return next, nil, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(off, off+len(rest)), "expected `let name = expression`")
	}
	local := &Local{Ws: ws, span: next.Span(at)}
	for _, n := range names {
		local.Names = append(local.Names, ast.NewIdent(n.Text))
	}
	x, err := p.parseExpr(rhs.Text, off+rhs.Off)
	if err != nil {
		return next, nil, err
	}
	local.X = x
	return next, local, nil
}

func (p *Parser) atHelper(at, next lexer.Cursor, core string, off int, ws Ws) (lexer.Cursor, Node, error) {
	n := lexer.Ident(core[1:])
	name := core[1 : 1+n]
	nameSpan := syntax.NewSpan(off, off+1+n)
	arity, ok := AtHelpers[name]
	if !ok {
		msg := fmt.Sprintf("unknown at-helper `@%s`", name)
		if s := suggest.Closest(name, atHelperNames()); s != "" {
			msg += fmt.Sprintf(", did you mean `@%s`?", s)
		}
		return next, nil, serrors.NewError(serrors.ErrUnknownHelper, msg).WithSpan(nameSpan)
	}
	args, err := p.parseExprList(core[1+n:], off+1+n)
	if err != nil {
		return next, nil, err
	}
	if len(args) != arity {
		return next, nil, serrors.Errorf(serrors.ErrAtHelperArgs, nameSpan, "`@%s` takes %d argument, got %d", name, arity, len(args))
	}
	return next, &AtHelper{Ws: ws, Name: name, Args: args, span: next.Span(at)}, nil
}

func atHelperNames() []string {
	names := make([]string, 0, len(AtHelpers))
	for name := range AtHelpers {
		names = append(names, name)
	}
	return names
}

func (p *Parser) comment(at, c lexer.Cursor, ws Ws) (lexer.Cursor, Node, error) {
	if c.StartsWith("--") {
		body := c.Advance(2)
		for i := 0; ; {
			j := strings.Index(body.Rest[i:], "--")
			if j < 0 {
				return c, nil, serrors.Errorf(serrors.ErrUncompleted, at.SpanN(2), "comment is not closed, expected `--}}`")
			}
			i += j
			tail := body.Advance(i + 2)
			switch {
			case tail.StartsWith("}}"):
				next := tail.Advance(2)
				return next, &Comment{Ws: ws, Text: body.Rest[:i], span: next.Span(at)}, nil
			case tail.StartsWith("~}}"):
				ws[1] = true
				next := tail.Advance(3)
				return next, &Comment{Ws: ws, Text: body.Rest[:i], span: next.Span(at)}, nil
			}
			i++
		}
	}
	end := c.FindString("}}")
	if end < 0 {
		return c, nil, serrors.Errorf(serrors.ErrUncompleted, at.SpanN(2), "comment is not closed, expected `}}`")
	}
	text := c.Rest[:end]
	if strings.HasSuffix(text, "~") {
		ws[1] = true
		text = text[:len(text)-1]
	}
	next := c.Advance(end + 2)
	return next, &Comment{Ws: ws, Text: text, span: next.Span(at)}, nil
}

func (p *Parser) raw(at, c lexer.Cursor, ws Ws) (lexer.Cursor, Node, error) {
	_, _, start, rtrim, err := p.payload(at, c, "}}")
	if err != nil {
		return c, nil, err
	}
	open := Ws{ws[0], rtrim}
	for body := start; ; {
		j := body.FindString("{{")
		if j < 0 {
			return c, nil, serrors.Errorf(serrors.ErrUncompleted, start.Span(at), "raw block is not closed, expected `{{/R}}`")
		}
		tag := body.Advance(j)
		body = tag.Advance(2)
		k := body
		var close Ws
		if k.At(0) == '~' {
			close[0] = true
			k = k.Advance(1)
		}
		if !k.StartsWith("/R") {
			continue
		}
		k = k.Advance(2).SkipWS()
		switch {
		case k.StartsWith("~}}"):
			close[1] = true
			k = k.Advance(3)
		case k.StartsWith("}}"):
			k = k.Advance(2)
		default:
			continue
		}
		text := p.src[start.Off:tag.Off]
		if open[1] {
			text = lexer.TrimLeft(text)
		}
		if close[0] {
			text = lexer.TrimRight(text)
		}
		lead, core, trail := lexer.Trim(text)
		return k, &Raw{Open: open, Close: close, Lead: lead, Text: core, Trail: trail, span: k.Span(at)}, nil
	}
}

func (p *Parser) enter(span Span) *serrors.Error {
	p.depth++
	if p.depth > maxRecursion {
		return serrors.Errorf(serrors.ErrRecursionLimit, span, "template exceeds maximum recursion limits")
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// body scans the body of a block helper opened by the tag spanning open.
func (p *Parser) body(open Span, name string, trim bool, c lexer.Cursor) ([]Node, *closer, *serrors.Error) {
	p.skipLead = trim
	nodes, cl, _, err := p.eat(c)
	if err != nil {
		return nil, nil, err
	}
	if cl == nil {
		return nil, nil, serrors.Errorf(serrors.ErrUncompleted, open, "helper `%s` is not closed, expected `{{/%s}}`", name, name)
	}
	return nodes, cl, nil
}

func mismatch(cl *closer, name string) *serrors.Error {
	return serrors.Errorf(serrors.ErrHelperMismatch, cl.span, "expected `{{/%s}}`, found `{{/%s}}`", name, cl.name)
}

func (p *Parser) helper(at, c lexer.Cursor, ws Ws) (lexer.Cursor, Node, error) {
	n := lexer.Ident(c.Rest)
	if n == 0 {
		return c, nil, serrors.Errorf(serrors.ErrSyntax, at.SpanN(3), "expected helper name after `{{#`")
	}
	name := c.Rest[:n]
	inner, off, next, rtrim, err := p.payload(at, c.Advance(n), "}}")
	if err != nil {
		return c, nil, err
	}
	openSpan := next.Span(at)
	if err := p.enter(openSpan); err != nil {
		return c, nil, err
	}
	defer p.leave()
	open := Ws{ws[0], rtrim}

	if name == "if" {
		return p.ifChain(at, open, openSpan, inner, off, next)
	}

	switch name {
	case "each", "with", "unless":
		x, xerr := p.parseExpr(inner, off)
		if xerr != nil {
			return c, nil, xerr
		}
		body, cl, berr := p.body(openSpan, name, open[1], next)
		if berr != nil {
			return c, nil, berr
		}
		var els *Else
		if cl.kind == closeElse {
			if cl.elseIf {
				return c, nil, serrors.Errorf(serrors.ErrSyntax, cl.span, "`else if` is only allowed in `if` helpers")
			}
			elseBody, cl2, berr := p.body(openSpan, name, cl.ws[1], cl.next)
			if berr != nil {
				return c, nil, berr
			}
			if cl2.kind == closeElse {
				return c, nil, serrors.Errorf(serrors.ErrSyntax, cl2.span, "helper `%s` has more than one `else`", name)
			}
			els = &Else{Ws: cl.ws, Body: elseBody}
			cl = cl2
		}
		if cl.name != name {
			return c, nil, mismatch(cl, name)
		}
		span := cl.next.Span(at)
		switch name {
		case "each":
			return cl.next, &Each{Open: open, Close: cl.ws, Iter: x, Body: body, Else: els, span: span}, nil
		case "with":
			return cl.next, &With{Open: open, Close: cl.ws, X: x, Body: body, Else: els, span: span}, nil
		default:
			return cl.next, &Unless{Open: open, Close: cl.ws, Cond: x, Body: body, Else: els, span: span}, nil
		}
	}

	list, lerr := p.parseExprList(inner, off)
	if lerr != nil {
		return c, nil, lerr
	}
	body, cl, berr := p.body(openSpan, name, open[1], next)
	if berr != nil {
		return c, nil, berr
	}
	if cl.kind == closeElse {
		return c, nil, serrors.Errorf(serrors.ErrSyntax, cl.span, "unexpected `else` in helper `%s`", name)
	}
	if cl.name != name {
		return c, nil, mismatch(cl, name)
	}
	return cl.next, &Defined{Open: open, Close: cl.ws, Name: name, Args: list, Body: body, span: cl.next.Span(at)}, nil
}

func (p *Parser) ifChain(at lexer.Cursor, open Ws, openSpan Span, inner string, off int, next lexer.Cursor) (lexer.Cursor, Node, error) {
	cond, err := p.parseExpr(inner, off)
	if err != nil {
		return at, nil, err
	}
	node := &If{}
	branch := Branch{Ws: open, Cond: cond}
	trim := open[1]
	for {
		body, cl, berr := p.body(openSpan, "if", trim, next)
		if berr != nil {
			return at, nil, berr
		}
		branch.Body = body
		node.Branches = append(node.Branches, branch)

		switch {
		case cl.kind == closeEnd:
			if cl.name != "if" {
				return at, nil, mismatch(cl, "if")
			}
			node.Close = cl.ws
			node.span = cl.next.Span(at)
			return cl.next, node, nil
		case cl.elseIf:
			cond, err := p.parseExpr(cl.cond, cl.condOff)
			if err != nil {
				return at, nil, err
			}
			branch = Branch{Ws: cl.ws, Cond: cond}
			trim = cl.ws[1]
			next = cl.next
		default:
			elseBody, cl2, berr := p.body(openSpan, "if", cl.ws[1], cl.next)
			if berr != nil {
				return at, nil, berr
			}
			if cl2.kind == closeElse {
				return at, nil, serrors.Errorf(serrors.ErrSyntax, cl2.span, "`else` must be the last branch of `if`")
			}
			if cl2.name != "if" {
				return at, nil, mismatch(cl2, "if")
			}
			node.Else = &Else{Ws: cl.ws, Body: elseBody}
			node.Close = cl2.ws
			node.span = cl2.next.Span(at)
			return cl2.next, node, nil
		}
	}
}

func (p *Parser) partialHead(at, c lexer.Cursor) (path string, args Args, next lexer.Cursor, rtrim bool, err *serrors.Error) {
	inner, off, next, rtrim, err := p.payload(at, c, "}}")
	if err != nil {
		return "", Args{}, c, false, err
	}
	lead, core, _ := lexer.Trim(inner)
	off += len(lead)
	n := lexer.Path(core)
	if n == 0 {
		return "", Args{}, c, false, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(off, off), "expected partial name")
	}
	path = core[:n]
	args, err = p.parseArgs(core[n:], off+n)
	if err != nil {
		return "", Args{}, c, false, err
	}
	return path, args, next, rtrim, nil
}

func (p *Parser) parseArgs(src string, off int) (Args, *serrors.Error) {
	var args Args
	if lexer.IsAllWhitespace(src) {
		return args, nil
	}
	if !lexer.IsWhitespace(src[0]) {
		return args, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(off, off+1), "expected whitespace after partial name")
	}
	for i, piece := range lexer.SplitTop(src, ',') {
		pieceOff := off + piece.Off
		if names, rhs, ok := lexer.Assign(piece.Text); ok {
			if len(names) != 1 {
				return args, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(pieceOff, pieceOff+len(piece.Text)), "partial arguments bind a single name")
			}
			x, err := p.parseExpr(rhs.Text, pieceOff+rhs.Off)
			if err != nil {
				return args, err
			}
			args.Named = append(args.Named, NamedArg{
				Name: names[0].Text,
				X:    x,
				Span: syntax.NewSpan(pieceOff+names[0].Off, pieceOff+len(piece.Text)),
			})
			continue
		}
		if i != 0 {
			return args, serrors.Errorf(serrors.ErrSyntax, syntax.NewSpan(pieceOff, pieceOff+len(piece.Text)), "the scope argument must come first")
		}
		x, err := p.parseExpr(piece.Text, pieceOff)
		if err != nil {
			return args, err
		}
		args.Scope = x
	}
	return args, nil
}

func (p *Parser) partial(at, c lexer.Cursor, ws Ws) (lexer.Cursor, Node, error) {
	path, args, next, rtrim, err := p.partialHead(at, c)
	if err != nil {
		return c, nil, err
	}
	ws[1] = rtrim
	if path == "@partial-block" {
		if args.Scope != nil || len(args.Named) > 0 {
			return c, nil, serrors.Errorf(serrors.ErrSyntax, next.Span(at), "`@partial-block` takes no arguments")
		}
		return next, &Block{Ws: ws, span: next.Span(at)}, nil
	}
	return next, &Partial{Ws: ws, Path: path, Args: args, span: next.Span(at)}, nil
}

func (p *Parser) partialBlock(at, c lexer.Cursor, ws Ws) (lexer.Cursor, Node, error) {
	path, args, next, rtrim, err := p.partialHead(at, c)
	if err != nil {
		return c, nil, err
	}
	openSpan := next.Span(at)
	if err := p.enter(openSpan); err != nil {
		return c, nil, err
	}
	defer p.leave()
	open := Ws{ws[0], rtrim}
	body, cl, berr := p.body(openSpan, path, open[1], next)
	if berr != nil {
		return c, nil, berr
	}
	if cl.kind == closeElse {
		return c, nil, serrors.Errorf(serrors.ErrSyntax, cl.span, "unexpected `else` in partial block `%s`", path)
	}
	if cl.name != path {
		return c, nil, mismatch(cl, path)
	}
	return cl.next, &PartialBlock{Open: open, Close: cl.ws, Path: path, Args: args, Body: body, span: cl.next.Span(at)}, nil
}
