package parser

import (
	"errors"
	"go/ast"
	goparser "go/parser"
	"go/scanner"

	serrors "github.com/stache-go/stache/internal/errors"
	"github.com/stache-go/stache/lexer"
	"github.com/stache-go/stache/syntax"
)

// Embedded expressions are Go expressions. Each snippet is parsed on its own
// and errors are translated back into template coordinates.

func (p *Parser) parseExpr(src string, off int) (ast.Expr, *serrors.Error) {
	lead, core, _ := lexer.Trim(src)
	off += len(lead)
	if core == "" {
		return nil, serrors.Errorf(serrors.ErrBadExpression, syntax.NewSpan(off, off), "expected expression")
	}
	x, err := goparser.ParseExprFrom(p.fset, p.name, core, goparser.SkipObjectResolution)
	if err != nil {
		return nil, p.exprError(err, core, off, 0)
	}
	return x, nil
}

// parseExprList parses comma separated expressions.
func (p *Parser) parseExprList(src string, off int) ([]ast.Expr, *serrors.Error) {
	if lexer.IsAllWhitespace(src) {
		return nil, nil
	}
	const wrap = "_("
	x, err := goparser.ParseExprFrom(p.fset, p.name, wrap+src+")", goparser.SkipObjectResolution)
	if err != nil {
		return nil, p.exprError(err, wrap+src+")", off, len(wrap))
	}
	call, ok := x.(*ast.CallExpr)
	if !ok || call.Ellipsis.IsValid() {
		return nil, serrors.Errorf(serrors.ErrBadExpression, syntax.NewSpan(off, off+len(src)), "expected expression list")
	}
	return call.Args, nil
}

func (p *Parser) exprError(err error, src string, off, shift int) *serrors.Error {
	var list scanner.ErrorList
	if !errors.As(err, &list) || len(list) == 0 {
		return serrors.Errorf(serrors.ErrBadExpression, syntax.NewSpan(off, off+len(src)-shift), "%v", err)
	}
	first := list[0]
	rel := syntax.LineOffset(src, first.Pos.Line, first.Pos.Column) - shift
	if rel < 0 {
		rel = 0
	}
	if rel > len(src)-shift {
		rel = len(src) - shift
	}
	return serrors.Errorf(serrors.ErrBadExpression, syntax.NewSpan(off+rel, off+rel), "%s", first.Msg)
}
