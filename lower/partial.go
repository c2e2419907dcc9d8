package lower

import (
	"errors"
	"go/ast"

	serrors "github.com/stache-go/stache/internal/errors"
	"github.com/stache-go/stache/parser"
)

// context is the part of the lowerer that changes when lowering moves into
// a partial or back out to a partial block's caller.
type context struct {
	scope   *Scope
	on      []*on
	onFloor int
	args    map[string]ast.Expr
	tmpl    *parser.Template
	blocks  []*block
}

func (l *lowerer) save() context {
	return context{l.scope, l.on, l.onFloor, l.args, l.tmpl, l.blocks}
}

func (l *lowerer) restore(c context) {
	l.scope, l.on, l.onFloor, l.args, l.tmpl, l.blocks = c.scope, c.on, c.onFloor, c.args, c.tmpl, c.blocks
}

// partial lowers an included template inline. Its arguments are resolved
// in the caller; inside, only those arguments and the scope target are
// visible.
func (l *lowerer) partial(n parser.Node, path string, args parser.Args, body []parser.Node) error {
	span := n.Span()
	if l.depth >= l.cfg.RecursionLimit {
		return l.errorf(serrors.ErrRecursionLimit, span, "partial %q nested more than %d levels deep", path, l.cfg.RecursionLimit)
	}
	if l.cfg.Partial == nil {
		return l.errorf(serrors.ErrTemplateNotFound, span, "partial %q: no loader configured", path)
	}
	pt, err := l.cfg.Partial(l.tmpl.Name, path)
	if err != nil {
		var serr *serrors.Error
		if errors.As(err, &serr) && serr.Kind != serrors.ErrTemplateNotFound {
			return err
		}
		return l.errorf(serrors.ErrTemplateNotFound, span, "partial %q: %v", path, err)
	}

	var this ast.Expr
	if args.Scope != nil {
		rx, err := l.resolve(args.Scope)
		if err != nil {
			return err
		}
		this = l.target(rx, "scope")
	} else {
		this = l.on[len(l.on)-1].target()
	}
	named := make(map[string]ast.Expr, len(args.Named))
	for _, a := range args.Named {
		l.at = a.Span
		rx, err := l.resolve(a.X)
		if err != nil {
			return err
		}
		named[a.Name] = l.target(rx, a.Name)
	}
	l.at = span

	caller := l.save()
	if body != nil {
		l.blocks = append(l.blocks[:len(l.blocks):len(l.blocks)], &block{
			body:    body,
			scope:   l.scope.Snapshot(),
			on:      append([]*on(nil), l.on...),
			onFloor: l.onFloor,
			args:    l.args,
			tmpl:    l.tmpl,
			outer:   caller.blocks,
		})
	}
	restoreFloor := l.scope.Isolate()
	l.scope.Enter()
	l.on = append(l.on[:len(l.on):len(l.on)], &on{kind: onPartial, this: this})
	l.onFloor = len(l.on) - 1
	l.args = named
	l.tmpl = pt
	l.depth++

	err = l.nodes(pt.Nodes)

	l.depth--
	l.scope.Exit()
	restoreFloor()
	l.restore(caller)
	return err
}

// partialBlock lowers the body passed to the enclosing partial in the
// context of the partial's caller.
func (l *lowerer) partialBlock(n *parser.Block) error {
	if len(l.blocks) == 0 {
		return l.errorf(serrors.ErrPartialBlock, n.Span(), "@partial-block used outside a partial block")
	}
	b := l.blocks[len(l.blocks)-1]
	saved := l.save()
	l.scope = b.scope.Snapshot()
	l.on = b.on
	l.onFloor = b.onFloor
	l.args = b.args
	l.tmpl = b.tmpl
	l.blocks = b.outer
	err := l.inline(b.body)
	l.restore(saved)
	return err
}
