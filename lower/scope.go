package lower

import (
	"fmt"
	"go/ast"
)

// binding maps a template name to the expression references resolve to.
type binding struct {
	name string
	x    ast.Expr
}

// Scope is the stack of names visible while lowering. Bindings live in one
// flat list partitioned into levels; every level starts with an unnamed
// marker binding, so level boundaries are strictly increasing. Index 0 is
// the root binding and is never popped.
type Scope struct {
	names  []binding
	levels []int
	floor  int
	next   *int
}

// NewScope creates a scope whose root binding is the receiver.
func NewScope(receiver string) *Scope {
	return &Scope{names: []binding{{x: ast.NewIdent(receiver)}}, next: new(int)}
}

// Snapshot returns an independent copy of s sharing its fresh name counter.
func (s *Scope) Snapshot() *Scope {
	return &Scope{
		names:  append([]binding(nil), s.names...),
		levels: append([]int(nil), s.levels...),
		floor:  s.floor,
		next:   s.next,
	}
}

// Enter opens a level.
func (s *Scope) Enter() {
	s.levels = append(s.levels, len(s.names))
	s.names = append(s.names, binding{})
}

// Exit removes exactly the bindings pushed since the matching Enter.
func (s *Scope) Exit() {
	if len(s.levels) == 0 {
		panic("internal error: scope exit without matching enter")
	}
	top := s.levels[len(s.levels)-1]
	if top < s.floor {
		panic("internal error: scope exit below the isolation floor")
	}
	s.levels = s.levels[:len(s.levels)-1]
	s.names = s.names[:top]
}

// Depth returns the number of open levels.
func (s *Scope) Depth() int { return len(s.levels) }

// Fresh returns a new identifier name__N. The counter is shared by every
// template of one compilation, so fresh names never collide.
func (s *Scope) Fresh(name string) *ast.Ident {
	*s.next++
	return ast.NewIdent(fmt.Sprintf("%s__%d", name, *s.next))
}

// Bind makes name resolve to x until the current level is exited.
func (s *Scope) Bind(name string, x ast.Expr) {
	s.names = append(s.names, binding{name: name, x: x})
}

// Declare binds name to a fresh identifier and returns it.
func (s *Scope) Declare(name string) *ast.Ident {
	id := s.Fresh(name)
	s.Bind(name, id)
	return id
}

// Lookup returns the most recently bound expression for name. Bindings
// below the isolation floor are invisible.
func (s *Scope) Lookup(name string) (ast.Expr, bool) {
	for i := len(s.names) - 1; i >= s.floor && i > 0; i-- {
		if b := s.names[i]; b.name == name && name != "" {
			return b.x, true
		}
	}
	return nil, false
}

// Isolate hides every current binding from Lookup and returns a function
// restoring the previous floor. Partials use it so that callers' locals do
// not leak into them.
func (s *Scope) Isolate() (restore func()) {
	prev := s.floor
	s.floor = len(s.names)
	return func() { s.floor = prev }
}
