package dom

import (
	"go/ast"
	"sort"
	"strconv"
	"strings"
)

// VarID identifies a Var within a Program.
type VarID int

// Var is a piece of state an expression reads: a path below the receiver,
// or a path below a loop variable.
type Var struct {
	// Binding is the loop variable the path starts at, or "" for the
	// receiver.
	Binding string
	// Path is the dotted field path, possibly empty.
	Path string
}

// IsThis reports whether v is read from the receiver.
func (v Var) IsThis() bool { return v.Binding == "" }

func (v Var) String() string {
	root := v.Binding
	if root == "" {
		root = "this"
	}
	if v.Path == "" {
		return root
	}
	return root + "." + v.Path
}

// VarMap interns Vars.
type VarMap struct {
	vars []Var
	ids  map[Var]VarID
}

// ID returns the id of v, adding it when it is new.
func (m *VarMap) ID(v Var) VarID {
	if id, ok := m.ids[v]; ok {
		return id
	}
	if m.ids == nil {
		m.ids = map[Var]VarID{}
	}
	id := VarID(len(m.vars))
	m.vars = append(m.vars, v)
	m.ids[v] = id
	return id
}

// Lookup returns the id of v.
func (m *VarMap) Lookup(v Var) (VarID, bool) {
	id, ok := m.ids[v]
	return id, ok
}

// Var returns the Var of id.
func (m *VarMap) Var(id VarID) Var { return m.vars[id] }

// Len returns the number of interned vars.
func (m *VarMap) Len() int { return len(m.vars) }

// TreeMap lists the vars every expression depends on, sorted ascending.
type TreeMap map[ExprID][]VarID

// varSet is a sorted set of var ids.
type varSet []VarID

func (s varSet) add(ids ...VarID) varSet {
	for _, id := range ids {
		i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
		if i < len(s) && s[i] == id {
			continue
		}
		s = append(s, 0)
		copy(s[i+1:], s[i:])
		s[i] = id
	}
	return s
}

func (s varSet) key() string {
	var b strings.Builder
	for i, id := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	return b.String()
}

// collector finds the vars an expression reads. Locals are replaced by the
// vars of their right-hand side.
type collector struct {
	receiver string
	vars     *VarMap
	loops    map[string]bool
	locals   map[string]varSet
}

// collect returns the vars x depends on.
func (c *collector) collect(x ast.Expr) varSet {
	var out varSet
	ast.Inspect(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr, *ast.Ident:
			root, path, ok := selectorPath(n.(ast.Expr))
			if !ok {
				return true
			}
			out = c.root(out, root, path)
			return false
		}
		return true
	})
	return out
}

func (c *collector) root(out varSet, root, path string) varSet {
	switch {
	case root == c.receiver:
		return out.add(c.vars.ID(Var{Path: path}))
	case c.loops[root]:
		return out.add(c.vars.ID(Var{Binding: root, Path: path}))
	}
	if deps, ok := c.locals[root]; ok {
		return out.add(deps...)
	}
	return out
}

// selectorPath splits a.b.c into its root identifier and field path.
func selectorPath(x ast.Expr) (root, path string, ok bool) {
	var sels []string
	for {
		switch e := x.(type) {
		case *ast.Ident:
			for i, j := 0, len(sels)-1; i < j; i, j = i+1, j-1 {
				sels[i], sels[j] = sels[j], sels[i]
			}
			return e.Name, strings.Join(sels, "."), true
		case *ast.SelectorExpr:
			sels = append(sels, e.Sel.Name)
			x = e.X
		case *ast.ParenExpr:
			x = e.X
		default:
			return "", "", false
		}
	}
}
