package dom

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/stache-go/stache/eval"
	"github.com/stache-go/stache/hir"
	"github.com/stache-go/stache/render"
	"github.com/stache-go/stache/value"
)

// frame is the environment of one scope instance.
type frame struct {
	vars   eval.Vars
	parent eval.Env
}

func (f *frame) Lookup(name string) (value.Value, bool) {
	if v, ok := f.vars[name]; ok {
		return v, true
	}
	if f.parent == nil {
		return value.Invalid(), false
	}
	return f.parent.Lookup(name)
}

func (f *frame) child() *frame {
	return &frame{vars: eval.Vars{}, parent: f}
}

// scope is a mounted Document.
type scope struct {
	doc    *Document
	parent *scope
	slot   *Expression
	env    *frame

	// anchor holds the nodes of a scope until it is attached.
	anchor   *html.Node
	attached bool

	static  []*html.Node
	handles map[ExprID]*html.Node
	attrs   map[ExprID]string
	safe    map[ExprID][]*html.Node
	safeSrc map[ExprID]string
	eaches  map[ExprID]*eachState
	ifs     map[ExprID]*ifState
	dirty   Mask
}

type eachState struct {
	items []*scope
	elems []value.Value
	empty *scope
}

type ifState struct {
	branch int
	body   *scope
}

// Patcher keeps a mounted template in sync with its data.
type Patcher struct {
	prog      *Program
	root      *scope
	mutations int
	loopVars  map[string][]VarID
}

// Mount renders data into a new tree.
func (p *Program) Mount(data value.Value) (*Patcher, error) {
	pt := &Patcher{prog: p, loopVars: map[string][]VarID{}}
	for i := 0; i < p.Vars.Len(); i++ {
		if v := p.Vars.Var(VarID(i)); !v.IsThis() {
			pt.loopVars[v.Binding] = append(pt.loopVars[v.Binding], VarID(i))
		}
	}
	env := &frame{vars: eval.Vars{p.Receiver: data}}
	s, err := pt.mount(p.Root, env, nil, nil)
	if err != nil {
		return nil, err
	}
	s.attached = true
	pt.root = s
	return pt, nil
}

// Root returns the element holding the rendered nodes.
func (pt *Patcher) Root() *html.Node { return pt.root.anchor }

// Mutations returns the number of DOM changes made by updates.
func (pt *Patcher) Mutations() int { return pt.mutations }

// Dirty returns the dirty mask of the root scope. It is empty between
// updates.
func (pt *Patcher) Dirty() Mask { return pt.root.dirty }

// HTML renders the current tree.
func (pt *Patcher) HTML() (string, error) {
	var b strings.Builder
	for c := pt.root.anchor.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Update brings the tree in line with data. dirty lists the vars that
// changed since the last render; see Program.Dirty.
func (pt *Patcher) Update(data value.Value, dirty map[VarID]bool) error {
	s := pt.root
	s.env.vars[pt.prog.Receiver] = data
	s.dirty = s.doc.MaskFor(dirty)
	err := pt.update(s, dirty)
	s.dirty.Reset()
	return err
}

// Dirty returns the receiver vars whose value differs between old and new.
func (p *Program) Dirty(old, new value.Value) map[VarID]bool {
	out := map[VarID]bool{}
	for i := 0; i < p.Vars.Len(); i++ {
		v := p.Vars.Var(VarID(i))
		if !v.IsThis() {
			continue
		}
		if !equal(at(old, v.Path), at(new, v.Path)) {
			out[VarID(i)] = true
		}
	}
	return out
}

func at(v value.Value, path string) value.Value {
	if path == "" {
		return v
	}
	for _, name := range strings.Split(path, ".") {
		next, err := value.Attr(v, name)
		if err != nil {
			return value.Invalid()
		}
		v = next
	}
	return v
}

func equal(a, b value.Value) bool {
	return a.Kind() == b.Kind() && cmp.Equal(a.Native(), b.Native())
}

func exprOf(n hir.Node) ast.Expr {
	switch n := n.(type) {
	case *hir.Expr:
		return n.X
	case *hir.Safe:
		return n.X
	case *hir.JSON:
		return n.X
	case *hir.Local:
		return n.X
	case *hir.Each:
		return n.Iter
	}
	return nil
}

func (s *scope) eval(x ast.Expr) (value.Value, error) {
	v, err := eval.Eval(x, s.env)
	if err != nil {
		return v, fmt.Errorf("%s: %w", types.ExprString(x), err)
	}
	return v, nil
}

// text evaluates the text of an Unsafe expression.
func (s *scope) text(e *Expression) (string, error) {
	v, err := s.eval(exprOf(e.Node))
	if err != nil {
		return "", err
	}
	if j, ok := e.Node.(*hir.JSON); ok {
		return render.EncodeJSON(v.Native(), j.Pretty)
	}
	return render.Text(v.Native()), nil
}

// mount builds a detached scope for d. Work on detached nodes is not
// counted as mutations.
func (pt *Patcher) mount(d *Document, env *frame, parent *scope, slot *Expression) (*scope, error) {
	defer func(n int) { pt.mutations = n }(pt.mutations)
	s := &scope{
		doc:     d,
		parent:  parent,
		slot:    slot,
		env:     env,
		anchor:  clone(d.Skeleton),
		handles: map[ExprID]*html.Node{},
		attrs:   map[ExprID]string{},
		safe:    map[ExprID][]*html.Node{},
		safeSrc: map[ExprID]string{},
		eaches:  map[ExprID]*eachState{},
		ifs:     map[ExprID]*ifState{},
	}
	for _, e := range d.Exprs {
		if e.Kind == Local {
			continue
		}
		base := s.anchor
		if e.Path.From != NoExpr {
			base = s.handles[e.Path.From]
		}
		n := Resolve(base, e.Path.Steps)
		if n == nil {
			panic(fmt.Sprintf("internal error: path %s of expression %d does not resolve", e.Path, e.ID))
		}
		s.handles[e.ID] = n
	}
	for _, e := range d.Exprs {
		if e.Kind == Unsafe && e.Attr == nil {
			h := s.handles[e.ID]
			t := &html.Node{Type: html.TextNode}
			h.Parent.InsertBefore(t, h)
			h.Parent.RemoveChild(h)
			s.handles[e.ID] = t
		}
	}
	for c := s.anchor.FirstChild; c != nil; c = c.NextSibling {
		s.static = append(s.static, c)
	}
	var all Mask
	for i := 0; i < d.Bits; i++ {
		all.Set(i)
	}
	s.dirty = all
	err := pt.render(s, nil, true)
	s.dirty.Reset()
	return s, err
}

func clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		c.AppendChild(clone(k))
	}
	return c
}

func (pt *Patcher) update(s *scope, dirty map[VarID]bool) error {
	if s.dirty.IsZero() {
		return nil
	}
	return pt.render(s, dirty, false)
}

// render re-evaluates the expressions of s whose bit is set in s.dirty.
func (pt *Patcher) render(s *scope, dirty map[VarID]bool, initial bool) error {
	touched := map[*AttrSlot]bool{}
	for _, e := range s.doc.Exprs {
		if e.Kind == Local {
			n := e.Node.(*hir.Local)
			if len(n.Names) != 1 {
				return fmt.Errorf("cannot evaluate multi-value binding of %s", types.ExprString(n.X))
			}
			v, err := s.eval(n.X)
			if err != nil {
				return err
			}
			if name := n.Names[0].Name; name != "_" {
				s.env.vars[name] = v
			}
			continue
		}
		if !s.dirty.Has(e.Bit) {
			continue
		}
		var err error
		switch {
		case e.Attr != nil:
			s.attrs[e.ID], err = s.text(e)
			touched[e.Attr] = true
		case e.Kind == Unsafe:
			err = pt.setText(s, e)
		case e.Kind == Safe:
			err = pt.setSafe(s, e, initial)
		case e.Kind == IfElse:
			err = pt.setBranch(s, e, dirty, initial)
		case e.Kind == Each:
			err = pt.setEach(s, e, dirty, initial)
		}
		if err != nil {
			return err
		}
	}
	for _, slot := range s.doc.Attrs {
		if touched[slot] {
			pt.setAttr(s, slot)
		}
	}
	return nil
}

func (pt *Patcher) setText(s *scope, e *Expression) error {
	text, err := s.text(e)
	if err != nil {
		return err
	}
	if h := s.handles[e.ID]; h.Data != text {
		h.Data = text
		pt.mutations++
	}
	return nil
}

func (pt *Patcher) setAttr(s *scope, slot *AttrSlot) {
	var b strings.Builder
	for _, part := range slot.Parts {
		if part.Expr == NoExpr {
			b.WriteString(part.Text)
		} else {
			b.WriteString(s.attrs[part.Expr])
		}
	}
	el := s.handles[slot.Owner]
	for i := range el.Attr {
		if el.Attr[i].Key == slot.Key {
			if el.Attr[i].Val != b.String() {
				el.Attr[i].Val = b.String()
				pt.mutations++
			}
			return
		}
	}
	panic(fmt.Sprintf("internal error: attribute %q lost from <%s>", slot.Key, el.Data))
}

func (pt *Patcher) setSafe(s *scope, e *Expression, initial bool) error {
	v, err := s.eval(exprOf(e.Node))
	if err != nil {
		return err
	}
	src := render.Text(v.Native())
	if !initial && src == s.safeSrc[e.ID] {
		return nil
	}
	pt.remove(s.safe[e.ID])
	parent := s.parentOf(e)
	ctx := parent
	if ctx.Type != html.ElementNode {
		ctx = BodyContext()
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return err
	}
	s.safe[e.ID], s.safeSrc[e.ID] = nodes, src
	pt.insert(parent, nodes, s.slotTail(e))
	return nil
}

func (pt *Patcher) setBranch(s *scope, e *Expression, dirty map[VarID]bool, initial bool) error {
	n := e.Node.(*hir.IfElse)
	branch := -1
	for i, br := range n.Branches {
		v, err := s.eval(br.Cond)
		if err != nil {
			return err
		}
		ok, err := value.Truth(v)
		if err != nil {
			return fmt.Errorf("%s: %w", types.ExprString(br.Cond), err)
		}
		if ok {
			branch = i
			break
		}
	}
	if branch < 0 && n.Else != nil {
		branch = len(e.Branches) - 1
	}
	st := s.ifs[e.ID]
	if st == nil {
		st = &ifState{branch: -1}
		s.ifs[e.ID] = st
	}
	if !initial && st.branch == branch {
		if st.body != nil {
			return pt.enter(st.body, dirty)
		}
		return nil
	}
	if st.body != nil {
		pt.remove(st.body.nodes())
		st.body = nil
	}
	st.branch = branch
	if branch < 0 {
		return nil
	}
	body, err := pt.mount(e.Branches[branch], s.env.child(), s, e)
	if err != nil {
		return err
	}
	st.body = body
	pt.attach(body, 0)
	return nil
}

func (pt *Patcher) setEach(s *scope, e *Expression, dirty map[VarID]bool, initial bool) error {
	n := e.Node.(*hir.Each)
	v, err := s.eval(n.Iter)
	if err != nil {
		return err
	}
	pairs, ok := v.Pairs()
	if !ok {
		return fmt.Errorf("cannot range over %s (%s)", types.ExprString(n.Iter), v.Kind())
	}
	st := s.eaches[e.ID]
	if st == nil {
		st = &eachState{}
		s.eaches[e.ID] = st
	}
	if len(pairs) > 0 && st.empty != nil {
		pt.remove(st.empty.nodes())
		st.empty = nil
	}

	loop := pt.bound(n)
	changed := map[int]bool{}
	ops := PlanEach(len(st.items), len(pairs), func(i int) bool {
		item := st.items[i]
		item.dirty = item.doc.MaskFor(dirty)
		if !equal(st.elems[i], pairs[i].Elem) {
			changed[i] = true
			item.dirty = item.dirty.Or(item.doc.MaskFor(loop))
		}
		return !item.dirty.IsZero()
	})
	for _, op := range ops {
		switch op.Kind {
		case UpdateItem:
			item := st.items[op.Index]
			bind(item.env, n, pairs[op.Index])
			st.elems[op.Index] = pairs[op.Index].Elem
			itemDirty := dirty
			if changed[op.Index] {
				itemDirty = union(dirty, loop)
			}
			err = pt.update(item, itemDirty)
			item.dirty.Reset()
		case InsertItem:
			env := s.env.child()
			bind(env, n, pairs[op.Index])
			var item *scope
			if item, err = pt.mount(e.Body, env, s, e); err == nil {
				st.items = append(st.items, item)
				st.elems = append(st.elems, pairs[op.Index].Elem)
				pt.attach(item, 0)
			}
		case RemoveItem:
			pt.remove(st.items[op.Index].nodes())
			st.items = st.items[:op.Index]
			st.elems = st.elems[:op.Index]
		}
		if err != nil {
			return err
		}
	}

	if len(pairs) == 0 && e.Else != nil && st.empty == nil {
		empty, err := pt.mount(e.Else, s.env.child(), s, e)
		if err != nil {
			return err
		}
		st.empty = empty
		pt.attach(empty, 0)
	}
	return nil
}

// bound returns the vars read through the loop variables of n.
func (pt *Patcher) bound(n *hir.Each) map[VarID]bool {
	out := map[VarID]bool{}
	for _, id := range []*ast.Ident{n.Index, n.Elem} {
		if id == nil {
			continue
		}
		for _, v := range pt.loopVars[id.Name] {
			out[v] = true
		}
	}
	return out
}

func union(a, b map[VarID]bool) map[VarID]bool {
	out := make(map[VarID]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func bind(env *frame, n *hir.Each, p value.Pair) {
	if n.Index != nil {
		env.vars[n.Index.Name] = p.Key
	}
	if n.Elem != nil {
		env.vars[n.Elem.Name] = p.Elem
	}
}

// enter updates a nested scope for the vars that changed outside it.
func (pt *Patcher) enter(s *scope, dirty map[VarID]bool) error {
	s.dirty = s.doc.MaskFor(dirty)
	err := pt.update(s, dirty)
	s.dirty.Reset()
	return err
}

// parentOf returns the live element the content of a ranged expression is
// inserted into.
func (s *scope) parentOf(e *Expression) *html.Node {
	if e.Top {
		return s.container()
	}
	return s.handles[e.ID]
}

// container returns the element the top level nodes of s live in.
func (s *scope) container() *html.Node {
	if s.parent == nil || !s.attached {
		return s.anchor
	}
	return s.parent.parentOf(s.slot)
}

// length returns the number of live nodes of a ranged expression.
func (s *scope) length(id ExprID) int {
	if nodes, ok := s.safe[id]; ok {
		return len(nodes)
	}
	if st := s.eaches[id]; st != nil {
		n := 0
		for _, item := range st.items {
			n += item.size()
		}
		if st.empty != nil {
			n += st.empty.size()
		}
		return n
	}
	if st := s.ifs[id]; st != nil && st.body != nil {
		return st.body.size()
	}
	return 0
}

// size returns the number of top level nodes of s.
func (s *scope) size() int {
	n := len(s.static)
	for _, e := range s.doc.Exprs {
		if e.Top {
			n += s.length(e.ID)
		}
	}
	return n
}

// nodes returns the top level nodes of s in no particular order.
func (s *scope) nodes() []*html.Node {
	out := append([]*html.Node(nil), s.static...)
	for _, e := range s.doc.Exprs {
		if !e.Top {
			continue
		}
		out = append(out, s.safe[e.ID]...)
		if st := s.eaches[e.ID]; st != nil {
			for _, item := range st.items {
				out = append(out, item.nodes()...)
			}
			if st.empty != nil {
				out = append(out, st.empty.nodes()...)
			}
		}
		if st := s.ifs[e.ID]; st != nil && st.body != nil {
			out = append(out, st.body.nodes()...)
		}
	}
	return out
}

// slotTail returns the number of live nodes following the content of e.
func (s *scope) slotTail(e *Expression) int {
	n := e.Insert.Static
	for _, id := range e.Insert.Dynamic {
		n += s.length(id)
	}
	if e.Top {
		n += s.tail()
	}
	return n
}

// tail returns the number of live nodes following s in its host.
func (s *scope) tail() int {
	if s.parent == nil || !s.attached {
		return 0
	}
	p := s.parent
	n := 0
	if st := p.eaches[s.slot.ID]; st != nil {
		after := false
		for _, item := range st.items {
			if after {
				n += item.size()
			}
			if item == s {
				after = true
			}
		}
	}
	return n + p.slotTail(s.slot)
}

// attach moves the nodes of a freshly mounted scope into the tree, before
// the given number of nodes following its slot.
func (pt *Patcher) attach(s *scope, after int) {
	host := s.parent.parentOf(s.slot)
	var nodes []*html.Node
	for c := s.anchor.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	for _, c := range nodes {
		s.anchor.RemoveChild(c)
	}
	pt.insert(host, nodes, s.parent.slotTail(s.slot)+after)
	s.attached = true
}

// insert adds nodes to parent before its last tail children.
func (pt *Patcher) insert(parent *html.Node, nodes []*html.Node, tail int) {
	var ref *html.Node
	if tail > 0 {
		ref = parent.LastChild
		for i := 1; i < tail && ref != nil; i++ {
			ref = ref.PrevSibling
		}
	}
	for _, n := range nodes {
		if ref == nil {
			parent.AppendChild(n)
		} else {
			parent.InsertBefore(n, ref)
		}
		pt.mutations++
	}
}

func (pt *Patcher) remove(nodes []*html.Node) {
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
			pt.mutations++
		}
	}
}
