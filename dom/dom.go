// Package dom lowers HIR for templates that patch a live DOM instead of
// re-rendering text.
//
// # Core Concepts
//
// The static markup of a template is parsed once into a skeleton with
// golang.org/x/net/html. Every dynamic position becomes an Expression with
// a sequential ExprID and a Path of FirstChild and NextSibling steps from
// its scope's anchor. Each body and every IfElse branch is a scope of its
// own, parsed in the context of the element it is inserted into.
//
// Expressions read Vars: paths below the template data or below a loop
// variable. Expressions of one scope reading the same set of vars share a
// dirty bit; the number of bits picks the Width of the scope's dirty field.
// A render only re-evaluates expressions whose bit is set, so rendering
// with an empty Mask touches nothing.
//
// # Example Usage
//
//	prog, err := dom.Build(nodes, "t")
//	if err != nil {
//		return err
//	}
//	inst, err := prog.Mount(value.FromGo(data))
//	if err != nil {
//		return err
//	}
//	dirty := prog.Dirty(value.FromGo(data), value.FromGo(newData))
//	inst.Update(value.FromGo(newData), dirty)
package dom

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/stache-go/stache/hir"
)

// ExprID identifies a dynamic expression in document order.
type ExprID int

// ExprKind is the kind of a dynamic expression.
type ExprKind int

const (
	// Unsafe writes escaped text. Expressions in attribute values are
	// always Unsafe.
	Unsafe ExprKind = iota
	// Safe writes markup.
	Safe
	Each
	IfElse
	// Local binds names and has no position.
	Local
)

func (k ExprKind) String() string {
	switch k {
	case Unsafe:
		return "unsafe"
	case Safe:
		return "safe"
	case Each:
		return "each"
	case IfElse:
		return "if"
	case Local:
		return "local"
	}
	return "unknown"
}

// Expression is a dynamic part of a Document.
type Expression struct {
	ID   ExprID
	Kind ExprKind
	Node hir.Node

	// Bit is the dirty bit of the expression in its scope, or -1 for
	// locals.
	Bit int

	// Path locates the text node of an Unsafe expression, the element of
	// an attribute expression, or the parent of a Safe, Each or IfElse.
	Path Path
	// Top is set when the expression's parent is the scope's anchor.
	Top bool
	// Attr is the attribute the expression is part of.
	Attr *AttrSlot
	// Insert locates the content of a Safe, Each or IfElse among its
	// siblings.
	Insert Insert

	// Body is the per-item scope of an Each, Else its empty case.
	Body, Else *Document
	// Branches are the scopes of an IfElse, with the else scope last when
	// present.
	Branches []*Document
}

// Ranged reports whether the expression renders a variable number of
// nodes.
func (e *Expression) Ranged() bool {
	return e.Kind == Safe || e.Kind == Each || e.Kind == IfElse
}

// AttrPart is static text or the value of an expression.
type AttrPart struct {
	Text string
	Expr ExprID
}

// AttrSlot is an attribute value containing expressions.
type AttrSlot struct {
	Key   string
	Parts []AttrPart
	// Owner is the first expression of the attribute; it holds the path
	// to the element.
	Owner ExprID
}

// Insert is where ranged content goes among its parent's children: before
// the last Static static siblings and the current content of the Dynamic
// expressions, or appended when both are empty.
type Insert struct {
	Static  int
	Dynamic []ExprID
}

// IsAppend reports whether content is appended to the parent.
func (in Insert) IsAppend() bool { return in.Static == 0 && len(in.Dynamic) == 0 }

func (in Insert) String() string {
	if in.IsAppend() {
		return "append"
	}
	parts := []string{strconv.Itoa(in.Static)}
	for _, id := range in.Dynamic {
		parts = append(parts, "$"+strconv.Itoa(int(id)))
	}
	return "last-before(" + strings.Join(parts, "+") + ")"
}

// Document is one scope: a skeleton and the expressions placed in it.
type Document struct {
	// Context is the element the skeleton is parsed in.
	Context *html.Node
	// Skeleton is the anchor of the scope. Its children are the static
	// nodes, with a comment where every Unsafe expression goes.
	Skeleton *html.Node
	Exprs    []*Expression
	Attrs    []*AttrSlot
	Width    Width
	// Bits is the number of dirty bits in use.
	Bits int

	bitVars [][]VarID
}

// Field is a piece of state a scope keeps between renders.
type Field struct {
	Name string
	Type string
}

// BlackBox lists the state of the scope: element handles, each tables,
// selected branches and the dirty field.
func (d *Document) BlackBox() []Field {
	var out []Field
	handle := func(id ExprID) {
		out = append(out, Field{Name: "el" + strconv.Itoa(int(id)), Type: "*html.Node"})
	}
	for _, e := range d.Exprs {
		switch e.Kind {
		case Local:
			continue
		case Unsafe:
			if e.Attr == nil || e.Attr.Owner == e.ID {
				handle(e.ID)
			}
			continue
		}
		if !e.Top {
			handle(e.ID)
		}
		switch e.Kind {
		case Safe:
			out = append(out, Field{Name: "safe" + strconv.Itoa(int(e.ID)), Type: "[]*html.Node"})
		case Each:
			out = append(out, Field{Name: "each" + strconv.Itoa(int(e.ID)), Type: "[]*scope"})
		case IfElse:
			out = append(out, Field{Name: "branch" + strconv.Itoa(int(e.ID)), Type: "int"})
		}
	}
	return append(out, Field{Name: "dirty", Type: d.Width.GoType()})
}

// Program is the DOM lowering of a template.
type Program struct {
	Receiver string
	Root     *Document
	Vars     VarMap
	Tree     TreeMap

	exprs []*Expression
}

// Expr returns the expression with the given id.
func (p *Program) Expr(id ExprID) *Expression { return p.exprs[id] }

// Len returns the number of expressions.
func (p *Program) Len() int { return len(p.exprs) }

// BodyContext is the context the root skeleton is parsed in.
func BodyContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// Build lowers nodes. receiver is the name the HIR uses for the template
// data.
func Build(nodes []hir.Node, receiver string) (*Program, error) {
	p := &Program{Receiver: receiver, Tree: TreeMap{}}
	b := &builder{
		prog: p,
		ids:  map[hir.Node]ExprID{},
		col: &collector{
			receiver: receiver,
			vars:     &p.Vars,
			loops:    map[string]bool{},
			locals:   map[string]varSet{},
		},
	}
	hir.Walk(nodes, func(n hir.Node) bool {
		if _, lit := n.(*hir.Lit); !lit {
			b.ids[n] = ExprID(len(p.exprs))
			p.exprs = append(p.exprs, nil)
		}
		return true
	})
	root, _, err := b.doc(nodes, BodyContext())
	if err != nil {
		return nil, err
	}
	p.Root = root
	return p, nil
}

type builder struct {
	prog *Program
	ids  map[hir.Node]ExprID
	col  *collector
}

const (
	placeholderPrefix = "stache:"
	markOpen          = '\uE000'
	markClose         = '\uE001'
)

// tagState follows literal markup far enough to know whether the next
// dynamic part lands inside a tag or an HTML comment.
type tagState struct {
	inTag     bool
	inComment bool
	quote     rune
}

func (s *tagState) feed(text string) {
	rs := []rune(text)
	for i, c := range rs {
		switch {
		case s.inComment:
			if c == '>' && i >= 2 && rs[i-1] == '-' && rs[i-2] == '-' {
				s.inComment = false
			}
		case !s.inTag:
			if c == '<' && i+3 < len(rs) && rs[i+1] == '!' && rs[i+2] == '-' && rs[i+3] == '-' {
				s.inComment = true
			} else if c == '<' && i+1 < len(rs) && (rs[i+1] == '/' || isLetter(rs[i+1])) {
				s.inTag = true
			}
		case s.quote != 0:
			if c == s.quote {
				s.quote = 0
			}
		case c == '"' || c == '\'':
			s.quote = c
		case c == '>':
			s.inTag = false
		}
	}
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z'
}

// doc builds the scope of nodes. It returns the vars the scope reads.
func (b *builder) doc(nodes []hir.Node, context *html.Node) (*Document, varSet, error) {
	d := &Document{Context: context}
	var (
		sb    strings.Builder
		ts    tagState
		all   varSet
		attrs = map[ExprID]bool{}
	)
	for _, n := range nodes {
		if lit, ok := n.(*hir.Lit); ok {
			sb.WriteString(lit.Text)
			ts.feed(lit.Text)
			continue
		}
		id := b.ids[n]
		e := &Expression{ID: id, Node: n, Bit: -1, Path: Path{From: NoExpr}}
		b.prog.exprs[id] = e
		d.Exprs = append(d.Exprs, e)
		var vars varSet
		switch n := n.(type) {
		case *hir.Expr:
			e.Kind = Unsafe
			vars = b.col.collect(n.X)
		case *hir.JSON:
			e.Kind = Unsafe
			vars = b.col.collect(n.X)
		case *hir.Safe:
			e.Kind = Safe
			vars = b.col.collect(n.X)
		case *hir.Local:
			e.Kind = Local
			vars = b.col.collect(n.X)
			for _, name := range n.Names {
				b.col.locals[name.Name] = vars
			}
		case *hir.Each:
			e.Kind = Each
			vars = b.col.collect(n.Iter)
			if n.Index != nil {
				b.col.loops[n.Index.Name] = true
			}
			if n.Elem != nil {
				b.col.loops[n.Elem.Name] = true
			}
		case *hir.IfElse:
			e.Kind = IfElse
			for _, br := range n.Branches {
				vars = vars.add(b.col.collect(br.Cond)...)
			}
		}
		if e.Kind == Local {
			b.prog.Tree[id] = vars
			all = all.add(vars...)
			continue
		}
		if ts.inComment {
			return nil, nil, fmt.Errorf("dom: expression inside an HTML comment is not supported")
		}
		if ts.inTag {
			if e.Kind != Unsafe {
				return nil, nil, fmt.Errorf("dom: %s expression inside a tag", e.Kind)
			}
			attrs[id] = true
			sb.WriteRune(markOpen)
			sb.WriteString(strconv.Itoa(int(id)))
			sb.WriteRune(markClose)
		} else {
			fmt.Fprintf(&sb, "<!--%s%d-->", placeholderPrefix, id)
		}
		b.prog.Tree[id] = vars
		all = all.add(vars...)
	}

	frag, err := html.ParseFragment(strings.NewReader(sb.String()), context)
	if err != nil {
		return nil, nil, fmt.Errorf("dom: parsing skeleton: %w", err)
	}
	d.Skeleton = &html.Node{Type: html.ElementNode, Data: context.Data, DataAtom: context.DataAtom, Namespace: context.Namespace}
	for _, n := range frag {
		d.Skeleton.AppendChild(n)
	}

	holders, err := d.placeholders(attrs)
	if err != nil {
		return nil, nil, err
	}
	parents := d.detachRanged(holders)

	var sh sharer
	for _, e := range d.Exprs {
		var target *html.Node
		switch {
		case e.Kind == Local:
			continue
		case e.Attr != nil:
			if e.Attr.Owner != e.ID {
				e.Path = Path{From: e.Attr.Owner}
				continue
			}
			target = holders[e.ID]
		case e.Ranged():
			target = parents[e.ID]
			e.Top = target == d.Skeleton
		default:
			target = holders[e.ID]
		}
		e.Path = sh.share(e.ID, absPath(d.Skeleton, target))
	}

	for _, e := range d.Exprs {
		ctx := context
		if p := parents[e.ID]; p != nil && p != d.Skeleton {
			ctx = p
		}
		var vars varSet
		switch n := e.Node.(type) {
		case *hir.Each:
			if e.Body, vars, err = b.doc(n.Body, ctx); err != nil {
				return nil, nil, err
			}
			if n.Else != nil {
				var evars varSet
				if e.Else, evars, err = b.doc(n.Else, ctx); err != nil {
					return nil, nil, err
				}
				vars = vars.add(evars...)
			}
		case *hir.IfElse:
			bodies := make([][]hir.Node, 0, len(n.Branches)+1)
			for _, br := range n.Branches {
				bodies = append(bodies, br.Body)
			}
			if n.Else != nil {
				bodies = append(bodies, n.Else)
			}
			for _, body := range bodies {
				bd, bvars, err := b.doc(body, ctx)
				if err != nil {
					return nil, nil, err
				}
				e.Branches = append(e.Branches, bd)
				vars = vars.add(bvars...)
			}
		default:
			continue
		}
		b.prog.Tree[e.ID] = varSet(b.prog.Tree[e.ID]).add(vars...)
		all = all.add(vars...)
	}

	if err := d.assignBits(b.prog.Tree); err != nil {
		return nil, nil, err
	}
	return d, all, nil
}

// placeholders finds the comment or attribute of every positioned
// expression. A skeleton that lost or duplicated one is a bug in skeleton
// generation.
func (d *Document) placeholders(attrs map[ExprID]bool) (map[ExprID]*html.Node, error) {
	holders := map[ExprID]*html.Node{}
	byID := map[ExprID]*Expression{}
	for _, e := range d.Exprs {
		byID[e.ID] = e
	}
	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		switch n.Type {
		case html.CommentNode:
			if s, ok := strings.CutPrefix(n.Data, placeholderPrefix); ok {
				id, err := strconv.Atoi(s)
				if err != nil || byID[ExprID(id)] == nil || holders[ExprID(id)] != nil {
					panic(fmt.Sprintf("internal error: unexpected placeholder %q", n.Data))
				}
				holders[ExprID(id)] = n
			}
		case html.TextNode:
			if strings.Contains(n.Data, "<!--"+placeholderPrefix) && n.Parent != nil {
				return fmt.Errorf("dom: expression inside <%s> is not supported", n.Parent.Data)
			}
		case html.ElementNode:
			for i := range n.Attr {
				a := &n.Attr[i]
				if strings.ContainsRune(a.Key, markOpen) {
					return fmt.Errorf("dom: expression in attribute name of <%s>", n.Data)
				}
				if !strings.ContainsRune(a.Val, markOpen) {
					continue
				}
				slot := &AttrSlot{Key: a.Key, Owner: NoExpr}
				for _, part := range splitMarks(a.Val) {
					slot.Parts = append(slot.Parts, part)
					if part.Expr == NoExpr {
						continue
					}
					e := byID[part.Expr]
					if e == nil || holders[part.Expr] != nil {
						panic(fmt.Sprintf("internal error: unexpected attribute placeholder %d", part.Expr))
					}
					e.Attr = slot
					holders[part.Expr] = n
					if slot.Owner == NoExpr {
						slot.Owner = part.Expr
					}
				}
				d.Attrs = append(d.Attrs, slot)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(d.Skeleton); err != nil {
		return nil, err
	}
	for _, e := range d.Exprs {
		if e.Kind == Local {
			continue
		}
		if holders[e.ID] == nil {
			panic(fmt.Sprintf("internal error: placeholder of expression %d missing from skeleton", e.ID))
		}
		if attrs[e.ID] != (e.Attr != nil) {
			panic(fmt.Sprintf("internal error: placeholder of expression %d moved in or out of a tag", e.ID))
		}
	}
	return holders, nil
}

func splitMarks(s string) []AttrPart {
	var out []AttrPart
	for s != "" {
		i := strings.IndexRune(s, markOpen)
		if i < 0 {
			out = append(out, AttrPart{Text: s, Expr: NoExpr})
			break
		}
		if i > 0 {
			out = append(out, AttrPart{Text: s[:i], Expr: NoExpr})
		}
		s = s[i+len(string(markOpen)):]
		j := strings.IndexRune(s, markClose)
		if j < 0 {
			panic(fmt.Sprintf("internal error: malformed attribute placeholder in %q", s))
		}
		id, err := strconv.Atoi(s[:j])
		if err != nil {
			panic(fmt.Sprintf("internal error: malformed attribute placeholder in %q", s))
		}
		out = append(out, AttrPart{Expr: ExprID(id)})
		s = s[j+len(string(markClose)):]
	}
	return out
}

// detachRanged computes insertion points of ranged expressions and removes
// their placeholders from the skeleton. It returns the parent of every
// ranged expression.
func (d *Document) detachRanged(holders map[ExprID]*html.Node) map[ExprID]*html.Node {
	ranged := map[*html.Node]ExprID{}
	for _, e := range d.Exprs {
		if e.Kind != Local && e.Ranged() {
			ranged[holders[e.ID]] = e.ID
		}
	}
	parents := map[ExprID]*html.Node{}
	for _, e := range d.Exprs {
		if e.Kind == Local || !e.Ranged() {
			continue
		}
		h := holders[e.ID]
		for s := h.NextSibling; s != nil; s = s.NextSibling {
			if id, ok := ranged[s]; ok {
				e.Insert.Dynamic = append(e.Insert.Dynamic, id)
			} else {
				e.Insert.Static++
			}
		}
		parents[e.ID] = h.Parent
	}
	for h := range ranged {
		h.Parent.RemoveChild(h)
	}
	return parents
}

// assignBits gives expressions with the same var set the same bit.
func (d *Document) assignBits(tree TreeMap) error {
	bits := map[string]int{}
	for _, e := range d.Exprs {
		if e.Kind == Local {
			continue
		}
		vars := varSet(tree[e.ID])
		k := vars.key()
		bit, ok := bits[k]
		if !ok {
			bit = len(d.bitVars)
			bits[k] = bit
			d.bitVars = append(d.bitVars, vars)
		}
		e.Bit = bit
	}
	d.Bits = len(d.bitVars)
	w, err := WidthFor(d.Bits)
	if err != nil {
		return err
	}
	d.Width = w
	return nil
}

// MaskFor returns the bits of expressions reading any of dirty.
func (d *Document) MaskFor(dirty map[VarID]bool) Mask {
	var m Mask
	if len(dirty) == 0 {
		return m
	}
	for bit, vars := range d.bitVars {
		for _, v := range vars {
			if dirty[v] {
				m.Set(bit)
				break
			}
		}
	}
	return m
}

// Dump prints the scope tree for debugging and tests.
func (p *Program) Dump() string {
	var b strings.Builder
	dumpDoc(&b, p, p.Root, 0)
	return b.String()
}

func dumpDoc(b *strings.Builder, p *Program, d *Document, depth int) {
	ind := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%sscope %s bits=%d\n", ind, d.Width, d.Bits)
	for _, e := range d.Exprs {
		vars := make([]string, 0, len(p.Tree[e.ID]))
		for _, v := range p.Tree[e.ID] {
			vars = append(vars, p.Vars.Var(v).String())
		}
		sort.Strings(vars)
		fmt.Fprintf(b, "%s$%d %s", ind, e.ID, e.Kind)
		if e.Kind != Local {
			fmt.Fprintf(b, " bit=%d path=%s", e.Bit, e.Path)
			if e.Ranged() {
				fmt.Fprintf(b, " insert=%s", e.Insert)
			}
			if e.Attr != nil {
				fmt.Fprintf(b, " attr=%s", e.Attr.Key)
			}
		}
		fmt.Fprintf(b, " vars=[%s]\n", strings.Join(vars, " "))
		if e.Body != nil {
			dumpDoc(b, p, e.Body, depth+1)
		}
		if e.Else != nil {
			dumpDoc(b, p, e.Else, depth+1)
		}
		for _, br := range e.Branches {
			dumpDoc(b, p, br, depth+1)
		}
	}
}
