package dom

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/stache-go/stache/lower"
	"github.com/stache-go/stache/parser"
	"github.com/stache-go/stache/render"
	"github.com/stache-go/stache/value"
)

func build(t *testing.T, src string) *Program {
	t.Helper()
	tmpl, err := parser.Parse("test.hbs", src, nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	nodes, err := lower.Lower(tmpl, lower.Config{Receiver: "t", Escape: render.EscapeString})
	if err != nil {
		t.Fatalf("lower error: %v", err)
	}
	prog, err := Build(nodes, "t")
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	return prog
}

func mount(t *testing.T, prog *Program, data any) *Patcher {
	t.Helper()
	p, err := prog.Mount(value.FromGo(data))
	if err != nil {
		t.Fatalf("mount error: %v", err)
	}
	return p
}

func htmlOf(t *testing.T, p *Patcher) string {
	t.Helper()
	s, err := p.HTML()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// step updates p from old to new data and returns the mutations made.
func step(t *testing.T, prog *Program, p *Patcher, old, new any) int {
	t.Helper()
	before := p.Mutations()
	ov, nv := value.FromGo(old), value.FromGo(new)
	if err := p.Update(nv, prog.Dirty(ov, nv)); err != nil {
		t.Fatalf("update error: %v", err)
	}
	if !p.Dirty().IsZero() {
		t.Error("dirty mask not cleared after render")
	}
	return p.Mutations() - before
}

type item struct {
	Name string
}

type listPage struct {
	Items []item
	Cls   string
	Title string
}

const listSrc = `<ul>{{#each Items}}<li>{{ Name }}</li>{{/each}}</ul><p class="x {{ Cls }}">{{ Title }}</p>`

func TestBuildDump(t *testing.T) {
	prog := build(t, listSrc)
	want := "scope u8 bits=3\n" +
		"$0 each bit=0 path=anchor.first insert=append vars=[this.Items this__2.Name]\n" +
		"  scope u8 bits=1\n" +
		"  $1 unsafe bit=0 path=anchor.first.first vars=[this__2.Name]\n" +
		"$2 unsafe bit=1 path=$0.next attr=class vars=[this.Cls]\n" +
		"$3 unsafe bit=2 path=$2.first vars=[this.Title]\n"
	if diff := cmp.Diff(want, prog.Dump()); diff != "" {
		t.Errorf("program mismatch (-want +got):\n%s", diff)
	}
}

func TestMountAndUpdate(t *testing.T) {
	prog := build(t, listSrc)
	v0 := listPage{Items: []item{{"a"}, {"b"}}, Cls: "c", Title: "T"}
	p := mount(t, prog, v0)
	if got := htmlOf(t, p); got != `<ul><li>a</li><li>b</li></ul><p class="x c">T</p>` {
		t.Fatalf("mount: %s", got)
	}

	v1 := v0
	v1.Title = "U"
	if n := step(t, prog, p, v0, v1); n != 1 {
		t.Errorf("title change made %d mutations", n)
	}

	v2 := v1
	v2.Items = []item{{"a"}, {"z"}}
	if n := step(t, prog, p, v1, v2); n != 1 {
		t.Errorf("item change made %d mutations", n)
	}

	v3 := v2
	v3.Items = []item{{"a"}, {"z"}, {"n"}}
	if n := step(t, prog, p, v2, v3); n != 1 {
		t.Errorf("append made %d mutations", n)
	}

	v4 := v3
	v4.Items = []item{{"a"}}
	v4.Cls = "d"
	step(t, prog, p, v3, v4)
	if got := htmlOf(t, p); got != `<ul><li>a</li></ul><p class="x d">U</p>` {
		t.Errorf("after updates: %s", got)
	}
}

func TestDirtyIdempotence(t *testing.T) {
	prog := build(t, listSrc)
	data := listPage{Items: []item{{"a"}}, Cls: "c", Title: "T"}
	p := mount(t, prog, data)
	if n := step(t, prog, p, data, data); n != 0 {
		t.Errorf("render without changes made %d mutations", n)
	}
	if err := p.Update(value.FromGo(data), nil); err != nil {
		t.Fatal(err)
	}
	if p.Mutations() != 0 {
		t.Errorf("render with empty mask made %d mutations", p.Mutations())
	}
}

type flagItem struct {
	Flag bool
}

func TestNestedTopLevelInsertion(t *testing.T) {
	prog := build(t, "{{#each Items}}{{#if Flag}}<a></a>{{/if}}<b></b>{{/each}}<hr>")
	v0 := struct{ Items []flagItem }{[]flagItem{{true}, {false}}}
	p := mount(t, prog, v0)
	if got := htmlOf(t, p); got != "<a></a><b></b><b></b><hr/>" {
		t.Fatalf("mount: %s", got)
	}
	v1 := struct{ Items []flagItem }{[]flagItem{{true}, {true}}}
	if n := step(t, prog, p, v0, v1); n != 1 {
		t.Errorf("branch change made %d mutations", n)
	}
	if got := htmlOf(t, p); got != "<a></a><b></b><a></a><b></b><hr/>" {
		t.Errorf("after update: %s", got)
	}
}

type ifPage struct {
	Show bool
	Name string
}

func TestIfElseSwitch(t *testing.T) {
	prog := build(t, "<div>{{#if Show}}<b>{{ Name }}</b>{{else}}none{{/if}}<i>x</i></div>")
	if e := prog.Expr(0); e.Kind != IfElse || e.Insert.Static != 1 || len(e.Branches) != 2 {
		t.Fatalf("unexpected expression %+v", e)
	}
	v0 := ifPage{Show: true, Name: "n"}
	p := mount(t, prog, v0)
	if got := htmlOf(t, p); got != "<div><b>n</b><i>x</i></div>" {
		t.Fatalf("mount: %s", got)
	}
	v1 := ifPage{Show: true, Name: "m"}
	if n := step(t, prog, p, v0, v1); n != 1 {
		t.Errorf("name change made %d mutations", n)
	}
	v2 := ifPage{Show: false, Name: "m"}
	step(t, prog, p, v1, v2)
	if got := htmlOf(t, p); got != "<div>none<i>x</i></div>" {
		t.Errorf("after switch: %s", got)
	}
}

func TestEachElse(t *testing.T) {
	prog := build(t, "<ul>{{#each Items}}<li>{{ Name }}</li>{{else}}<li>empty</li>{{/each}}</ul>")
	v0 := listPage{}
	p := mount(t, prog, v0)
	if got := htmlOf(t, p); got != "<ul><li>empty</li></ul>" {
		t.Fatalf("mount: %s", got)
	}
	v1 := listPage{Items: []item{{"a"}}}
	step(t, prog, p, v0, v1)
	if got := htmlOf(t, p); got != "<ul><li>a</li></ul>" {
		t.Errorf("after fill: %s", got)
	}
	step(t, prog, p, v1, v0)
	if got := htmlOf(t, p); got != "<ul><li>empty</li></ul>" {
		t.Errorf("after clear: %s", got)
	}
}

func findComment(n *html.Node, data string) *html.Node {
	if n.Type == html.CommentNode && n.Data == data {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findComment(c, data); f != nil {
			return f
		}
	}
	return nil
}

func TestSharedPathsResolveLikeAbsolute(t *testing.T) {
	prog := build(t, "<div><p>{{ A }}<b>{{ B }}</b></p><p><i>{{ C }}</i>{{ D }}</p><p><b><i>{{ E }}</i></b>{{ F }}</p></div>")
	d := prog.Root
	shared := map[ExprID]*html.Node{}
	shortened := false
	for _, e := range d.Exprs {
		base := d.Skeleton
		if e.Path.From != NoExpr {
			base = shared[e.Path.From]
			shortened = true
		}
		shared[e.ID] = Resolve(base, e.Path.Steps)
		want := findComment(d.Skeleton, "stache:"+strconv.Itoa(int(e.ID)))
		if shared[e.ID] != want {
			t.Errorf("expression %d: shared path %s resolves elsewhere", e.ID, e.Path)
		}
		if abs := Resolve(d.Skeleton, absPath(d.Skeleton, want)); abs != want {
			t.Errorf("expression %d: absolute path resolves elsewhere", e.ID)
		}
	}
	if !shortened {
		t.Error("no path shared a prefix")
	}
}

func TestSharedPrefix(t *testing.T) {
	prog := build(t, "<div><p>{{ A }}<b>{{ B }}</b></p></div>")
	if got := prog.Expr(1).Path.String(); got != "$0.next.first" {
		t.Errorf("path = %s", got)
	}
}

func TestSharedBits(t *testing.T) {
	prog := build(t, "{{ A }}<br>{{ A }}<br>{{ B }}")
	d := prog.Root
	if d.Bits != 2 || d.Width != U8 {
		t.Fatalf("bits = %d width = %s", d.Bits, d.Width)
	}
	if prog.Expr(0).Bit != prog.Expr(1).Bit || prog.Expr(1).Bit == prog.Expr(2).Bit {
		t.Errorf("bits: %d %d %d", prog.Expr(0).Bit, prog.Expr(1).Bit, prog.Expr(2).Bit)
	}
	want := []Field{{"el0", "*html.Node"}, {"el1", "*html.Node"}, {"el2", "*html.Node"}, {"dirty", "uint8"}}
	if diff := cmp.Diff(want, d.BlackBox()); diff != "" {
		t.Errorf("black box mismatch (-want +got):\n%s", diff)
	}
}

func TestExpressionInsideTag(t *testing.T) {
	tmpl, err := parser.Parse("test.hbs", "<a {{#if X}}href{{/if}}>x</a>", nil)
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := lower.Lower(tmpl, lower.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(nodes, "t"); err == nil {
		t.Error("expected error for a block helper inside a tag")
	}
}

func TestExpressionInsideRawText(t *testing.T) {
	tmpl, err := parser.Parse("test.hbs", "<script>var x = {{ X }};</script>", nil)
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := lower.Lower(tmpl, lower.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(nodes, "t"); err == nil || !strings.Contains(err.Error(), "<script>") {
		t.Errorf("err = %v", err)
	}
}

func TestExpressionInsideComment(t *testing.T) {
	tmpl, err := parser.Parse("test.hbs", "<div><!-- {{ Title }} --></div>", nil)
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := lower.Lower(tmpl, lower.Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(nodes, "t")
	if err == nil || err.Error() != "dom: expression inside an HTML comment is not supported" {
		t.Errorf("err = %v", err)
	}

	// A closed comment does not affect what follows.
	prog := build(t, "<div><!-- note --><p>{{ Title }}</p></div>")
	p := mount(t, prog, map[string]any{"Title": "hi"})
	if got := htmlOf(t, p); !strings.Contains(got, "<p>hi</p>") {
		t.Errorf("html = %q", got)
	}
}

func TestWidthFor(t *testing.T) {
	tests := []struct {
		n    int
		want Width
		typ  string
	}{
		{1, U8, "uint8"},
		{9, U16, "uint16"},
		{32, U32, "uint32"},
		{33, U64, "[2]uint32"},
		{100, U128, "[2]uint64"},
		{256, U256, "[4]uint64"},
	}
	for _, tt := range tests {
		w, err := WidthFor(tt.n)
		if err != nil || w != tt.want || w.GoType() != tt.typ {
			t.Errorf("WidthFor(%d) = %v %s %v", tt.n, w, w.GoType(), err)
		}
	}
	if _, err := WidthFor(257); err == nil {
		t.Error("expected error for 257 bits")
	}
}

func TestMask(t *testing.T) {
	var m Mask
	if !m.IsZero() {
		t.Fatal("zero mask not empty")
	}
	m.Set(3)
	m.Set(200)
	if !m.Has(3) || !m.Has(200) || m.Has(4) || m.Count() != 2 {
		t.Errorf("mask = %v", m)
	}
	m.Clear(3)
	if m.Has(3) {
		t.Error("bit 3 still set")
	}
	var o Mask
	o.Set(64)
	if u := m.Or(o); !u.Has(64) || !u.Has(200) {
		t.Errorf("union = %v", u)
	}
	m.Reset()
	if !m.IsZero() {
		t.Error("reset mask not empty")
	}
}

func TestPlanEach(t *testing.T) {
	grow := PlanEach(3, 5, func(i int) bool { return i == 1 })
	want := []EachOp{{UpdateItem, 1}, {InsertItem, 3}, {InsertItem, 4}}
	if diff := cmp.Diff(want, grow); diff != "" {
		t.Errorf("grow mismatch (-want +got):\n%s", diff)
	}
	shrink := PlanEach(4, 2, func(int) bool { return true })
	want = []EachOp{{UpdateItem, 0}, {UpdateItem, 1}, {RemoveItem, 3}, {RemoveItem, 2}}
	if diff := cmp.Diff(want, shrink); diff != "" {
		t.Errorf("shrink mismatch (-want +got):\n%s", diff)
	}
	if ops := PlanEach(2, 2, func(int) bool { return false }); len(ops) != 0 {
		t.Errorf("clean plan = %v", ops)
	}
}

type counter struct {
	Count int
}

func TestAppDrainsReentrantSends(t *testing.T) {
	prog := build(t, "<p>{{ Count }}</p>")
	var (
		app *App[counter, int]
		log []string
	)
	app, err := NewApp(prog, counter{}, func(s *counter, m int) {
		log = append(log, "update")
		s.Count += m
		if m == 1 {
			app.Send(10)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	app.OnRender = func(int) { log = append(log, "render") }
	app.Send(1)

	if diff := cmp.Diff([]string{"update", "render", "update", "render"}, log); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if app.State().Count != 11 || app.Renders() != 2 || app.Err() != nil {
		t.Errorf("state %+v renders %d err %v", app.State(), app.Renders(), app.Err())
	}
	if got := htmlOf(t, app.Patcher()); got != "<p>11</p>" {
		t.Errorf("html = %s", got)
	}
}
