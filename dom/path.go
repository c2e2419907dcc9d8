package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Step is one move through the DOM.
type Step uint8

const (
	FirstChild Step = iota
	NextSibling
)

func (s Step) String() string {
	if s == FirstChild {
		return "first"
	}
	return "next"
}

// NoExpr marks a path that starts at the scope's anchor.
const NoExpr ExprID = -1

// Path locates a node: Steps taken from the node of expression From, or
// from the scope's anchor when From is NoExpr.
type Path struct {
	From  ExprID
	Steps []Step
}

func (p Path) String() string {
	var b strings.Builder
	if p.From == NoExpr {
		b.WriteString("anchor")
	} else {
		b.WriteString("$")
		b.WriteString(strconv.Itoa(int(p.From)))
	}
	for _, s := range p.Steps {
		b.WriteByte('.')
		b.WriteString(s.String())
	}
	return b.String()
}

// Resolve follows steps from n. It returns nil when the tree is shorter
// than the path.
func Resolve(n *html.Node, steps []Step) *html.Node {
	for _, s := range steps {
		if n == nil {
			return nil
		}
		switch s {
		case FirstChild:
			n = n.FirstChild
		case NextSibling:
			n = n.NextSibling
		}
	}
	return n
}

// absPath returns the steps from anchor to n.
func absPath(anchor, n *html.Node) []Step {
	if n == anchor {
		return nil
	}
	steps := absPath(anchor, n.Parent)
	steps = append(steps, FirstChild)
	for c := n.Parent.FirstChild; c != n; c = c.NextSibling {
		steps = append(steps, NextSibling)
	}
	return steps
}

// sharer rewrites absolute paths relative to the longest earlier path that
// is a prefix of them.
type sharer struct {
	ids   []ExprID
	paths [][]Step
}

func (s *sharer) share(id ExprID, abs []Step) Path {
	best, from := 0, NoExpr
	for i, p := range s.paths {
		if len(p) > best && len(p) <= len(abs) && hasPrefix(abs, p) {
			best, from = len(p), s.ids[i]
		}
	}
	s.ids = append(s.ids, id)
	s.paths = append(s.paths, abs)
	return Path{From: from, Steps: append([]Step(nil), abs[best:]...)}
}

func hasPrefix(s, prefix []Step) bool {
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}
