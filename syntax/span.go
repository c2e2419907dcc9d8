package syntax

import "strings"

// Span represents a byte range in the original template source.
type Span struct {
	Lo int
	Hi int
}

// NewSpan creates a span, panicking if lo > hi.
func NewSpan(lo, hi int) Span {
	if lo > hi {
		panic("internal error: span with lo > hi")
	}
	return Span{Lo: lo, Hi: hi}
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.Hi - s.Lo }

// Join returns the smallest span covering both s and o.
func (s Span) Join(o Span) Span {
	lo, hi := s.Lo, s.Hi
	if o.Lo < lo {
		lo = o.Lo
	}
	if o.Hi > hi {
		hi = o.Hi
	}
	return Span{Lo: lo, Hi: hi}
}

// Shift moves the span by off bytes.
func (s Span) Shift(off int) Span {
	return Span{Lo: s.Lo + off, Hi: s.Hi + off}
}

// Pos is a 1-indexed line and 0-indexed byte column.
type Pos struct {
	Line int
	Col  int
}

// LineCol returns the position of the byte offset off in src.
func LineCol(src string, off int) Pos {
	if off > len(src) {
		off = len(src)
	}
	head := src[:off]
	line := strings.Count(head, "\n") + 1
	col := off
	if idx := strings.LastIndexByte(head, '\n'); idx >= 0 {
		col = off - idx - 1
	}
	return Pos{Line: line, Col: col}
}

// LineOffset converts a 1-indexed line and 1-indexed column, as reported by
// go/scanner, into a byte offset in src. Out of range positions clamp to the
// end of the source.
func LineOffset(src string, line, col int) int {
	off := 0
	for l := 1; l < line; l++ {
		idx := strings.IndexByte(src[off:], '\n')
		if idx < 0 {
			return len(src)
		}
		off += idx + 1
	}
	if col > 0 {
		off += col - 1
	}
	if off > len(src) {
		off = len(src)
	}
	return off
}
