// Package lexer provides the byte-level primitives the template parser is
// built on: an immutable cursor over the source, whitespace classification
// and recognizers for identifiers, paths and embedded Go literals.
package lexer

import (
	"strings"

	"github.com/stache-go/stache/syntax"
)

// Cursor is an immutable position in the template source. Every advance
// returns a new cursor; Off + len(Rest) always equals the source length.
type Cursor struct {
	Rest string
	Off  int
}

// New returns a cursor at the start of src.
func New(src string) Cursor {
	return Cursor{Rest: src}
}

// Advance consumes n bytes. n must not exceed Len.
func (c Cursor) Advance(n int) Cursor {
	return Cursor{Rest: c.Rest[n:], Off: c.Off + n}
}

// Len returns the number of remaining bytes.
func (c Cursor) Len() int { return len(c.Rest) }

// IsEmpty reports whether the cursor is at the end of the source.
func (c Cursor) IsEmpty() bool { return len(c.Rest) == 0 }

// At returns the byte at i or 0 when out of range.
func (c Cursor) At(i int) byte {
	if i < 0 || i >= len(c.Rest) {
		return 0
	}
	return c.Rest[i]
}

// Find returns the index of the first b in the remaining text, or -1.
func (c Cursor) Find(b byte) int {
	return strings.IndexByte(c.Rest, b)
}

// FindString returns the index of the first lit in the remaining text, or -1.
func (c Cursor) FindString(lit string) int {
	return strings.Index(c.Rest, lit)
}

// StartsWith reports whether the remaining text begins with lit.
func (c Cursor) StartsWith(lit string) bool {
	return strings.HasPrefix(c.Rest, lit)
}

// StartsWithAt reports whether lit occurs at offset i of the remaining text.
func (c Cursor) StartsWithAt(i int, lit string) bool {
	if i < 0 || i > len(c.Rest) {
		return false
	}
	return strings.HasPrefix(c.Rest[i:], lit)
}

// Span returns the span from start up to the current position.
func (c Cursor) Span(start Cursor) syntax.Span {
	return syntax.NewSpan(start.Off, c.Off)
}

// SpanN returns the span of the next n bytes.
func (c Cursor) SpanN(n int) syntax.Span {
	return syntax.NewSpan(c.Off, c.Off+n)
}

// SkipWS advances past leading ASCII whitespace.
func (c Cursor) SkipWS() Cursor {
	i := 0
	for i < len(c.Rest) && IsWhitespace(c.Rest[i]) {
		i++
	}
	return c.Advance(i)
}
