package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsWhitespace reports whether b is ASCII whitespace.
func IsWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// IsAllWhitespace reports whether s consists only of ASCII whitespace.
func IsAllWhitespace(s string) bool {
	for i := 0; i < len(s); i++ {
		if !IsWhitespace(s[i]) {
			return false
		}
	}
	return true
}

// Trim splits s into its leading whitespace, the inner text and its trailing
// whitespace. A string made only of whitespace is returned whole as the
// leading part.
func Trim(s string) (lead, core, trail string) {
	i := 0
	for i < len(s) && IsWhitespace(s[i]) {
		i++
	}
	if i == len(s) {
		return s, "", ""
	}
	j := len(s)
	for j > i && IsWhitespace(s[j-1]) {
		j--
	}
	return s[:i], s[i:j], s[j:]
}

// TrimLeft returns s without leading whitespace.
func TrimLeft(s string) string {
	i := 0
	for i < len(s) && IsWhitespace(s[i]) {
		i++
	}
	return s[i:]
}

// TrimRight returns s without trailing whitespace.
func TrimRight(s string) string {
	j := len(s)
	for j > 0 && IsWhitespace(s[j-1]) {
		j--
	}
	return s[:j]
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Ident returns the length of the Go identifier at the start of s, or 0.
func Ident(s string) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if n == 0 && !isIdentStart(r) {
			return 0
		}
		if !isIdentPart(r) {
			break
		}
		n += size
	}
	return n
}

// IsIdent reports whether s is exactly one identifier.
func IsIdent(s string) bool {
	return s != "" && Ident(s) == len(s)
}

// Path returns the length of the partial path at the start of s. Paths are
// identifiers joined by '/', '.', '-' and may start with '@' or "./".
func Path(s string) int {
	n := 0
	for n < len(s) {
		c := s[n]
		switch {
		case c == '/' || c == '.' || c == '-' || c == '_' || c == '@':
			n++
		case c < utf8.RuneSelf:
			if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
				return n
			}
			n++
		default:
			r, size := utf8.DecodeRuneInString(s[n:])
			if !isIdentPart(r) {
				return n
			}
			n += size
		}
	}
	return n
}

// StringEnd returns the index just past the closing quote of the Go string,
// rune or raw string literal starting at s[0], or -1 when unterminated.
func StringEnd(s string) int {
	if s == "" {
		return -1
	}
	quote := s[0]
	switch quote {
	case '`':
		for i := 1; i < len(s); i++ {
			if s[i] == '`' {
				return i + 1
			}
		}
		return -1
	case '"', '\'':
		for i := 1; i < len(s); i++ {
			switch s[i] {
			case '\\':
				i++
			case '\n':
				return -1
			case quote:
				return i + 1
			}
		}
	}
	return -1
}

// TagEnd returns the index of the closing delimiter of a tag payload,
// skipping Go string literals and balanced braces so that a `}}` inside
// `"..."` or a composite literal does not end the tag. It returns -1 when
// no delimiter is found.
func TagEnd(s, delim string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			n := StringEnd(s[i:])
			if n < 0 {
				return -1
			}
			i += n - 1
		case '{':
			depth++
		case '}':
			if depth == 0 {
				if len(s)-i >= len(delim) && s[i:i+len(delim)] == delim {
					return i
				}
				return -1
			}
			depth--
		}
	}
	return -1
}

// Piece is a substring of a larger text together with its offset.
type Piece struct {
	Text string
	Off  int
}

// SplitTop splits s at every sep that is not nested in brackets or inside a
// Go string literal.
func SplitTop(s string, sep byte) []Piece {
	var out []Piece
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			if n := StringEnd(s[i:]); n > 0 {
				i += n - 1
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				out = append(out, Piece{Text: s[start:i], Off: start})
				start = i + 1
			}
		}
	}
	return append(out, Piece{Text: s[start:], Off: start})
}

// Assign splits `name = expr` at its assignment operator. It returns ok false
// when s does not start with an identifier list followed by a single `=`.
func Assign(s string) (names []Piece, rhs Piece, ok bool) {
	eq := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			if i+1 < len(s) && s[i+1] == '=' {
				return nil, Piece{}, false
			}
			if i > 0 && strings.IndexByte("!<>:", s[i-1]) >= 0 {
				return nil, Piece{}, false
			}
			eq = i
			break
		}
		if !(s[i] == ',' || IsWhitespace(s[i]) || s[i] >= utf8.RuneSelf || Ident(s[i:]) > 0 || s[i] >= '0' && s[i] <= '9') {
			return nil, Piece{}, false
		}
	}
	if eq < 0 {
		return nil, Piece{}, false
	}
	for _, p := range SplitTop(s[:eq], ',') {
		lead, core, _ := Trim(p.Text)
		if !IsIdent(core) {
			return nil, Piece{}, false
		}
		names = append(names, Piece{Text: core, Off: p.Off + len(lead)})
	}
	return names, Piece{Text: s[eq+1:], Off: eq + 1}, true
}
