// Package errors defines the error type shared by every compilation stage
// and renders source-annotated diagnostics for it.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stache-go/stache/syntax"
)

// ErrorKind describes the type of error.
type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrUncompleted
	ErrHelperMismatch
	ErrBadExpression
	ErrSuperDepth
	ErrPartialBlock
	ErrAtHelperArgs
	ErrRecursionLimit
	ErrTemplateNotFound
	ErrUnknownHelper
	ErrScope
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrUncompleted:
		return "uncompleted tag"
	case ErrHelperMismatch:
		return "helper not closed correctly"
	case ErrBadExpression:
		return "bad expression"
	case ErrSuperDepth:
		return "use of super without matching parent"
	case ErrPartialBlock:
		return "partial block without parent"
	case ErrAtHelperArgs:
		return "bad at-helper arguments"
	case ErrRecursionLimit:
		return "recursion limit exceeded"
	case ErrTemplateNotFound:
		return "template not found"
	case ErrUnknownHelper:
		return "unknown helper"
	case ErrScope:
		return "scope error"
	default:
		return "error"
	}
}

// Error is a compile error with an optional location in a template.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *syntax.Span
	Name    string // template path
	Source  string // template source, for snippets
	Root    string // prefix stripped from Name when printing
}

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new error with a formatted message.
func Errorf(kind ErrorKind, span syntax.Span, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...)).WithSpan(span)
}

func (e *Error) Error() string {
	name := e.displayName()
	if e.Span != nil && e.Source != "" {
		pos := syntax.LineCol(e.Source, e.Span.Lo)
		if name != "" {
			return fmt.Sprintf("%s: %s (at %s line %d)", e.Kind, e.Message, name, pos.Line)
		}
		return fmt.Sprintf("%s: %s (at line %d)", e.Kind, e.Message, pos.Line)
	}
	if name != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Kind, e.Message, name)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Format implements fmt.Formatter. The %+v verb renders the source snippet.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			formatWithSnippet(f, e)
			return
		}
		_, _ = fmt.Fprint(f, e.Error())
	case 's':
		_, _ = fmt.Fprint(f, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(f, "%q", e.Error())
	}
}

// WithSpan adds span information to an error.
func (e *Error) WithSpan(span syntax.Span) *Error {
	e.Span = &span
	return e
}

// WithName adds the template path to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithSource adds the template source to an error.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithRoot sets the prefix stripped from the template path when printing.
func (e *Error) WithRoot(root string) *Error {
	e.Root = root
	return e
}

func (e *Error) displayName() string {
	if e.Root == "" {
		return e.Name
	}
	name := strings.TrimPrefix(e.Name, e.Root)
	return strings.TrimLeft(name, "/\\")
}

func (e *Error) start() int {
	if e.Span == nil {
		return -1
	}
	return e.Span.Lo
}

// List collects errors from one or more templates.
type List []*Error

// Add appends err to the list.
func (l *List) Add(err *Error) {
	*l = append(*l, err)
}

// Sort orders the errors by span start. Errors at the same offset keep
// discovery order unless they come from different templates.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].start() != l[j].start() {
			return l[i].start() < l[j].start()
		}
		return l[i].Name < l[j].Name
	})
}

// Err returns nil for an empty list and the list itself otherwise.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (l List) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// Format implements fmt.Formatter. The %+v verb renders every snippet.
func (l List) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('+') {
		for i, e := range l {
			if i > 0 {
				_, _ = fmt.Fprint(f, "\n")
			}
			formatWithSnippet(f, e)
		}
		return
	}
	_, _ = fmt.Fprint(f, l.Error())
}
