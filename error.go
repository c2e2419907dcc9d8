package stache

import (
	serrors "github.com/stache-go/stache/internal/errors"
)

// Error is a compile error with an optional location in a template. %+v
// prints it with a source snippet.
type Error = serrors.Error

// ErrorKind describes the type of error.
type ErrorKind = serrors.ErrorKind

// ErrorList holds the errors of one compilation, ordered by position.
// errors.As finds the individual *Error values.
type ErrorList = serrors.List

const (
	ErrSyntax           = serrors.ErrSyntax
	ErrUncompleted      = serrors.ErrUncompleted
	ErrHelperMismatch   = serrors.ErrHelperMismatch
	ErrBadExpression    = serrors.ErrBadExpression
	ErrSuperDepth       = serrors.ErrSuperDepth
	ErrPartialBlock     = serrors.ErrPartialBlock
	ErrAtHelperArgs     = serrors.ErrAtHelperArgs
	ErrRecursionLimit   = serrors.ErrRecursionLimit
	ErrTemplateNotFound = serrors.ErrTemplateNotFound
	ErrUnknownHelper    = serrors.ErrUnknownHelper
	ErrScope            = serrors.ErrScope
)

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return serrors.NewError(kind, msg)
}
