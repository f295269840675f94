package expression

import (
	"errors"
	"fmt"
)

// Kind classifies why an expression could not be evaluated.
type Kind int

const (
	KindSyntax Kind = iota + 1
	KindUnknownIdentifier
	KindType
	KindDivisionByZero
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindUnknownIdentifier:
		return "unknown_identifier"
	case KindType:
		return "type"
	case KindDivisionByZero:
		return "division_by_zero"
	default:
		return "unknown"
	}
}

// Error is returned for malformed expressions and for failures while
// evaluating them. Pos is the byte offset in the source expression.
type Error struct {
	Kind Kind
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error at offset %d: %s", e.Kind, e.Pos, e.Msg)
}

func errorf(kind Kind, pos int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsEvaluationError reports whether err came from this package.
func IsEvaluationError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// KindOf returns the Kind of an evaluation error, or 0 for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
