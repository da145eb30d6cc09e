// Package fields turns raw extracted tokens (dates, amounts, account ids,
// currencies) into typed values. Every parser is a pure function that
// returns either a value or a *ParseError.
package fields

import (
	"errors"
	"fmt"
)

// Kind classifies a field-level parse failure.
type Kind string

const (
	KindAmbiguousDate      Kind = "AMBIGUOUS_DATE"
	KindUnparseableDate    Kind = "UNPARSEABLE_DATE"
	KindUnparseableAmount  Kind = "UNPARSEABLE_AMOUNT"
	KindUnparseableAccount Kind = "UNPARSEABLE_ACCOUNT"
	KindEmptyField         Kind = "EMPTY_FIELD"
)

// ParseError reports why a raw token could not be turned into a typed value.
type ParseError struct {
	Kind   Kind
	Field  string
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s %q", e.Kind, e.Field, e.Input)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func newError(kind Kind, field, input, reason string) *ParseError {
	return &ParseError{Kind: kind, Field: field, Input: input, Reason: reason}
}

// IsKind reports whether err is a *ParseError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// KindOf returns the kind of a *ParseError, or "" for any other error.
func KindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
