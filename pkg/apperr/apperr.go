// Package apperr carries a failure kind alongside a wrapped error so that
// transport layers can map domain failures without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Internal Kind = iota
	InvalidArgument
	NotFound
	Mismatch
	Expired
	DeliveryError
	PermissionDenied
	Unavailable
	Timeout
	Unauthorized
	Forbidden
	Conflict
	RateLimited
)

var kindNames = map[Kind]string{
	Internal:         "internal",
	InvalidArgument:  "invalid_argument",
	NotFound:         "not_found",
	Mismatch:         "mismatch",
	Expired:          "expired",
	DeliveryError:    "delivery_error",
	PermissionDenied: "permission_denied",
	Unavailable:      "unavailable",
	Timeout:          "timeout",
	Unauthorized:     "unauthorized",
	Forbidden:        "forbidden",
	Conflict:         "conflict",
	RateLimited:      "rate_limited",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

type Error struct {
	Kind Kind
	// Code optionally overrides the transport's default code for Kind.
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match for any *Error of the same kind, so sentinel values
// like ErrNotFound work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Coded is E with an explicit client-facing code.
func Coded(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-facing message of the outermost *Error in err's chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return ""
}

// CodeOf returns the explicit code of the outermost *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
