package game

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation was rejected.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidState Kind = "INVALID_STATE"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindFailure      Kind = "FAILURE"
)

// Error carries a Kind plus the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// Failure wraps an infrastructure error (store, catalog fetch).
func Failure(op string, err error) error {
	return &Error{Kind: KindFailure, Op: op, Err: err}
}

// WithOp stamps the operation name on a *Error, leaving other errors untouched.
func WithOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}

// KindOf reports the Kind of err; unknown errors count as failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFailure
}

// Message returns the caller-safe text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindFailure {
			return "internal error"
		}
		return e.Msg
	}
	return "internal error"
}
