package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so the store and the HTTP layer can treat it
// without string matching.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindConflict    Kind = "conflict"
	KindPersistence Kind = "persistence"
	KindTimeout     Kind = "timeout"
	KindParse       Kind = "parse"
)

// Error is an application error carrying a kind and a message fit for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so errors.Is(err, ErrAuth) works
// against wrapped values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Kind sentinels for errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrParse       = &Error{Kind: KindParse}
)

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func Auth(message string, err error) *Error { return New(KindAuth, message, err) }

func Conflict(message string, err error) *Error { return New(KindConflict, message, err) }

func Persistence(message string, err error) *Error { return New(KindPersistence, message, err) }

func Timeout(message string, err error) *Error { return New(KindTimeout, message, err) }

func Parse(message string, err error) *Error { return New(KindParse, message, err) }

// KindOf returns the kind of the first *Error in err's chain. Deadline errors
// without an *Error wrapper are reported as timeouts, anything else as a
// persistence failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindPersistence
}

// Message returns the display string for err. Only the message of the
// outermost *Error is shown; wrapped causes stay in the logs.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
