// nexchan/models/errors.go
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure so the transport layer can map it to a
// status code without inspecting message text.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindRateLimited
	KindForbidden
	KindConfiguration
	KindStorage
)

// Error is the domain error carried across package boundaries. RateLimited
// errors additionally carry the configured quota so clients can back off.
type Error struct {
	Kind   ErrorKind
	Msg    string
	Err    error
	Limit  int
	Window time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// Configurationf flags an operator mistake, not a client error. It is
// surfaced as a 500 and logged loudly.
func Configurationf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func StorageError(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

func RateLimited(limit int, window time.Duration) *Error {
	return &Error{
		Kind:   KindRateLimited,
		Msg:    fmt.Sprintf("rate limit exceeded: at most %d actions per %s", limit, window),
		Limit:  limit,
		Window: window,
	}
}

// KindOf extracts the ErrorKind from an error chain, or 0 for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
