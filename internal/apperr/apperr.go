// Package apperr defines the error kinds the API distinguishes and how each one maps
// onto an HTTP status code.
//
// Domain packages declare their failures as *Error values (usually package-level
// sentinels such as identity.ErrDuplicateEmail) and callers compare them with errors.Is.
// Anything that is not an *Error is treated as an unexpected storage failure: it is
// logged by the handler layer and the client only ever sees a generic message.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an error for the purposes of the HTTP response.
type Kind int

const (
	KindInternal   Kind = iota // unexpected persistence or programming failure → 500
	KindValidation             // missing/malformed field, bad enum value → 400
	KindAuth                   // bad credentials, bad or expired token → 401
	KindForbidden              // authenticated but not allowed → 403
	KindNotFound               // unknown id → 404
	KindConflict               // duplicate unique key or out-of-order state change → 409
)

// Error is a classified application error. Msg is safe to show to clients.
type Error struct {
	Kind Kind   // picks the HTTP status
	Msg  string // shown to the client as-is
	Err  error  // underlying cause; logged, never shown
}

// Error includes the cause so logs carry the whole chain.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is lets a freshly wrapped error (see Wrap) still match the sentinel it was built from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// Only a bare sentinel matches by value. A wrapped target must be the same pointer.
	return e == t || (e.Kind == t.Kind && e.Msg == t.Msg && t.Err == nil)
}

// newf builds an unwrapped *Error of kind.
func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Constructors, one per client-facing kind. Internal errors need none: any plain
// error counts as internal.
func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Auth(format string, args ...any) *Error       { return newf(KindAuth, format, args...) }
func Forbidden(format string, args ...any) *Error  { return newf(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error   { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return newf(KindConflict, format, args...) }

// Wrap attaches a cause to a sentinel without changing what clients see.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	// errors.As finds an *Error anywhere in a wrapped chain.
	var e *Error
	if !errors.As(err, &e) {
		return fiber.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuth:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Unclassified errors never leak
// their contents.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}
