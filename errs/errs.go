// Package errs defines the error taxonomy shared by services and handlers.
//
// Every failure that reaches an HTTP response is an *Error carrying a Kind.
// The Kind decides the status code; Code and Message are what the client sees.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindInvalidState
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus returns the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the application error type.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns e with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

func Unauthenticated(code, message string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: code, Message: message}
}

// Forbidden names the caller's role and the roles that would have been allowed.
func Forbidden(role string, requiredRoles []string) *Error {
	return &Error{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: fmt.Sprintf("role %q is not permitted to perform this action", role),
		Details: map[string]any{
			"role":           role,
			"required_roles": requiredRoles,
		},
	}
}

// NotOwner is a forbidden error for actions limited to the order's creator.
func NotOwner() *Error {
	return &Error{
		Kind:    KindForbidden,
		Code:    "NOT_ORDER_OWNER",
		Message: "only the creator of the order may perform this action",
	}
}

// InvalidState reports an action attempted from the wrong status.
func InvalidState(current, required string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Code:    "INVALID_STATE",
		Message: fmt.Sprintf("order status is %q, action requires %q", current, required),
		Details: map[string]any{
			"current_status":  current,
			"required_status": required,
		},
	}
}

// Validation reports a single bad or missing field.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]any{field: message},
	}
}

// ValidationFields reports several field errors at once.
func ValidationFields(fields map[string]string) *Error {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return &Error{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: "request validation failed",
		Details: details,
	}
}

// BadRequest is a validation-kind error with a custom code.
func BadRequest(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Internal wraps an unexpected failure. The cause is logged, never returned to clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}
