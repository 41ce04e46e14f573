// Package result provides the success-or-failure wrapper returned at every
// external-call boundary (FHIR search, token acquisition, analysis service).
// Callers branch on Error.Type to decide between retry, propagate and degrade
// without matching on error strings.
package result

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a failure. Each type lines up with an HTTP status class.
type ErrorType int

const (
	None ErrorType = iota
	NotFound
	Validation
	Unauthorized
	Forbidden
	Conflict
	Infrastructure
	Unexpected
)

var errorTypeNames = map[ErrorType]string{
	None:           "none",
	NotFound:       "not_found",
	Validation:     "validation",
	Unauthorized:   "unauthorized",
	Forbidden:      "forbidden",
	Conflict:       "conflict",
	Infrastructure: "infrastructure",
	Unexpected:     "unexpected",
}

func (t ErrorType) String() string {
	if s, ok := errorTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("error_type(%d)", int(t))
}

// StatusCode returns the conventional HTTP status for the failure class.
func (t ErrorType) StatusCode() int {
	switch t {
	case None:
		return http.StatusOK
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case Infrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether a failure of this type is worth retrying on the
// next scheduled attempt.
func (t ErrorType) Transient() bool {
	return t == Infrastructure || t == Unauthorized
}

// Error is the failure half of a Result.
type Error struct {
	Code    string
	Message string
	Type    ErrorType
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error of the given type.
func NewError(t ErrorType, code, message string) *Error {
	return &Error{Code: code, Message: message, Type: t}
}

// Wrap builds an Error of the given type around an underlying cause.
func Wrap(t ErrorType, code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Type: t, Cause: cause}
}

func NotFoundError(code, message string) *Error {
	return NewError(NotFound, code, message)
}

func ValidationError(code, message string) *Error {
	return NewError(Validation, code, message)
}

func UnauthorizedError(code, message string) *Error {
	return NewError(Unauthorized, code, message)
}

func ForbiddenError(code, message string) *Error {
	return NewError(Forbidden, code, message)
}

func ConflictError(code, message string) *Error {
	return NewError(Conflict, code, message)
}

func InfrastructureError(code, message string, cause error) *Error {
	return Wrap(Infrastructure, code, message, cause)
}

func UnexpectedError(code, message string, cause error) *Error {
	return Wrap(Unexpected, code, message, cause)
}

// TypeOf extracts the ErrorType from any error chain. A nil error is None and
// an error that carries no *Error is Unexpected.
func TypeOf(err error) ErrorType {
	if err == nil {
		return None
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Type
	}
	return Unexpected
}

// FromHTTPStatus classifies a non-2xx HTTP response status.
func FromHTTPStatus(status int) ErrorType {
	switch {
	case status >= 200 && status < 300:
		return None
	case status == http.StatusNotFound || status == http.StatusGone:
		return NotFound
	case status == http.StatusUnauthorized:
		return Unauthorized
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return Conflict
	case status == http.StatusTooManyRequests || status >= 500:
		return Infrastructure
	case status >= 400:
		return Validation
	default:
		return Unexpected
	}
}

// Result holds either a value or an Error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a failure. A nil err is recorded as Unexpected so a failed Result
// can never masquerade as a success.
func Fail[T any](err *Error) Result[T] {
	if err == nil {
		err = NewError(Unexpected, "unknown", "failure without error detail")
	}
	return Result[T]{err: err}
}

func (r Result[T]) IsSuccess() bool { return r.err == nil }

func (r Result[T]) IsFailure() bool { return r.err != nil }

// Value returns the success payload, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, or nil on success.
func (r Result[T]) Err() *Error { return r.err }

// Get converts the Result to the usual (value, error) pair.
func (r Result[T]) Get() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}
