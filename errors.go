package codison

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedOutput is returned by providers when a model response cannot be
// interpreted, such as tool arguments that are not valid JSON.
var ErrMalformedOutput = errors.New("malformed provider output")

// ErrorCategory classifies errors by how they should be handled.
type ErrorCategory string

const (
	// ErrorTransient indicates the error is temporary and the operation can be retried.
	// Examples: rate limits, temporary network issues, server overload.
	ErrorTransient ErrorCategory = "transient"

	// ErrorPermanent indicates the error is not recoverable through retry.
	ErrorPermanent ErrorCategory = "permanent"

	// ErrorUserInput indicates the request itself was rejected and must be corrected.
	ErrorUserInput ErrorCategory = "user_input"
)

// CategorizedError is an error that carries handling metadata.
type CategorizedError interface {
	error
	Category() ErrorCategory
	Retryable() bool
	StatusCode() int
	RetryAfter() time.Duration
}

// Error is the categorized error returned by provider implementations.
type Error struct {
	Msg        string
	Cat        ErrorCategory
	Code       int           // HTTP status code, 0 if not applicable
	RetryDelay time.Duration // from Retry-After header, 0 if not available
	Cause      error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Category returns the error category.
func (e *Error) Category() ErrorCategory { return e.Cat }

// Retryable reports whether the error is transient.
func (e *Error) Retryable() bool { return e.Cat == ErrorTransient }

// StatusCode returns the HTTP status code, or 0 if not applicable.
func (e *Error) StatusCode() int { return e.Code }

// RetryAfter returns the server-suggested delay, or 0.
func (e *Error) RetryAfter() time.Duration { return e.RetryDelay }

// NewTransientError creates a transient error that can be retried.
func NewTransientError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Code: statusCode, Cause: cause}
}

// NewTransientErrorWithRetry creates a transient error with a suggested retry delay.
func NewTransientErrorWithRetry(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Code: statusCode, RetryDelay: retryAfter, Cause: cause}
}

// NewPermanentError creates a permanent error that should not be retried.
func NewPermanentError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorPermanent, Code: statusCode, Cause: cause}
}

// NewUserInputError creates an error for a request the provider refused to process.
func NewUserInputError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorUserInput, Code: statusCode, Cause: cause}
}

// NewMalformedOutputError wraps a decoding failure of provider output.
// The result matches ErrMalformedOutput under errors.Is.
func NewMalformedOutputError(detail string, cause error) *Error {
	return &Error{
		Msg:   fmt.Sprintf("%s: %s", ErrMalformedOutput.Error(), detail),
		Cat:   ErrorPermanent,
		Cause: errors.Join(ErrMalformedOutput, cause),
	}
}

func categoryOf(err error) (ErrorCategory, bool) {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category(), true
	}
	return "", false
}

// IsTransient returns true if err or any wrapped error is categorized as transient.
func IsTransient(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorTransient
}

// IsPermanent returns true if err or any wrapped error is categorized as permanent.
func IsPermanent(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorPermanent
}

// IsUserInput returns true if err or any wrapped error is a user input error.
func IsUserInput(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorUserInput
}

// StatusCodeOf returns the HTTP status code from a categorized error, or 0.
func StatusCodeOf(err error) int {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	return 0
}

// RetryAfterOf returns the retry delay from a categorized error, or 0.
func RetryAfterOf(err error) time.Duration {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.RetryAfter()
	}
	return 0
}
