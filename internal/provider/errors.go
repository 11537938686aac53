// Package provider holds helpers shared by the model provider implementations.
package provider

import (
	"net/http"
	"strconv"
	"time"

	"github.com/spetersoncode/codison"
)

// Categorize wraps an API error with the category implied by its HTTP
// status code. A Retry-After header on the response is carried along.
func Categorize(err error, code int, header http.Header) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if retryAfter := ParseRetryAfter(header); retryAfter > 0 {
		return codison.NewTransientErrorWithRetry(msg, code, retryAfter, err)
	}

	switch CategoryOf(code) {
	case codison.ErrorTransient:
		return codison.NewTransientError(msg, code, err)
	case codison.ErrorUserInput:
		return codison.NewUserInputError(msg, code, err)
	default:
		return codison.NewPermanentError(msg, code, err)
	}
}

// CategoryOf determines the error category from an HTTP status code.
func CategoryOf(code int) codison.ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return codison.ErrorTransient
	case code >= 500 && code < 600:
		return codison.ErrorTransient
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return codison.ErrorPermanent
	case code == http.StatusBadRequest || code == http.StatusNotFound || code == http.StatusUnprocessableEntity:
		return codison.ErrorUserInput
	default:
		return codison.ErrorPermanent
	}
}

// ParseRetryAfter extracts the Retry-After duration from response headers.
// Returns 0 if the header is not present or cannot be parsed.
func ParseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}

	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// HTTP-date form (RFC 7231)
	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
