package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindMalformed ErrorKind = "malformed_request"
	KindTransport ErrorKind = "transport"
	KindEmpty     ErrorKind = "empty_response"
)

// Error is returned by every gateway implementation.
type Error struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable returns true for transient failures (rate limit, transport).
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTransport
}

// KindOf extracts the ErrorKind from err.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err is a transient gateway failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// kindForStatus maps an HTTP status from the provider to an ErrorKind.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= http.StatusInternalServerError:
		return KindTransport
	default:
		return KindMalformed
	}
}

func statusError(provider string, code int, body string) *Error {
	return &Error{Provider: provider, Kind: kindForStatus(code), StatusCode: code, Body: truncate(body, 500)}
}

func transportError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTransport, Err: err}
}

func emptyError(provider, msg string) *Error {
	return &Error{Provider: provider, Kind: KindEmpty, Err: errors.New(msg)}
}

// ctxError turns a deadline into a transport failure so timeouts are
// classified like any other network problem.
func ctxError(ctx context.Context, provider string, err error) *Error {
	if ctx.Err() != nil {
		return transportError(provider, ctx.Err())
	}
	return transportError(provider, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
