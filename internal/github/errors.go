package github

import (
	"fmt"
	"net/http"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// ErrorKind classifies source-hosting failures.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindTransport ErrorKind = "transport"
)

// Error is returned by every Client call.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Path       string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("github %s: %s", e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets a missing repository or file match model.ErrNotFound.
func (e *Error) Is(target error) bool {
	return e.Kind == KindNotFound && target == model.ErrNotFound
}

func statusError(path string, resp *http.Response, body string) *Error {
	kind := KindTransport
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusUnauthorized:
		kind = KindAuth
	case http.StatusForbidden:
		kind = KindAuth
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			kind = KindRateLimit
		}
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	}
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	var err error
	if body != "" {
		err = fmt.Errorf("%s", body)
	}
	return &Error{Kind: kind, StatusCode: resp.StatusCode, Path: path, Err: err}
}
