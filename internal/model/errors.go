package model

import (
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidInput marks caller-input errors (missing prompt, message, feedback...).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks unknown mockup or conversation ids.
	ErrNotFound = errors.New("not found")
)

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidInput returns an error matching ErrInvalidInput whose message is msg.
func InvalidInput(msg string) error {
	return &inputError{msg: msg}
}

// ErrorInfo holds structured failure information for a mockup render.
type ErrorInfo struct {
	FailedStep string `json:"failed_step"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	FailedAt   string `json:"failed_at"`
}

// ToJSON serializes the ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
