package tickets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotConfigured is returned when tracker credentials are missing.
var ErrNotConfigured = errors.New("tickets: jira credentials not configured")

// APIError is a non-2xx tracker response. Message is a single readable
// string; Details keeps the raw error payload.
type APIError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira: HTTP %d: %s", e.StatusCode, e.Message)
}

// jiraErrorBody covers the error shapes the tracker uses: a message list,
// a field-error map, or a generic message.
type jiraErrorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
	Message       string            `json:"message"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var parsed jiraErrorBody
	if json.Unmarshal(body, &parsed) != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = fmt.Sprintf("HTTP %d", status)
		}
		return e
	}
	e.Details = json.RawMessage(body)
	switch {
	case len(parsed.ErrorMessages) > 0:
		e.Message = strings.Join(parsed.ErrorMessages, "; ")
	case len(parsed.Errors) > 0:
		keys := make([]string, 0, len(parsed.Errors))
		for k := range parsed.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + parsed.Errors[k]
		}
		e.Message = strings.Join(parts, "; ")
	case parsed.Message != "":
		e.Message = parsed.Message
	default:
		e.Message = string(body)
	}
	return e
}
