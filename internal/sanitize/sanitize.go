// Package sanitize recovers a clean HTML document or JSON payload from raw
// model output that may carry reasoning blocks, markdown fences or a chatty
// preamble.
package sanitize

import "strings"

// Kind is the artifact type the caller expects.
type Kind int

const (
	// Text keeps prose: only the reasoning block is removed.
	Text Kind = iota
	// HTML expects a complete document.
	HTML
	// JSON expects a JSON value.
	JSON
)

func (k Kind) fenceLang() string {
	switch k {
	case HTML:
		return "html"
	case JSON:
		return "json"
	default:
		return ""
	}
}

// Reasoning block markers emitted by thinking models.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

var docStartMarkers = []string{"<!doctype", "<html"}

// Sanitize strips the first reasoning block, unwraps a markdown fence
// (preferring one tagged for kind), drops any preamble before the document
// start for HTML, and trims the result.
//
// Sanitize is idempotent on clean input.
func Sanitize(raw string, kind Kind) string {
	s, _ := RemoveSpan(raw, ThinkOpen, ThinkClose)

	if kind != Text {
		if body, ok := ExtractFence(s, kind.fenceLang()); ok {
			s = body
		}
	}

	if kind == HTML {
		s = trimToDocStart(s)
	}

	return strings.TrimSpace(s)
}

// trimToDocStart discards text before the earliest document-start marker.
// s is returned unchanged when it already starts with one or has none.
func trimToDocStart(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	lower := asciiLower(trimmed)
	idx := -1
	for _, m := range docStartMarkers {
		if strings.HasPrefix(lower, m) {
			return trimmed
		}
		if i := strings.Index(lower, m); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx < 0 {
		return s
	}
	return trimmed[idx:]
}

// HasDocStart reports whether s begins with a document-start marker.
func HasDocStart(s string) bool {
	lower := asciiLower(strings.TrimSpace(s))
	for _, m := range docStartMarkers {
		if strings.HasPrefix(lower, m) {
			return true
		}
	}
	return false
}

// asciiLower lowercases A-Z only so byte offsets stay aligned with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
