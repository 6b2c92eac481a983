package sanitize

import "strings"

// Span locates a well-formed open/close marker pair in a string.
// Start and End bound the whole span including markers; Inner is the text
// between them.
type Span struct {
	Start int
	End   int
	Inner string
}

// FindSpan returns the first open marker followed by a close marker.
// ok is false when either marker is missing or the close marker only
// appears before the open marker.
func FindSpan(s, open, close string) (Span, bool) {
	i := strings.Index(s, open)
	if i < 0 {
		return Span{}, false
	}
	rest := i + len(open)
	j := strings.Index(s[rest:], close)
	if j < 0 {
		return Span{}, false
	}
	return Span{
		Start: i,
		End:   rest + j + len(close),
		Inner: s[rest : rest+j],
	}, true
}

// Between returns the trimmed text between the first marker pair.
func Between(s, open, close string) (string, bool) {
	sp, ok := FindSpan(s, open, close)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(sp.Inner), true
}

// RemoveSpan cuts the first marker pair and its contents out of s.
// s is returned unchanged when no well-formed pair exists.
func RemoveSpan(s, open, close string) (string, bool) {
	sp, ok := FindSpan(s, open, close)
	if !ok {
		return s, false
	}
	return s[:sp.Start] + s[sp.End:], true
}

// StripMarkers removes every occurrence of the markers but keeps the text
// between them.
func StripMarkers(s, open, close string) string {
	s = strings.ReplaceAll(s, open, "")
	s = strings.ReplaceAll(s, close, "")
	return strings.TrimSpace(s)
}
