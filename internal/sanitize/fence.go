package sanitize

import "strings"

const fenceMarker = "```"

// Fence is one markdown code fence.
type Fence struct {
	Lang   string
	Body   string
	Closed bool
}

// ParseFences scans s for markdown code fences in order of appearance.
// A fence opens with ``` followed by an optional info string up to the end
// of the line. An opening fence with no closing fence yields a final Fence
// with Closed=false whose Body runs to the end of s.
func ParseFences(s string) []Fence {
	var fences []Fence
	pos := 0
	for {
		i := strings.Index(s[pos:], fenceMarker)
		if i < 0 {
			return fences
		}
		open := pos + i + len(fenceMarker)

		lang, bodyStart := infoString(s, open)

		j := strings.Index(s[bodyStart:], fenceMarker)
		if j < 0 {
			fences = append(fences, Fence{Lang: lang, Body: s[bodyStart:]})
			return fences
		}
		fences = append(fences, Fence{Lang: lang, Body: s[bodyStart : bodyStart+j], Closed: true})
		pos = bodyStart + j + len(fenceMarker)
	}
}

// infoString reads the language tag right after an opening fence. The tag
// is only honoured when it is a single word ending the line; otherwise the
// body starts immediately after the fence marker.
func infoString(s string, open int) (lang string, bodyStart int) {
	nl := strings.IndexByte(s[open:], '\n')
	if nl < 0 {
		return "", open
	}
	line := strings.TrimSpace(s[open : open+nl])
	if line == "" || strings.ContainsAny(line, " \t<{[") {
		if line == "" {
			return "", open + nl + 1
		}
		return "", open
	}
	return strings.ToLower(line), open + nl + 1
}

// ExtractFence returns the body of the first fence tagged lang, or failing
// that the body of the first fence of any kind.
func ExtractFence(s, lang string) (string, bool) {
	fences := ParseFences(s)
	if len(fences) == 0 {
		return "", false
	}
	for _, f := range fences {
		if lang != "" && f.Lang == lang {
			return strings.TrimSpace(f.Body), true
		}
	}
	return strings.TrimSpace(fences[0].Body), true
}
