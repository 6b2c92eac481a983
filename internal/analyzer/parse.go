package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// Defaults applied when the model omits or garbles a numeric field.
const (
	DefaultDifficulty = 5
	DefaultPriority   = 2
)

var errNoArray = errors.New("no JSON array in response")

var trailingComma = regexp.MustCompile(`,\s*([\]}])`)

// decodeArray locates the outermost JSON array in s and splits it into raw
// elements. A second attempt strips trailing commas.
func decodeArray(s string) ([]json.RawMessage, error) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return nil, errNoArray
	}
	body := s[start : end+1]

	var elems []json.RawMessage
	err := json.Unmarshal([]byte(body), &elems)
	if err == nil {
		return elems, nil
	}
	if err2 := json.Unmarshal([]byte(trailingComma.ReplaceAllString(body, "$1")), &elems); err2 == nil {
		return elems, nil
	}
	return nil, fmt.Errorf("decode array: %w", err)
}

// validateItem converts one raw element into a WorkItem. ok is false when
// the element is not an object or has no usable title.
func validateItem(raw json.RawMessage) (model.WorkItem, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.WorkItem{}, false
	}
	title := stringField(fields["title"])
	if title == "" {
		return model.WorkItem{}, false
	}
	return model.WorkItem{
		Title:              title,
		Description:        stringField(fields["description"]),
		AcceptanceCriteria: criteriaField(fields["acceptance_criteria"]),
		Difficulty:         intField(fields["difficulty"], DefaultDifficulty, model.MinDifficulty, model.MaxDifficulty),
		Priority:           intField(fields["priority"], DefaultPriority, model.MinPriority, model.MaxPriority),
	}, true
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// criteriaField accepts a list of strings (non-string and blank entries
// dropped) or a single string. Anything else yields an empty list.
func criteriaField(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) != nil {
		if s := stringField(raw); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, e := range list {
		if s := stringField(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// intField reads an integer in [lo, hi] that may arrive as a number, a
// float or a numeric string. Floats are truncated and clamped before the
// conversion; NaN, infinities and anything unparseable yield def.
func intField(raw json.RawMessage, def, lo, hi int) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return def
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return def
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(math.Max(float64(lo), math.Min(math.Trunc(f), float64(hi))))
}
