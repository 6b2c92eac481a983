package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const doc = "<!DOCTYPE html>\n<html><body><h1>Weather</h1></body></html>"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		want string
	}{
		{
			name: "reasoning block removed",
			raw:  "<think>plan the layout</think>\n" + doc,
			kind: HTML,
			want: doc,
		},
		{
			name: "only the reasoning span is removed",
			raw:  "before <think>a</think> after",
			kind: Text,
			want: "before  after",
		},
		{
			name: "unterminated reasoning block left as is",
			raw:  "<think>still thinking " + doc,
			kind: Text,
			want: "<think>still thinking " + doc,
		},
		{
			name: "close marker without open left as is",
			raw:  "reasoning</think> answer",
			kind: Text,
			want: "reasoning</think> answer",
		},
		{
			name: "html tagged fence",
			raw:  "Here you go:\n```html\n" + doc + "\n```\nEnjoy!",
			kind: HTML,
			want: doc,
		},
		{
			name: "tag match is case insensitive",
			raw:  "```HTML\n" + doc + "\n```",
			kind: HTML,
			want: doc,
		},
		{
			name: "tagged fence preferred over earlier generic fence",
			raw:  "```\nnot this\n```\n```json\n[1]\n```",
			kind: JSON,
			want: "[1]",
		},
		{
			name: "first generic fence when no tag matches",
			raw:  "```javascript\n[{\"a\":1}]\n```\n```\n[2]\n```",
			kind: JSON,
			want: `[{"a":1}]`,
		},
		{
			name: "unterminated fence runs to end",
			raw:  "```html\n" + doc,
			kind: HTML,
			want: doc,
		},
		{
			name: "fence without newline",
			raw:  "```" + doc + "```",
			kind: HTML,
			want: doc,
		},
		{
			name: "preamble before doctype dropped",
			raw:  "Sure! Here is the mockup you asked for.\n\n" + doc,
			kind: HTML,
			want: doc,
		},
		{
			name: "preamble before html tag dropped",
			raw:  "Result: <html lang=\"en\"></html>",
			kind: HTML,
			want: "<html lang=\"en\"></html>",
		},
		{
			name: "text without any marker passes through",
			raw:  "  just words  ",
			kind: HTML,
			want: "just words",
		},
		{
			name: "json kind does not trim to doc start",
			raw:  "<think>x</think>```json\n[{\"title\":\"<html>\"}]\n```",
			kind: JSON,
			want: `[{"title":"<html>"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw, tt.kind))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []struct {
		raw  string
		kind Kind
	}{
		{doc, HTML},
		{"<think>x</think>" + doc, HTML},
		{"```html\n" + doc + "\n```", HTML},
		{"intro\n" + doc, HTML},
		{"```json\n[1,2]\n```", JSON},
		{"plain prose", Text},
	}
	for _, in := range inputs {
		once := Sanitize(in.raw, in.kind)
		assert.Equal(t, once, Sanitize(once, in.kind), "raw: %q", in.raw)
	}
}

func TestSanitize_HTMLStartsAtMarker(t *testing.T) {
	got := Sanitize("Some words first. "+doc, HTML)
	assert.True(t, HasDocStart(got))
	assert.Equal(t, doc, got)
}

func TestFindSpan(t *testing.T) {
	sp, ok := FindSpan("a <x>inner</x> b", "<x>", "</x>")
	assert.True(t, ok)
	assert.Equal(t, 2, sp.Start)
	assert.Equal(t, 14, sp.End)
	assert.Equal(t, "inner", sp.Inner)

	_, ok = FindSpan("</x> then <x>", "<x>", "</x>")
	assert.False(t, ok, "close before open is not a pair")

	_, ok = FindSpan("no markers", "<x>", "</x>")
	assert.False(t, ok)
}

func TestBetweenAndStripMarkers(t *testing.T) {
	reply := "Great, I have enough.\n<READY_TO_GENERATE>\nA login page with SSO\n</READY_TO_GENERATE>"

	summary, ok := Between(reply, "<READY_TO_GENERATE>", "</READY_TO_GENERATE>")
	assert.True(t, ok)
	assert.Equal(t, "A login page with SSO", summary)

	display := StripMarkers(reply, "<READY_TO_GENERATE>", "</READY_TO_GENERATE>")
	assert.NotContains(t, display, "READY_TO_GENERATE")
	assert.Contains(t, display, "A login page with SSO")
}

func TestRemoveSpan_Unchanged(t *testing.T) {
	out, ok := RemoveSpan("<think>open only", ThinkOpen, ThinkClose)
	assert.False(t, ok)
	assert.Equal(t, "<think>open only", out)
}

func TestParseFences(t *testing.T) {
	fences := ParseFences("a\n```go\nx\n```\nb\n```\ny")
	if assert.Len(t, fences, 2) {
		assert.Equal(t, "go", fences[0].Lang)
		assert.Equal(t, "x\n", fences[0].Body)
		assert.True(t, fences[0].Closed)
		assert.Equal(t, "", fences[1].Lang)
		assert.Equal(t, "y", fences[1].Body)
		assert.False(t, fences[1].Closed)
	}
}
