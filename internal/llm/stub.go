package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// StubGateway returns canned responses (for development/testing). It picks
// a shape from the system prompt: conversation, ticket JSON, HTML, or an
// echo of the user text.
type StubGateway struct{}

func (StubGateway) Complete(_ context.Context, system, user string, history []model.Message) (string, error) {
	switch {
	case strings.Contains(system, "READY_TO_GENERATE"):
		return stubChat(user, history), nil
	case strings.Contains(system, "JSON"):
		return stubTickets(), nil
	case strings.Contains(system, "HTML"):
		return stubHTML(user), nil
	default:
		return user, nil
	}
}

func stubChat(user string, history []model.Message) string {
	turns := 1
	for _, m := range history {
		if m.Role == model.RoleUser {
			turns++
		}
	}
	if turns < 3 {
		return "[Stub] Thanks. Who are the primary users, and what is the one screen they need most?"
	}
	var parts []string
	for _, m := range history {
		if m.Role == model.RoleUser {
			parts = append(parts, m.Content)
		}
	}
	parts = append(parts, user)
	return "[Stub] I have enough to draft a mockup.\n<READY_TO_GENERATE>\n" +
		strings.Join(parts, "\n") + "\n</READY_TO_GENERATE>"
}

func stubTickets() string {
	items := []model.WorkItem{
		{
			Title:              "Build page layout",
			Description:        "[Stub] Create the header, navigation and main content regions shown in the mockup.",
			AcceptanceCriteria: []string{"Layout matches the mockup", "Navigation links are present"},
			Difficulty:         3,
			Priority:           1,
		},
		{
			Title:              "Style components",
			Description:        "[Stub] Apply colours, spacing and typography from the mockup.",
			AcceptanceCriteria: []string{"Styles match the mockup"},
			Difficulty:         2,
			Priority:           2,
		},
	}
	b, _ := json.Marshal(items)
	return "```json\n" + string(b) + "\n```"
}

func stubHTML(user string) string {
	title := user
	if len(title) > 80 {
		title = title[:80]
	}
	return fmt.Sprintf("```html\n<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n"+
		"<style>body{font-family:sans-serif;margin:0}header{background:#1f2937;color:#fff;padding:16px}main{padding:24px}</style>\n"+
		"</head>\n<body>\n<header><h1>Mockup</h1></header>\n<main><p>%s</p></main>\n</body>\n</html>\n```",
		html.EscapeString(title), html.EscapeString(user))
}
