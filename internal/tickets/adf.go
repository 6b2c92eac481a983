package tickets

import (
	"fmt"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// node is an Atlassian Document Format node.
type node struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []mark         `json:"marks,omitempty"`
	Content []node         `json:"content,omitempty"`
}

type mark struct {
	Type string `json:"type"`
}

func doc(content ...node) node {
	return node{Type: "doc", Version: 1, Content: content}
}

func heading(level int, s string) node {
	return node{Type: "heading", Attrs: map[string]any{"level": level}, Content: []node{text(s)}}
}

func paragraph(content ...node) node {
	return node{Type: "paragraph", Content: content}
}

func text(s string) node {
	return node{Type: "text", Text: s}
}

func strong(s string) node {
	return node{Type: "text", Text: s, Marks: []mark{{Type: "strong"}}}
}

func field(label, value string) node {
	if value == "" {
		value = "N/A"
	}
	return paragraph(strong(label+": "), text(value))
}

func bulletList(items []string) node {
	list := node{Type: "bulletList"}
	for _, it := range items {
		list.Content = append(list.Content, node{Type: "listItem", Content: []node{paragraph(text(it))}})
	}
	return list
}

// workItemDoc renders a work item with its acceptance criteria and the
// repository, mockup and difficulty metadata.
func workItemDoc(item model.WorkItem, repoURL, mockupID string) node {
	content := []node{}
	if d := strings.TrimSpace(item.Description); d != "" {
		content = append(content, paragraph(text(d)))
	}
	if len(item.AcceptanceCriteria) > 0 {
		content = append(content, heading(3, "Acceptance Criteria"), bulletList(item.AcceptanceCriteria))
	}
	content = append(content,
		heading(3, "Details"),
		field("Repository", repoURL),
		field("Mockup ID", mockupID),
		field("Difficulty", fmt.Sprintf("%d/10", item.Difficulty)),
		field("Priority", PriorityName(item.Priority)),
	)
	return doc(content...)
}

// mockupDoc renders the summary ticket for a submitted mockup.
func mockupDoc(m *model.Mockup) node {
	prompt := m.Prompt
	if prompt == "" {
		prompt = "No prompt provided"
	}
	return doc(
		heading(2, "Mockup Submission"),
		field("Project Name", m.ProjectName),
		field("Mockup ID", m.ID),
		field("Created At", m.CreatedAt),
		heading(3, "Original Prompt"),
		paragraph(text(prompt)),
		heading(3, "Mockup Details"),
		bulletList([]string{
			"HTML File: " + m.HTMLFilename,
			"Screenshot: " + m.ScreenshotFilename,
		}),
	)
}
