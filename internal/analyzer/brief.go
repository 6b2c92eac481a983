package analyzer

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/yangwenmai/pmgenie/internal/model"
)

const (
	// htmlPreviewChars bounds the raw mockup excerpt sent to the model.
	htmlPreviewChars = 5000
	// maxBriefFiles bounds the file manifest.
	maxBriefFiles = 10
	// digestChars bounds the visible-text digest.
	digestChars = 1500
)

const systemPrompt = `You are an expert at analyzing software requirements and creating detailed, actionable development tickets.
Your responses must be valid JSON arrays only, with no markdown formatting or explanations.`

// buildBrief assembles the analysis prompt for one mockup and repository.
func buildBrief(doc string, rc *model.RepoContext) string {
	var b strings.Builder
	b.WriteString("Analyze the following mockup design and compare it with the repository to produce development tickets.\n\n")

	b.WriteString("Repository Context:\n")
	b.WriteString(repoSummary(rc))
	b.WriteString("\n\n")

	if rc != nil && len(rc.Files) > 0 {
		b.WriteString("Repository Files Summary:\n")
		for i, f := range rc.Files {
			if i == maxBriefFiles {
				break
			}
			fmt.Fprintf(&b, "%s: %d chars\n", f.Path, f.Size)
		}
		b.WriteString("\n")
	}

	if o, err := ParseOutline(doc); err == nil {
		if s := o.String(); s != "" {
			b.WriteString("Mockup Outline:\n" + s + "\n\n")
		}
	}
	if digest := visibleText(doc); digest != "" {
		b.WriteString("Mockup Visible Text (excerpt):\n" + digest + "\n\n")
	}

	b.WriteString("Generated Mockup HTML (preview):\n")
	b.WriteString(truncate(doc, htmlPreviewChars))
	b.WriteString("\n\n")

	b.WriteString(`Create a list of tasks needed to implement this mockup in the repository. For each task provide:
1. A clear, concise title
2. A detailed description of what needs to be done
3. Acceptance criteria (list of testable conditions)
4. Difficulty from 1 (trivial) to 10 (very hard)
5. Priority: 1 (high), 2 (medium) or 3 (low)

Return a JSON array in exactly this format:
[
  {
    "title": "Add login form",
    "description": "Create the login form shown in the mockup...",
    "acceptance_criteria": ["Form validates email", "Errors are shown inline"],
    "difficulty": 4,
    "priority": 1
  }
]`)
	return b.String()
}

func repoSummary(rc *model.RepoContext) string {
	if rc == nil {
		return "No repository context available."
	}
	lines := []string{"Repository: " + rc.Name}
	if rc.Description != "" {
		lines = append(lines, "Description: "+rc.Description)
	}
	if rc.Language != "" {
		lines = append(lines, "Language: "+rc.Language)
	}
	if len(rc.Topics) > 0 {
		lines = append(lines, "Topics: "+strings.Join(rc.Topics, ", "))
	}
	return strings.Join(lines, "\n")
}

var (
	blankRun = regexp.MustCompile(`\s+`)
	// mockupURL resolves relative links inside generated documents.
	mockupURL = &url.URL{Scheme: "http", Host: "mockup.local", Path: "/"}
)

// visibleText returns a bounded digest of the document's readable text.
// Readability failures yield an empty digest.
func visibleText(doc string) string {
	article, err := readability.FromReader(strings.NewReader(doc), mockupURL)
	if err != nil {
		slog.Debug("mockup readability failed", "error", err)
		return ""
	}
	text := strings.TrimSpace(blankRun.ReplaceAllString(article.TextContent, " "))
	if text == "" {
		return ""
	}
	if article.Title != "" && !strings.HasPrefix(text, article.Title) {
		text = article.Title + ": " + text
	}
	return truncate(text, digestChars)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
