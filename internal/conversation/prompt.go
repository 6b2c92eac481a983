package conversation

import (
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// Readiness markers the assistant wraps its requirements summary in.
const (
	ReadyOpen  = "<READY_TO_GENERATE>"
	ReadyClose = "</READY_TO_GENERATE>"
)

const readmePreviewChars = 2500

const baseSystemPrompt = `You are a senior product manager helping a user specify a product mockup.
Ask one or two focused questions at a time. Find out:
- the target audience and their main goal
- the key features and screens
- design preferences (style, colors, density)
- the main user flows
- branding (name, logo, tone)

When you have enough information to design the first screen, reply with a short confirmation followed by a requirements summary wrapped in the markers, exactly like this:
<READY_TO_GENERATE>
Concise requirements summary: audience, features, layout, style, branding.
</READY_TO_GENERATE>
Do not emit the markers before you have enough information, and never emit them empty.`

func buildSystemPrompt(c *model.Conversation) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	if c.ProjectName != "" {
		b.WriteString("\n\nProject name: " + c.ProjectName)
	}
	if c.GitHubRepoURL != "" {
		b.WriteString("\n\nThe product lives in the repository " + c.GitHubRepoURL + ". Keep the mockup consistent with it.")
	}
	if c.State == model.StateGenerated {
		b.WriteString("\n\nA mockup has already been generated for this conversation. Answer follow-up questions about it and do not emit the markers again unless the user explicitly asks for a new mockup.")
	}
	if c.RepositoryReadme != "" {
		b.WriteString("\n\nRepository README (excerpt):\n" + c.RepositoryReadme)
	}
	return b.String()
}
