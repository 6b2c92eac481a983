package mockup

import (
	"fmt"
	"path"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

const generateSystemPrompt = `You are an expert UI/UX designer and frontend developer. Generate complete, production-ready HTML mockups based on user requirements.

Your mockups should:
1. Be fully self-contained with inline CSS (no external dependencies)
2. Use modern, professional design principles
3. Include responsive design
4. Use a cohesive color scheme
5. Include placeholder content that makes sense for the use case
6. Be visually appealing and suitable for stakeholder presentations
7. Include semantic HTML5 elements
8. Use modern CSS features (flexbox, grid, gradients, shadows, etc.)
9. Align with the technology stack and patterns specified in the request

Return ONLY the complete HTML code, no explanations or markdown formatting.`

const refineSystemPrompt = `You are an expert UI/UX designer refining mockups based on stakeholder feedback.
Generate complete, improved HTML that addresses all feedback points while maintaining design quality.
Return ONLY the complete HTML code, no explanations.`

const editSystemPrompt = `You are an expert frontend developer editing an existing HTML mockup.
Apply the requested change and keep everything else as it is.
Return ONLY the complete modified HTML document, no explanations.`

// The enhancement reply is plain text, so this prompt must not ask for
// markup of any kind.
const enhanceSystemPrompt = `You are an expert at analyzing codebases and creating detailed product specifications.
Your task is to enhance user requests with relevant repository context to create better mockups.
Return only the enhanced specification text.`

const (
	readmePreviewChars = 2000
	filePreviewChars   = 1000
	maxContextFiles    = 5
)

// keyFiles are listed before other sampled files in the enhancement prompt.
var keyFiles = []string{"package.json", "requirements.txt", "go.mod", "README.md"}

func buildEnhancePrompt(request string, rc *model.RepoContext) string {
	var parts []string
	if rc.Description != "" {
		parts = append(parts, "Repository Description: "+rc.Description)
	}
	if rc.Language != "" {
		parts = append(parts, "Primary Language: "+rc.Language)
	}
	if len(rc.Topics) > 0 {
		parts = append(parts, "Topics: "+strings.Join(rc.Topics, ", "))
	}
	if rc.Readme != "" {
		parts = append(parts, "\nREADME:\n"+truncateRunes(rc.Readme, readmePreviewChars))
	}
	if files := contextFiles(rc.Files); len(files) > 0 {
		parts = append(parts, "\nRelevant Files:")
		for _, f := range files {
			parts = append(parts, fmt.Sprintf("\n%s:\n%s", f.Path, truncateRunes(f.Content, filePreviewChars)))
		}
	}

	return fmt.Sprintf(`Analyze the following repository information and user request, then create an enhanced, detailed mockup specification that incorporates the repository's context, technology stack, and existing patterns.

Repository Context:
%s

Original User Request:
%s

Based on the repository information above, enhance the mockup request to:
1. Align with the repository's technology stack and patterns
2. Match the project's style and conventions
3. Incorporate relevant design patterns from the codebase
4. Ensure consistency with existing components and structure
5. Add specific technical details relevant to the project

Be specific about the technology stack, design patterns and components, color schemes and styling, and component structure.

Return ONLY the enhanced mockup specification, no explanations.`, strings.Join(parts, "\n"), request)
}

// contextFiles picks up to maxContextFiles, manifests and JSON files first.
func contextFiles(files []model.RepoFile) []model.RepoFile {
	var key, rest []model.RepoFile
	for _, f := range files {
		if isKeyFile(f.Path) {
			key = append(key, f)
		} else {
			rest = append(rest, f)
		}
	}
	out := append(key, rest...)
	if len(out) > maxContextFiles {
		out = out[:maxContextFiles]
	}
	return out
}

func isKeyFile(p string) bool {
	base := path.Base(p)
	for _, k := range keyFiles {
		if base == k {
			return true
		}
	}
	return strings.HasSuffix(base, ".json")
}

func buildRefinePrompt(feedback []string, html string) string {
	var b strings.Builder
	b.WriteString("Based on the following feedback, refine this HTML mockup:\n\nFeedback:\n")
	for _, fb := range feedback {
		b.WriteString("- " + fb + "\n")
	}
	b.WriteString("\nOriginal HTML:\n")
	b.WriteString(html)
	b.WriteString("\n\nPlease provide an improved version that addresses all the feedback points.")
	return b.String()
}

func buildEditPrompt(html, instruction string) string {
	return fmt.Sprintf("Modify the following HTML mockup.\n\nInstruction:\n%s\n\nCurrent HTML:\n%s\n\nReturn the complete modified document.", instruction, html)
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
