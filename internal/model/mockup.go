package model

import "time"

// Render status constants
const (
	RenderPending   = "PENDING"
	RenderRendering = "RENDERING"
	RenderRendered  = "RENDERED"
	RenderFailed    = "FAILED"
)

// Mockup is a generated HTML artifact together with its storage locators.
type Mockup struct {
	ID                 string     `json:"id"`
	ProjectName        string     `json:"project_name"`
	Prompt             string     `json:"prompt"`
	HTMLContent        string     `json:"html_content,omitempty"`
	HTMLFilename       string     `json:"html_filename"`
	ScreenshotFilename string     `json:"screenshot_filename"`
	RenderStatus       string     `json:"render_status"`
	RenderAttempts     int        `json:"-"`
	RenderError        string     `json:"render_error,omitempty"`
	GitHubRepoURL      string     `json:"github_repo_url,omitempty"`
	CreatedAt          string     `json:"created_at"`
	UpdatedAt          string     `json:"updated_at"`
	Feedback           []Feedback `json:"feedback"`
}

// MockupFilter holds query parameters for listing mockups.
type MockupFilter struct {
	Limit       int
	IncludeHTML bool
}

// Feedback is a stakeholder comment attached to a mockup.
type Feedback struct {
	ID        int64  `json:"id"`
	MockupID  string `json:"mockup_id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewMockup creates a Mockup with derived file names and a PENDING render.
func NewMockup(id, projectName, prompt, html string) Mockup {
	now := Now()
	return Mockup{
		ID:                 id,
		ProjectName:        projectName,
		Prompt:             prompt,
		HTMLContent:        html,
		HTMLFilename:       HTMLFilename(id),
		ScreenshotFilename: ScreenshotFilename(id),
		RenderStatus:       RenderPending,
		Feedback:           []Feedback{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// HTMLFilename returns the blob name of a mockup's markup.
func HTMLFilename(id string) string { return "mockup_" + id + ".html" }

// ScreenshotFilename returns the blob name of a mockup's preview image.
func ScreenshotFilename(id string) string { return "mockup_" + id + ".png" }

// TimeFormat is fixed-width so stored timestamps sort lexicographically.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Now returns the current UTC time in TimeFormat.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}
