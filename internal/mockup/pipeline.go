// Package mockup turns prompts into stored HTML mockups with rendered
// previews, and refines or edits existing ones.
package mockup

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/blob"
	"github.com/yangwenmai/pmgenie/internal/events"
	"github.com/yangwenmai/pmgenie/internal/llm"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/render"
	"github.com/yangwenmai/pmgenie/internal/store"
)

// MinHTMLLength is the shortest sanitized output accepted as a mockup.
const MinHTMLLength = 100

// Default project names.
const (
	DefaultProjectName = "Untitled Project"
	RefinedProjectName = "Refined Mockup"
)

// Origins label how a mockup came to exist.
const (
	OriginGenerate = "generate"
	OriginRefine   = "refine"
	OriginChat     = "chat"
)

// ErrTooShort is returned when the model's output does not contain a
// plausible document.
var ErrTooShort = errors.New("generated HTML is too short")

// Store is the subset of persistence the pipeline needs.
type Store interface {
	store.MockupReader
	store.MockupWriter
}

// RepoContextBuilder resolves a repository URL into a context bundle.
type RepoContextBuilder interface {
	Build(ctx context.Context, repoURL string) (*model.RepoContext, error)
}

// Pipeline orchestrates mockup generation.
type Pipeline struct {
	gateway  llm.Gateway
	store    Store
	blobs    blob.Store
	repos    RepoContextBuilder
	renderer render.Renderer
	events   events.Publisher
	ids      *IDGenerator
	width    int
	height   int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRepoContext enables repository-aware prompt enhancement.
func WithRepoContext(b RepoContextBuilder) Option {
	return func(p *Pipeline) { p.repos = b }
}

// WithRenderer sets the preview renderer and viewport.
func WithRenderer(r render.Renderer, width, height int) Option {
	return func(p *Pipeline) {
		p.renderer = r
		if width > 0 {
			p.width = width
		}
		if height > 0 {
			p.height = height
		}
	}
}

// WithEvents sets the domain event publisher.
func WithEvents(e events.Publisher) Option {
	return func(p *Pipeline) { p.events = e }
}

// WithIDGenerator replaces the id source.
func WithIDGenerator(g *IDGenerator) Option {
	return func(p *Pipeline) { p.ids = g }
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(g llm.Gateway, s Store, blobs blob.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		gateway:  g,
		store:    s,
		blobs:    blobs,
		renderer: render.Nop{},
		events:   events.Nop{},
		ids:      NewIDGenerator(),
		width:    render.DefaultWidth,
		height:   render.DefaultHeight,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateRequest is the input to Generate.
type GenerateRequest struct {
	Prompt        string
	ProjectName   string
	GitHubRepoURL string
	// RepoContext, when set, is used instead of resolving GitHubRepoURL.
	RepoContext *model.RepoContext
	Origin      string
}

// Generate turns a prompt into a persisted mockup. An empty prompt is
// rejected before any gateway call; gateway or sanitize failures persist
// nothing.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (*model.Mockup, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, model.InvalidInput("prompt is required")
	}
	projectName := strings.TrimSpace(req.ProjectName)
	if projectName == "" {
		projectName = DefaultProjectName
	}
	origin := req.Origin
	if origin == "" {
		origin = OriginGenerate
	}

	rc := req.RepoContext
	if rc == nil && req.GitHubRepoURL != "" && p.repos != nil {
		built, err := p.repos.Build(ctx, req.GitHubRepoURL)
		if err != nil {
			slog.Warn("repo context unavailable, generating without it", "repo", req.GitHubRepoURL, "error", err)
		} else {
			rc = built
		}
	}

	genPrompt := prompt
	if rc != nil {
		genPrompt = p.runEnhance(ctx, prompt, rc)
	}

	raw, err := p.runGenerate(ctx, generateSystemPrompt, genPrompt)
	if err != nil {
		return nil, &StepError{Step: "generate", Err: err}
	}

	html, err := p.runSanitize(raw)
	if err != nil {
		return nil, &StepError{Step: "sanitize", Err: err}
	}

	m := model.NewMockup(p.ids.Next(), projectName, prompt, html)
	m.GitHubRepoURL = req.GitHubRepoURL
	if err := p.runPersist(ctx, &m, origin); err != nil {
		return nil, &StepError{Step: "persist", Err: err}
	}
	return &m, nil
}

// RefineRequest is the input to Refine. Either MockupID or OriginalHTML
// must be set; with MockupID the stored HTML and stored feedback are used
// and Feedback is appended to them.
type RefineRequest struct {
	MockupID     string
	OriginalHTML string
	Feedback     []string
	ProjectName  string
}

// Refine produces a new mockup that addresses the feedback. The source
// mockup is never modified.
func (p *Pipeline) Refine(ctx context.Context, req RefineRequest) (*model.Mockup, error) {
	html := strings.TrimSpace(req.OriginalHTML)
	projectName := strings.TrimSpace(req.ProjectName)
	var repoURL string
	var feedback []string

	if req.MockupID != "" {
		src, err := p.store.GetMockup(ctx, req.MockupID)
		if err != nil {
			return nil, err
		}
		html = src.HTMLContent
		repoURL = src.GitHubRepoURL
		if projectName == "" {
			projectName = src.ProjectName
		}
		for _, fb := range src.Feedback {
			feedback = append(feedback, fb.Text)
		}
	}
	for _, fb := range req.Feedback {
		if fb = strings.TrimSpace(fb); fb != "" {
			feedback = append(feedback, fb)
		}
	}

	if html == "" || len(feedback) == 0 {
		return nil, model.InvalidInput("original HTML and feedback are required")
	}
	if projectName == "" {
		projectName = RefinedProjectName
	}

	prompt := buildRefinePrompt(feedback, html)
	raw, err := p.runGenerate(ctx, refineSystemPrompt, prompt)
	if err != nil {
		return nil, &StepError{Step: "generate", Err: err}
	}
	refined, err := p.runSanitize(raw)
	if err != nil {
		return nil, &StepError{Step: "sanitize", Err: err}
	}

	m := model.NewMockup(p.ids.Next(), projectName, prompt, refined)
	m.GitHubRepoURL = repoURL
	if err := p.runPersist(ctx, &m, OriginRefine); err != nil {
		return nil, &StepError{Step: "persist", Err: err}
	}
	return &m, nil
}

// Edit applies a free-text instruction to html and returns the modified
// document without persisting it.
func (p *Pipeline) Edit(ctx context.Context, html, instruction string) (string, error) {
	html = strings.TrimSpace(html)
	instruction = strings.TrimSpace(instruction)
	if html == "" || instruction == "" {
		return "", model.InvalidInput("html_content and instruction are required")
	}

	raw, err := p.runGenerate(ctx, editSystemPrompt, buildEditPrompt(html, instruction))
	if err != nil {
		return "", &StepError{Step: "generate", Err: err}
	}
	edited, err := p.runSanitize(raw)
	if err != nil {
		return "", &StepError{Step: "sanitize", Err: err}
	}
	return edited, nil
}

// Update replaces a mockup's HTML and re-renders its preview. Render
// failure leaves the mockup queued for the preview worker.
func (p *Pipeline) Update(ctx context.Context, id, html string) (*model.Mockup, error) {
	html = sanitizeHTML(html)
	if html == "" {
		return nil, model.InvalidInput("html_content is required")
	}
	prev, err := p.store.GetMockup(ctx, id)
	if err != nil {
		return nil, err
	}
	// Blob first so a failed write leaves the row untouched.
	if err := p.blobs.Put(ctx, prev.HTMLFilename, []byte(html), "text/html; charset=utf-8"); err != nil {
		return nil, &StepError{Step: "store_html", Err: err}
	}
	if err := p.store.UpdateMockupContent(ctx, id, html); err != nil {
		if rerr := p.blobs.Put(ctx, prev.HTMLFilename, []byte(prev.HTMLContent), "text/html; charset=utf-8"); rerr != nil {
			slog.Warn("restore html blob", "mockup_id", id, "error", rerr)
		}
		return nil, err
	}

	m, err := p.store.GetMockup(ctx, id)
	if err != nil {
		return nil, err
	}
	p.RecordRender(ctx, m.ID, p.Render(ctx, m))
	return p.store.GetMockup(ctx, id)
}

// Render produces and stores the preview for m.
func (p *Pipeline) Render(ctx context.Context, m *model.Mockup) error {
	png, err := p.renderer.Render(ctx, m.HTMLContent, p.width, p.height)
	if err != nil {
		return &StepError{Step: "render", Err: err}
	}
	if err := p.blobs.Put(ctx, m.ScreenshotFilename, png, "image/png"); err != nil {
		return &StepError{Step: "store_screenshot", Err: err}
	}
	return nil
}

// RecordRender stores the outcome of a Render call. An unavailable
// renderer leaves the mockup PENDING without counting an attempt.
func (p *Pipeline) RecordRender(ctx context.Context, id string, renderErr error) {
	if errors.Is(renderErr, render.ErrUnavailable) {
		return
	}
	status := model.RenderRendered
	var info *string
	if renderErr != nil {
		status = model.RenderFailed
		s := errorInfo(renderErr).ToJSON()
		info = &s
	}
	if err := p.store.SetRenderResult(ctx, id, status, info); err != nil {
		slog.Error("record render result", "mockup_id", id, "error", err)
	}
}
