package mockup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/events"
	"github.com/yangwenmai/pmgenie/internal/metrics"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/render"
	"github.com/yangwenmai/pmgenie/internal/sanitize"
)

// ---------------------------------------------------------------------------
// Step 1: Enhance (best-effort)
// ---------------------------------------------------------------------------

func (p *Pipeline) runEnhance(ctx context.Context, prompt string, rc *model.RepoContext) string {
	raw, err := p.gateway.Complete(ctx, enhanceSystemPrompt, buildEnhancePrompt(prompt, rc), nil)
	if err != nil {
		slog.Warn("prompt enhancement failed, using original prompt", "repo", rc.Owner+"/"+rc.Name, "error", err)
		return prompt
	}
	enhanced := sanitize.Sanitize(raw, sanitize.Text)
	if enhanced == "" {
		return prompt
	}
	return enhanced
}

// ---------------------------------------------------------------------------
// Step 2: Generate
// ---------------------------------------------------------------------------

func (p *Pipeline) runGenerate(ctx context.Context, system, prompt string) (string, error) {
	return p.gateway.Complete(ctx, system, prompt, nil)
}

// ---------------------------------------------------------------------------
// Step 3: Sanitize
// ---------------------------------------------------------------------------

func (p *Pipeline) runSanitize(raw string) (string, error) {
	html := sanitizeHTML(raw)
	if len(html) < MinHTMLLength {
		return "", fmt.Errorf("%w: %d characters", ErrTooShort, len(html))
	}
	return html, nil
}

func sanitizeHTML(raw string) string {
	return sanitize.Sanitize(raw, sanitize.HTML)
}

// ---------------------------------------------------------------------------
// Step 4: Persist
// ---------------------------------------------------------------------------

// runPersist writes the HTML blob, renders the preview (best-effort) and
// inserts the record. Blobs are removed again if the insert fails.
func (p *Pipeline) runPersist(ctx context.Context, m *model.Mockup, origin string) error {
	if err := p.blobs.Put(ctx, m.HTMLFilename, []byte(m.HTMLContent), "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("store html: %w", err)
	}

	renderErr := p.Render(ctx, m)
	switch {
	case renderErr == nil:
		m.RenderStatus = model.RenderRendered
		m.RenderAttempts = 1
		metrics.Renders.WithLabelValues("ok").Inc()
	case errors.Is(renderErr, render.ErrUnavailable):
		metrics.Renders.WithLabelValues("unavailable").Inc()
	default:
		slog.Warn("render failed, mockup saved without preview", "mockup_id", m.ID, "error", renderErr)
		m.RenderStatus = model.RenderFailed
		m.RenderAttempts = 1
		m.RenderError = errorInfo(renderErr).ToJSON()
		metrics.Renders.WithLabelValues("error").Inc()
	}

	if err := p.store.CreateMockup(ctx, *m); err != nil {
		for _, name := range []string{m.HTMLFilename, m.ScreenshotFilename} {
			if derr := p.blobs.Delete(ctx, name); derr != nil {
				slog.Warn("cleanup blob", "name", name, "error", derr)
			}
		}
		return fmt.Errorf("insert mockup: %w", err)
	}
	m.Feedback = []model.Feedback{}
	metrics.MockupsCreated.WithLabelValues(origin).Inc()

	evt := events.MockupCreated{
		MockupID:      m.ID,
		ProjectName:   m.ProjectName,
		Origin:        origin,
		GitHubRepoURL: m.GitHubRepoURL,
		RenderStatus:  m.RenderStatus,
		CreatedAt:     m.CreatedAt,
	}
	if err := p.events.Publish(ctx, events.SubjectMockupCreated, evt); err != nil {
		slog.Warn("publish event", "subject", events.SubjectMockupCreated, "error", err)
	}
	slog.Info("mockup created", "mockup_id", m.ID, "origin", origin, "render_status", m.RenderStatus)
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failed step.
func (e *StepError) StepName() string {
	return e.Step
}

func errorInfo(err error) model.ErrorInfo {
	step := "unknown"
	var se *StepError
	if errors.As(err, &se) {
		step = se.StepName()
	}
	return model.ErrorInfo{
		FailedStep: step,
		Message:    strings.TrimSpace(err.Error()),
		Retryable:  step == "render" || step == "store_screenshot",
		FailedAt:   model.Now(),
	}
}
