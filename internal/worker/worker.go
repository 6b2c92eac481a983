// Package worker backfills mockup previews that could not be rendered when
// the mockup was created or whose content changed since.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yangwenmai/pmgenie/internal/metrics"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/render"
)

// DefaultMaxAttempts bounds render attempts per mockup.
const DefaultMaxAttempts = 3

// DefaultRetryDelay is the minimum wait before a mockup is retried.
const DefaultRetryDelay = 30 * time.Second

// Previewer renders a mockup preview and records the outcome.
type Previewer interface {
	Render(ctx context.Context, m *model.Mockup) error
	RecordRender(ctx context.Context, id string, renderErr error)
}

// RenderClaimer provides atomic claim and status update operations.
type RenderClaimer interface {
	ClaimNextRender(ctx context.Context, maxAttempts int, retryBefore time.Time) (*model.Mockup, error)
	ResetStaleRenders(ctx context.Context) (int64, error)
	SetRenderResult(ctx context.Context, id, status string, errorInfo *string) error
}

// Worker polls for PENDING or FAILED mockups and renders their previews.
type Worker struct {
	claimer     RenderClaimer
	previewer   Previewer
	interval    time.Duration
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithRetryDelay sets how long a failed mockup waits before its next
// attempt. Zero retries on the next poll.
func WithRetryDelay(d time.Duration) Option {
	return func(w *Worker) { w.retryDelay = d }
}

// New creates a new Worker.
func New(claimer RenderClaimer, previewer Previewer, interval time.Duration, maxAttempts int, opts ...Option) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	w := &Worker{
		claimer:     claimer,
		previewer:   previewer,
		interval:    interval,
		maxAttempts: maxAttempts,
		retryDelay:  DefaultRetryDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("preview worker started", "interval", w.interval.String(), "max_attempts", w.maxAttempts, "retry_delay", w.retryDelay.String())

	// Claims left behind by a previous run.
	if n, err := w.claimer.ResetStaleRenders(ctx); err != nil {
		slog.Warn("reset stale renders", "error", err)
	} else if n > 0 {
		slog.Info("reset stale renders", "count", n)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("preview worker stopped")
			return
		default:
		}

		if !w.RunOnce(ctx) {
			w.sleep(ctx)
		}
	}
}

// RunOnce claims and renders at most one mockup. It reports whether a
// mockup was claimed.
func (w *Worker) RunOnce(ctx context.Context) bool {
	m, err := w.claimer.ClaimNextRender(ctx, w.maxAttempts, w.now().Add(-w.retryDelay))
	if err != nil {
		slog.Error("preview worker claim error", "error", err)
		return false
	}
	if m == nil {
		return false
	}

	slog.Info("rendering preview", "mockup_id", m.ID, "attempt", m.RenderAttempts+1)
	renderErr := w.previewer.Render(ctx, m)
	switch {
	case errors.Is(renderErr, render.ErrUnavailable):
		// Count the attempt so an unconfigured renderer cannot spin forever.
		metrics.Renders.WithLabelValues("unavailable").Inc()
		if err := w.claimer.SetRenderResult(ctx, m.ID, model.RenderPending, nil); err != nil {
			slog.Error("failed to reset render status", "mockup_id", m.ID, "error", err)
		}
		return false
	case renderErr != nil:
		metrics.Renders.WithLabelValues("error").Inc()
		slog.Warn("preview render failed", "mockup_id", m.ID, "error", renderErr)
	default:
		metrics.Renders.WithLabelValues("ok").Inc()
		slog.Info("preview rendered", "mockup_id", m.ID)
	}
	w.previewer.RecordRender(ctx, m.ID, renderErr)
	return true
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
