package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// RetryPolicy bounds caller-side retries of transient gateway failures.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultRetryPolicy makes a single attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       1,
		InitialBackoff:    2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// WithRetry wraps g so rate-limit and transport failures are retried
// according to p. Other kinds are returned immediately.
func WithRetry(g Gateway, p RetryPolicy) Gateway {
	if p.MaxAttempts <= 1 {
		return g
	}
	return &retrying{next: g, policy: p, sleep: sleepCtx}
}

type retrying struct {
	next   Gateway
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func (r *retrying) Complete(ctx context.Context, system, user string, history []model.Message) (string, error) {
	backoff := r.policy.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		out, err := r.next.Complete(ctx, system, user, history)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == r.policy.MaxAttempts {
			break
		}

		slog.Warn("llm call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if err := r.sleep(ctx, backoff); err != nil {
			return "", lastErr
		}
		backoff = time.Duration(float64(backoff) * r.policy.BackoffMultiplier)
		if r.policy.MaxBackoff > 0 && backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
