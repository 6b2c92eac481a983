package llm

import (
	"context"
	"time"

	"github.com/yangwenmai/pmgenie/internal/metrics"
	"github.com/yangwenmai/pmgenie/internal/model"
)

// Instrument records call counts and latency for g under the provider label.
func Instrument(g Gateway, provider string) Gateway {
	return GatewayFunc(func(ctx context.Context, system, user string, history []model.Message) (string, error) {
		start := time.Now()
		out, err := g.Complete(ctx, system, user, history)
		metrics.LLMDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

		outcome := "ok"
		if err != nil {
			outcome = "error"
			if kind, ok := KindOf(err); ok {
				outcome = string(kind)
			}
		}
		metrics.LLMRequests.WithLabelValues(provider, outcome).Inc()
		return out, err
	})
}
