// Package llm is the model gateway: one Complete call per request, fixed
// generation parameters, typed failures and no retries of its own.
package llm

import (
	"context"
	"time"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// Gateway abstracts LLM calls. Implementations wrap OpenAI-compatible
// services, Anthropic, Gemini or a local Ollama server.
type Gateway interface {
	Complete(ctx context.Context, system, user string, history []model.Message) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, system, user string, history []model.Message) (string, error)

func (f GatewayFunc) Complete(ctx context.Context, system, user string, history []model.Message) (string, error) {
	return f(ctx, system, user, history)
}

// Params are the generation settings shared by every call of a gateway.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultParams returns the settings used across the mockup pipeline.
func DefaultParams() Params {
	return Params{
		Temperature: 0.6,
		TopP:        0.95,
		MaxTokens:   16000,
		Timeout:     120 * time.Second,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MaxTokens <= 0 {
		p.MaxTokens = d.MaxTokens
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	return p
}

// conversation flattens history plus the new user turn into one ordered list.
func conversation(history []model.Message, user string) []model.Message {
	msgs := make([]model.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, model.Message{Role: model.RoleUser, Content: user})
}
