package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// ClaudeClient implements Gateway using the Anthropic Messages API.
type ClaudeClient struct {
	client anthropic.Client
	model  string
	params Params
}

// ClaudeOption configures the Claude client.
type ClaudeOption func(*claudeConfig)

type claudeConfig struct {
	model   string
	baseURL string
	params  Params
}

// WithClaudeModel sets the model name.
func WithClaudeModel(model string) ClaudeOption {
	return func(c *claudeConfig) { c.model = model }
}

// WithClaudeBaseURL overrides the API endpoint.
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *claudeConfig) { c.baseURL = url }
}

// WithClaudeParams overrides the generation parameters.
func WithClaudeParams(p Params) ClaudeOption {
	return func(c *claudeConfig) { c.params = p.withDefaults() }
}

// NewClaudeClient creates a new Anthropic gateway. The SDK's own retries
// are disabled; retry policy belongs to the caller.
func NewClaudeClient(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	cfg := claudeConfig{
		model:  "claude-sonnet-4-20250514",
		params: DefaultParams(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.params.Timeout),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &ClaudeClient{
		client: anthropic.NewClient(reqOpts...),
		model:  cfg.model,
		params: cfg.params,
	}
}

// Complete sends the conversation to Claude and returns the text blocks of
// the reply joined together.
func (c *ClaudeClient) Complete(ctx context.Context, system, user string, history []model.Message) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.params.MaxTokens),
		Temperature: anthropic.Float(c.params.Temperature),
		TopP:        anthropic.Float(c.params.TopP),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: claudeMessages(conversation(history, user)),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError("claude", apiErr.StatusCode, apiErr.Error())
		}
		return "", ctxError(ctx, "claude", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", emptyError("claude", "no text content in response")
	}
	return out.String(), nil
}

// claudeMessages converts turns to SDK params, merging consecutive turns of
// the same role since the API expects alternation.
func claudeMessages(msgs []model.Message) []anthropic.MessageParam {
	var merged []model.Message
	for _, m := range msgs {
		if n := len(merged); n > 0 && merged[n-1].Role == m.Role {
			merged[n-1].Content += "\n\n" + m.Content
			continue
		}
		merged = append(merged, m)
	}

	out := make([]anthropic.MessageParam, 0, len(merged))
	for _, m := range merged {
		if m.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}
