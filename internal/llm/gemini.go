package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// GeminiClient implements Gateway using the Google Gen AI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	params Params
}

// GeminiOption configures the Gemini client.
type GeminiOption func(*geminiConfig)

type geminiConfig struct {
	model   string
	baseURL string
	params  Params
}

// WithGeminiModel sets the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(c *geminiConfig) { c.model = model }
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(c *geminiConfig) { c.baseURL = url }
}

// WithGeminiParams overrides the generation parameters.
func WithGeminiParams(p Params) GeminiOption {
	return func(c *geminiConfig) { c.params = p.withDefaults() }
}

// NewGeminiClient creates a new Gemini gateway.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	cfg := geminiConfig{
		model:  "gemini-2.5-flash",
		params: DefaultParams(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: cli, model: cfg.model, params: cfg.params}, nil
}

// Complete sends the conversation to Gemini and returns the first
// candidate's text.
func (g *GeminiClient) Complete(ctx context.Context, system, user string, history []model.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.params.Timeout)
	defer cancel()

	var contents []*genai.Content
	for _, m := range conversation(history, user) {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr(float32(g.params.Temperature)),
		TopP:              genai.Ptr(float32(g.params.TopP)),
		MaxOutputTokens:   int32(g.params.MaxTokens),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", statusError("gemini", apiErr.Code, apiErr.Message)
		}
		return "", ctxError(ctx, "gemini", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", emptyError("gemini", "no candidates in response")
	}
	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", emptyError("gemini", "empty candidate")
	}
	return out.String(), nil
}
