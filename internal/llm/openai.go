package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

const (
	defaultOpenAIBaseURL = "https://integrate.api.nvidia.com/v1"
	defaultOpenAIModel   = "nvidia/llama-3.3-nemotron-super-49b-v1.5"
)

// OpenAIClient implements Gateway using the Chat Completions API.
// It works with any OpenAI-compatible service (NVIDIA NIM by default) by
// setting a custom base URL.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	params     Params
	httpClient *http.Client
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAIClient)

// WithModel sets the model name.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithParams overrides the generation parameters.
func WithParams(p Params) OpenAIOption {
	return func(c *OpenAIClient) { c.params = p.withDefaults() }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// NewOpenAIClient creates a new OpenAI-compatible gateway.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:     strings.Trim(strings.TrimSpace(apiKey), `"'`),
		baseURL:    defaultOpenAIBaseURL,
		model:      defaultOpenAIModel,
		params:     DefaultParams(),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	MaxTokens        int           `json:"max_tokens"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stream           bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the system prompt, history and user turn and returns the
// assistant's reply.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, history []model.Message) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Provider: "openai", Kind: KindAuth, Err: fmt.Errorf("API key is not set")}
	}

	msgs := []chatMessage{{Role: "system", Content: system}}
	for _, m := range conversation(history, user) {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.params.Temperature,
		TopP:        c.params.TopP,
		MaxTokens:   c.params.MaxTokens,
	})
	if err != nil {
		return "", &Error{Provider: "openai", Kind: KindMalformed, Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.params.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: "openai", Kind: KindMalformed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctxError(ctx, "openai", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ctxError(ctx, "openai", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError("openai", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", transportError("openai", fmt.Errorf("unmarshal response: %w", err))
	}
	if chatResp.Error != nil {
		return "", &Error{Provider: "openai", Kind: KindMalformed, Body: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 {
		return "", emptyError("openai", "no choices in response")
	}
	content := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", emptyError("openai", "empty message content")
	}
	return content, nil
}
