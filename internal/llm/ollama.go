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

// OllamaClient implements Gateway using the local Ollama chat API.
type OllamaClient struct {
	baseURL    string
	model      string
	params     Params
	httpClient *http.Client
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaClient)

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) { c.model = model }
}

// WithOllamaParams overrides the generation parameters.
func WithOllamaParams(p Params) OllamaOption {
	return func(c *OllamaClient) { c.params = p.withDefaults() }
}

// NewOllamaClient creates a new Ollama gateway.
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	c := &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      "llama3",
		params:     DefaultParams(),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Complete sends the conversation to Ollama and returns the reply.
func (c *OllamaClient) Complete(ctx context.Context, system, user string, history []model.Message) (string, error) {
	msgs := []chatMessage{{Role: "system", Content: system}}
	for _, m := range conversation(history, user) {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(ollamaRequest{
		Model:    c.model,
		Messages: msgs,
		Options: ollamaOptions{
			Temperature: c.params.Temperature,
			TopP:        c.params.TopP,
			NumPredict:  c.params.MaxTokens,
		},
	})
	if err != nil {
		return "", &Error{Provider: "ollama", Kind: KindMalformed, Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.params.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: "ollama", Kind: KindMalformed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctxError(ctx, "ollama", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ctxError(ctx, "ollama", fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError("ollama", resp.StatusCode, string(respBody))
	}

	var olResp ollamaResponse
	if err := json.Unmarshal(respBody, &olResp); err != nil {
		return "", transportError("ollama", fmt.Errorf("unmarshal response: %w", err))
	}
	if olResp.Error != "" {
		return "", &Error{Provider: "ollama", Kind: KindMalformed, Body: olResp.Error}
	}
	if strings.TrimSpace(olResp.Message.Content) == "" {
		return "", emptyError("ollama", "empty response")
	}
	return olResp.Message.Content, nil
}
