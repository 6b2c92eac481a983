// Package render turns mockup HTML into preview images through an external
// headless-browser service.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default preview viewport.
const (
	DefaultWidth  = 1400
	DefaultHeight = 900
)

// ErrUnavailable is returned when no rendering service is configured.
var ErrUnavailable = errors.New("render: no renderer configured")

// Renderer produces a PNG screenshot of an HTML document.
type Renderer interface {
	Render(ctx context.Context, html string, width, height int) ([]byte, error)
}

// Nop never renders. Mockups stay without a preview.
type Nop struct{}

func (Nop) Render(context.Context, string, int, int) ([]byte, error) {
	return nil, ErrUnavailable
}

// Error is a failed call to the rendering service.
type Error struct {
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("render: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return "render: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPRenderer posts the document to a screenshot service that answers with
// image bytes.
type HTTPRenderer struct {
	url    string
	client *http.Client
}

// NewHTTPRenderer creates a renderer for the service at url.
func NewHTTPRenderer(url string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPRenderer{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type renderRequest struct {
	HTML     string `json:"html"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FullPage bool   `json:"full_page"`
	Format   string `json:"format"`
}

func (r *HTTPRenderer) Render(ctx context.Context, html string, width, height int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	body, _ := json.Marshal(renderRequest{HTML: html, Width: width, Height: height, FullPage: true, Format: "png"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/screenshot", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &Error{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, &Error{StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if len(data) == 0 {
		return nil, &Error{Err: errors.New("empty image")}
	}
	return data, nil
}
