// Package github reads repository metadata, READMEs and sampled source
// files from the GitHub REST API and assembles them into a RepoContext.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/yangwenmai/pmgenie/internal/model"
)

const defaultAPIBase = "https://api.github.com"

// ReadmeVariants are tried in order when looking for a README.
var ReadmeVariants = []string{"README.md", "README.txt", "README", "readme.md"}

// SkipDirs are never descended into while sampling files.
var SkipDirs = []string{".git", "node_modules", "__pycache__", ".venv", "venv", "dist", "build"}

// RepoInfo is the repository metadata returned by the API.
type RepoInfo struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Language      string   `json:"language"`
	Topics        []string `json:"topics"`
	DefaultBranch string   `json:"default_branch"`
	HTMLURL       string   `json:"html_url"`
}

// ListOptions bounds a file sampling walk.
type ListOptions struct {
	Patterns []string
	MaxFiles int
	MaxDepth int
	// MaxFileBytes caps the content kept per file. Zero keeps whole files.
	MaxFileBytes int
}

// Client is a minimal GitHub REST client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithAPIBase overrides the API endpoint.
func WithAPIBase(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client. An empty token makes unauthenticated calls.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultAPIBase,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RepoInfo fetches repository metadata.
func (c *Client) RepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	var info RepoInfo
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type contentEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// FileContent fetches and decodes one file.
func (c *Client) FileContent(ctx context.Context, owner, repo, filePath string) (string, error) {
	var entry contentEntry
	if err := c.get(ctx, contentsPath(owner, repo, filePath), &entry); err != nil {
		return "", err
	}
	if entry.Encoding != "base64" {
		return entry.Content, nil
	}
	// The API wraps base64 payloads at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		return "", &Error{Kind: KindTransport, Path: filePath, Err: fmt.Errorf("decode content: %w", err)}
	}
	return string(raw), nil
}

// Readme returns the first README variant that exists. A repository with
// none yields a not_found error.
func (c *Client) Readme(ctx context.Context, owner, repo string) (string, error) {
	var lastErr error
	for _, name := range ReadmeVariants {
		content, err := c.FileContent(ctx, owner, repo, name)
		if err == nil {
			return content, nil
		}
		lastErr = err
		var ghErr *Error
		if errors.As(err, &ghErr) && ghErr.Kind != KindNotFound {
			return "", err
		}
	}
	return "", lastErr
}

// ListFiles walks the tree depth-first in API order, fetching files whose path matches any pattern until MaxFiles is reached.
// Failures below the root directory are logged and skipped.
func (c *Client) ListFiles(ctx context.Context, owner, repo string, opts ListOptions) ([]model.RepoFile, error) {
	var files []model.RepoFile
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > opts.MaxDepth || len(files) >= opts.MaxFiles {
			return nil
		}
		var entries []contentEntry
		if err := c.get(ctx, contentsPath(owner, repo, dir), &entries); err != nil {
			return err
		}
		for _, e := range entries {
			if len(files) >= opts.MaxFiles {
				break
			}
			switch e.Type {
			case "file":
				if !matchAny(opts.Patterns, e.Path) {
					continue
				}
				content, err := c.FileContent(ctx, owner, repo, e.Path)
				if err != nil {
					slog.Warn("github: skip file", "repo", owner+"/"+repo, "path", e.Path, "error", err)
					continue
				}
				files = append(files, model.RepoFile{Path: e.Path, Content: truncateUTF8(content, opts.MaxFileBytes), Size: len(content)})
			case "dir":
				if depth >= opts.MaxDepth || slices.Contains(SkipDirs, path.Base(e.Path)) {
					continue
				}
				if err := walk(e.Path, depth+1); err != nil {
					slog.Warn("github: skip directory", "repo", owner+"/"+repo, "path", e.Path, "error", err)
				}
			}
		}
		return nil
	}
	if err := walk("", 0); err != nil {
		return nil, err
	}
	return files, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func contentsPath(owner, repo, p string) string {
	return fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, strings.TrimPrefix(p, "/"))
}

func (c *Client) get(ctx context.Context, p string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+p, nil)
	if err != nil {
		return &Error{Kind: KindTransport, Path: p, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Path: p, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &Error{Kind: KindTransport, Path: p, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(p, resp, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindTransport, Path: p, Err: fmt.Errorf("unmarshal: %w", err)}
	}
	return nil
}
