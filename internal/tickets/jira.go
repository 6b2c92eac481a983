// Package tickets files work items and mockup submissions in Jira.
package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Defaults used when the corresponding setting is empty.
const (
	DefaultProjectKey = "KAN"
	DefaultIssueType  = "Task"
	DefaultBoardID    = 1

	pageSize     = 100
	maxErrorBody = 64 * 1024
)

// PriorityName maps a work item priority to the tracker's priority name.
func PriorityName(p int) string {
	switch p {
	case 1:
		return "High"
	case 3:
		return "Low"
	default:
		return "Medium"
	}
}

// JiraConfig holds tracker coordinates and credentials.
type JiraConfig struct {
	BaseURL    string
	Email      string
	Token      string
	ProjectKey string
	IssueType  string
	BoardID    int
}

// IssueRequest is one issue to create.
type IssueRequest struct {
	Summary     string
	Description node
	Priority    string
}

// CreatedIssue identifies a newly created issue.
type CreatedIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	URL string `json:"-"`
}

// BoardIssue is a condensed board issue.
type BoardIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

// Project is a tracker project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// JiraClient talks to the Jira Cloud REST and Agile APIs with basic auth.
type JiraClient struct {
	cfg        JiraConfig
	httpClient *http.Client
}

// NewJiraClient creates a client; empty project, issue type and board
// fall back to the defaults.
func NewJiraClient(cfg JiraConfig) *JiraClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ProjectKey == "" {
		cfg.ProjectKey = DefaultProjectKey
	}
	if cfg.IssueType == "" {
		cfg.IssueType = DefaultIssueType
	}
	if cfg.BoardID <= 0 {
		cfg.BoardID = DefaultBoardID
	}
	return &JiraClient{cfg: cfg, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// Configured reports whether credentials are present.
func (c *JiraClient) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Email != "" && c.cfg.Token != ""
}

// BrowseURL returns the web link of an issue.
func (c *JiraClient) BrowseURL(key string) string {
	return c.cfg.BaseURL + "/browse/" + key
}

type issueFields struct {
	Project     map[string]string `json:"project"`
	Summary     string            `json:"summary"`
	Description node              `json:"description"`
	IssueType   map[string]string `json:"issuetype"`
	Priority    map[string]string `json:"priority,omitempty"`
}

// CreateIssue files one issue in the configured project.
func (c *JiraClient) CreateIssue(ctx context.Context, req IssueRequest) (*CreatedIssue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	fields := issueFields{
		Project:     map[string]string{"key": c.cfg.ProjectKey},
		Summary:     req.Summary,
		Description: req.Description,
		IssueType:   map[string]string{"name": c.cfg.IssueType},
	}
	if req.Priority != "" {
		fields.Priority = map[string]string{"name": req.Priority}
	}
	var created CreatedIssue
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", map[string]any{"fields": fields}, &created); err != nil {
		return nil, err
	}
	created.URL = c.BrowseURL(created.Key)
	return &created, nil
}

type page struct {
	StartAt    int  `json:"startAt"`
	MaxResults int  `json:"maxResults"`
	IsLast     bool `json:"isLast"`
}

// BoardIssues lists every issue on the configured board, following pages
// until the API reports the last one.
func (c *JiraClient) BoardIssues(ctx context.Context) ([]BoardIssue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var all []BoardIssue
	for start := 0; ; {
		q := url.Values{
			"startAt":    {strconv.Itoa(start)},
			"maxResults": {strconv.Itoa(pageSize)},
			"fields":     {"id,key,summary,status,issuetype,assignee,priority,created,updated"},
		}
		var resp struct {
			page
			Total  int          `json:"total"`
			Issues []BoardIssue `json:"issues"`
		}
		p := fmt.Sprintf("/rest/agile/1.0/board/%d/issue?%s", c.cfg.BoardID, q.Encode())
		if err := c.do(ctx, http.MethodGet, p, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Issues...)
		if len(resp.Issues) == 0 || resp.IsLast || (resp.Total > 0 && len(all) >= resp.Total) {
			return all, nil
		}
		start = resp.StartAt + len(resp.Issues)
	}
}

// Projects lists visible projects. It doubles as a credential check.
func (c *JiraClient) Projects(ctx context.Context) ([]Project, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var all []Project
	for start := 0; ; {
		var resp struct {
			page
			Values []Project `json:"values"`
		}
		p := fmt.Sprintf("/rest/api/3/project/search?startAt=%d&maxResults=50", start)
		if err := c.do(ctx, http.MethodGet, p, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Values...)
		if len(resp.Values) == 0 || resp.IsLast {
			return all, nil
		}
		start = resp.StartAt + len(resp.Values)
	}
}

func (c *JiraClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jira %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, b)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
