// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects
const (
	SubjectMockupCreated    = "pmgenie.mockup.created"
	SubjectTicketsPublished = "pmgenie.tickets.published"
)

// MockupCreated is emitted after a mockup is persisted.
type MockupCreated struct {
	MockupID      string `json:"mockup_id"`
	ProjectName   string `json:"project_name"`
	Origin        string `json:"origin"`
	GitHubRepoURL string `json:"github_repo_url,omitempty"`
	RenderStatus  string `json:"render_status"`
	CreatedAt     string `json:"created_at"`
}

// TicketsPublished is emitted after a ticket batch is filed.
type TicketsPublished struct {
	MockupID      string   `json:"mockup_id"`
	GitHubRepoURL string   `json:"github_repo_url"`
	Created       int      `json:"tickets_created"`
	Failed        int      `json:"tickets_failed"`
	IssueKeys     []string `json:"issue_keys"`
}

// Publisher sends an event payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// NATSPublisher publishes JSON payloads on a core NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pmgenie"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.nc.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
