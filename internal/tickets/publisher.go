package tickets

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yangwenmai/pmgenie/internal/events"
	"github.com/yangwenmai/pmgenie/internal/metrics"
	"github.com/yangwenmai/pmgenie/internal/model"
)

// Tracker creates issues in an external tracker.
type Tracker interface {
	CreateIssue(ctx context.Context, req IssueRequest) (*CreatedIssue, error)
}

// Publisher files work items one by one and aggregates the outcomes.
type Publisher struct {
	tracker Tracker
	events  events.Publisher
}

// NewPublisher creates a Publisher. A nil events publisher disables events.
func NewPublisher(t Tracker, ev events.Publisher) *Publisher {
	if ev == nil {
		ev = events.Nop{}
	}
	return &Publisher{tracker: t, events: ev}
}

// Publish files a single work item. Failures are reported in the result,
// never returned.
func (p *Publisher) Publish(ctx context.Context, item model.WorkItem, repoURL, mockupID string) model.PublishResult {
	return p.create(ctx, item.Title, IssueRequest{
		Summary:     item.Title,
		Description: workItemDoc(item, repoURL, mockupID),
		Priority:    PriorityName(item.Priority),
	})
}

// PublishAll files every item sequentially. One item's failure does not
// stop the rest; the batch carries per-item results and counts.
func (p *Publisher) PublishAll(ctx context.Context, items []model.WorkItem, repoURL, mockupID string) model.BatchResult {
	batch := model.BatchResult{Results: make([]model.PublishResult, 0, len(items))}
	for _, item := range items {
		batch.Add(p.Publish(ctx, item, repoURL, mockupID))
	}
	slog.Info("tickets published", "mockup_id", mockupID, "created", batch.Successful, "failed", batch.Failed)

	ev := events.TicketsPublished{
		MockupID:      mockupID,
		GitHubRepoURL: repoURL,
		Created:       batch.Successful,
		Failed:        batch.Failed,
	}
	for _, r := range batch.Results {
		if r.Success {
			ev.IssueKeys = append(ev.IssueKeys, r.IssueKey)
		}
	}
	if err := p.events.Publish(ctx, events.SubjectTicketsPublished, ev); err != nil {
		slog.Warn("publish tickets event failed", "mockup_id", mockupID, "error", err)
	}
	return batch
}

// SubmitMockup files one summary issue describing the mockup itself.
func (p *Publisher) SubmitMockup(ctx context.Context, m *model.Mockup) model.PublishResult {
	name := m.ProjectName
	if name == "" {
		name = "Untitled Project"
	}
	return p.create(ctx, "Mockup: "+name, IssueRequest{
		Summary:     "Mockup: " + name,
		Description: mockupDoc(m),
	})
}

func (p *Publisher) create(ctx context.Context, title string, req IssueRequest) model.PublishResult {
	res := model.PublishResult{Title: title}
	issue, err := p.tracker.CreateIssue(ctx, req)
	if err != nil {
		metrics.TicketsPublished.WithLabelValues("error").Inc()
		slog.Warn("create issue failed", "title", title, "error", err)
		res.Error = err.Error()
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			res.Error = apiErr.Message
			if len(apiErr.Details) > 0 {
				res.ErrorDetails = apiErr.Details
			}
		}
		return res
	}
	metrics.TicketsPublished.WithLabelValues("success").Inc()
	res.Success = true
	res.IssueKey = issue.Key
	res.IssueID = issue.ID
	res.IssueURL = issue.URL
	return res
}
