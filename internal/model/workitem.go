package model

// Difficulty and priority bounds for work items.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
	MinPriority   = 1
	MaxPriority   = 3
)

// WorkItem is a ticket draft synthesized from a mockup and a repository.
type WorkItem struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Difficulty         int      `json:"difficulty"`
	Priority           int      `json:"priority"`
}

// PublishResult is the outcome of filing one work item.
type PublishResult struct {
	Title        string `json:"title"`
	Success      bool   `json:"success"`
	IssueKey     string `json:"issue_key,omitempty"`
	IssueID      string `json:"issue_id,omitempty"`
	IssueURL     string `json:"issue_url,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDetails any    `json:"error_details,omitempty"`
}

// BatchResult aggregates per-item publish results.
type BatchResult struct {
	Results    []PublishResult `json:"results"`
	Successful int             `json:"tickets_created"`
	Failed     int             `json:"tickets_failed"`
}

// Add appends a result and updates the counters.
func (b *BatchResult) Add(r PublishResult) {
	b.Results = append(b.Results, r)
	if r.Success {
		b.Successful++
	} else {
		b.Failed++
	}
}
