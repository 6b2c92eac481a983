// Package analyzer compares a mockup with a repository and synthesizes a
// bounded list of work items. Model output is untrusted: every field is
// validated, and an unusable response yields a single generic item.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/yangwenmai/pmgenie/internal/llm"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/sanitize"
)

// MaxItems caps the number of work items returned per analysis.
const MaxItems = 20

// FallbackItem is returned when the model output holds no valid item.
func FallbackItem() model.WorkItem {
	return model.WorkItem{
		Title:       "Implement mockup design",
		Description: "Implement the generated mockup design in the repository. Review the mockup HTML and update the codebase accordingly.",
		AcceptanceCriteria: []string{
			"Mockup design is implemented in the repository",
			"Code matches the mockup structure and styling",
			"All components from mockup are present",
		},
		Difficulty: DefaultDifficulty,
		Priority:   model.MinPriority,
	}
}

// Analyzer synthesizes work items through a model gateway.
type Analyzer struct {
	gateway llm.Gateway
}

// New creates an Analyzer.
func New(g llm.Gateway) *Analyzer {
	return &Analyzer{gateway: g}
}

// Analyze never fails: gateway errors and malformed output are logged and
// answered with the fallback item. The result is never empty.
func (a *Analyzer) Analyze(ctx context.Context, doc string, rc *model.RepoContext) []model.WorkItem {
	raw, err := a.gateway.Complete(ctx, systemPrompt, buildBrief(doc, rc), nil)
	if err != nil {
		slog.Warn("gap analysis failed, using fallback ticket", "error", err)
		return []model.WorkItem{FallbackItem()}
	}
	items, err := parseItems(raw)
	if err != nil {
		slog.Warn("gap analysis output unusable, using fallback ticket", "error", err)
		return []model.WorkItem{FallbackItem()}
	}
	if len(items) == 0 {
		slog.Warn("gap analysis produced no valid items, using fallback ticket")
		return []model.WorkItem{FallbackItem()}
	}
	return items
}

// parseItems sanitizes raw as JSON and validates each array element.
func parseItems(raw string) ([]model.WorkItem, error) {
	elems, err := decodeArray(sanitize.Sanitize(raw, sanitize.JSON))
	if err != nil {
		return nil, err
	}
	items := make([]model.WorkItem, 0, min(len(elems), MaxItems))
	for _, e := range elems {
		if len(items) == MaxItems {
			break
		}
		if item, ok := validateItem(e); ok {
			items = append(items, item)
		}
	}
	return items, nil
}
