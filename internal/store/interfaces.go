package store

import (
	"context"
	"time"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// MockupReader provides read access to mockups.
type MockupReader interface {
	GetMockup(ctx context.Context, id string) (*model.Mockup, error)
	ListMockups(ctx context.Context, f model.MockupFilter) ([]model.Mockup, error)
}

// MockupWriter provides write access to mockups.
type MockupWriter interface {
	CreateMockup(ctx context.Context, m model.Mockup) error
	UpdateMockupContent(ctx context.Context, id, html string) error
	SetRenderResult(ctx context.Context, id, status string, errorInfo *string) error
}

// RenderClaimer provides atomic claim operations for the preview worker.
type RenderClaimer interface {
	ClaimNextRender(ctx context.Context, maxAttempts int, retryBefore time.Time) (*model.Mockup, error)
	ResetStaleRenders(ctx context.Context) (int64, error)
}

// FeedbackStore appends and lists feedback threads.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, fb model.Feedback) (model.Feedback, error)
	ListFeedback(ctx context.Context, mockupID string) ([]model.Feedback, error)
}

// ConversationStore persists chat conversations.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	SaveConversation(ctx context.Context, c *model.Conversation) error
}

// MockupRepository combines the mockup operations used by the API layer.
type MockupRepository interface {
	MockupReader
	MockupWriter
	FeedbackStore
}
