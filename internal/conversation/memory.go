package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/store"
)

// MemoryStore keeps conversations in a map. Values are cloned on the way
// in and out so callers never share message slices with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*model.Conversation
}

var _ store.ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*model.Conversation)}
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, model.ErrNotFound)
	}
	return c.Clone(), nil
}

func (m *MemoryStore) SaveConversation(_ context.Context, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[c.ID] = c.Clone()
	return nil
}
