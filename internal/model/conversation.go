package model

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation states
const (
	StateGathering = "GATHERING"
	StateReady     = "READY"
	StateGenerated = "GENERATED"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a multi-turn requirements-gathering chat.
type Conversation struct {
	ID               string    `json:"id"`
	Messages         []Message `json:"messages"`
	State            string    `json:"state"`
	ReadyToGenerate  bool      `json:"ready_to_generate"`
	ProjectName      string    `json:"project_name,omitempty"`
	GitHubRepoURL    string    `json:"github_repo_url,omitempty"`
	RepositoryReadme string    `json:"repository_readme,omitempty"`
	MockupID         string    `json:"mockup_id,omitempty"`
	CreatedAt        string    `json:"created_at"`
	UpdatedAt        string    `json:"updated_at"`
}

// NewConversation creates an empty conversation in the GATHERING state.
func NewConversation(id string) *Conversation {
	now := Now()
	return &Conversation{
		ID:        id,
		Messages:  []Message{},
		State:     StateGathering,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UserTurns returns the content of every user message in order.
func (c *Conversation) UserTurns() []string {
	var out []string
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Clone returns a deep copy so stores never share the message slice with callers.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	return &cp
}
