// Package conversation runs the requirements-gathering chat and hands the
// gathered requirements to the mockup pipeline once the conversation is
// ready.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yangwenmai/pmgenie/internal/llm"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/sanitize"
	"github.com/yangwenmai/pmgenie/internal/store"
)

// MinMessagesForHeuristic is the message count (including the current user
// message) from which an action verb alone triggers generation.
const MinMessagesForHeuristic = 4

var (
	actionVerb    = regexp.MustCompile(`(?i)\b(generate|build|create)\b`)
	readmeRequest = regexp.MustCompile(`(?i)\bread[\s-]?me\b`)
)

// Generator creates a mockup from gathered requirements.
type Generator interface {
	Generate(ctx context.Context, req mockup.GenerateRequest) (*model.Mockup, error)
}

// ReadmeFetcher loads a repository README.
type ReadmeFetcher interface {
	Readme(ctx context.Context, repoURL string) (string, error)
}

// Engine drives conversations. Turns on the same conversation id are
// serialized; different ids proceed in parallel.
type Engine struct {
	gateway        llm.Gateway
	store          store.ConversationStore
	generator      Generator
	readmes        ReadmeFetcher
	defaultRepoURL string
	newID          func() string

	lockMu sync.Mutex
	locks  map[string]*convLock
}

// convLock serializes turns on one conversation. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures an Engine.
type Option func(*Engine)

// WithReadmeFetcher enables the README side channel. defaultRepoURL is used
// when a conversation has no repository of its own.
func WithReadmeFetcher(f ReadmeFetcher, defaultRepoURL string) Option {
	return func(e *Engine) {
		e.readmes = f
		e.defaultRepoURL = defaultRepoURL
	}
}

// WithIDFunc replaces the conversation id source.
func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine creates an engine.
func NewEngine(g llm.Gateway, s store.ConversationStore, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		gateway:   g,
		store:     s,
		generator: gen,
		newID:     uuid.NewString,
		locks:     make(map[string]*convLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	ConversationID string
	Message        string
	GitHubRepoURL  string
	ProjectName    string
}

// ChatResult is the outcome of a turn.
type ChatResult struct {
	ConversationID  string
	Reply           string
	DisplayReply    string
	State           string
	ReadyToGenerate bool
	Mockup          *model.Mockup
	// GenerationError is set when readiness fired but the pipeline failed.
	// The turn itself still succeeded.
	GenerationError string
}

// Get returns a stored conversation.
func (e *Engine) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return e.store.GetConversation(ctx, id)
}

// Chat appends the user message, asks the gateway for a reply and runs
// the readiness test. A gateway failure returns the error with only the
// user message recorded; resending the same message does not duplicate it.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, model.InvalidInput("message is required")
	}
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = e.newID()
	}

	unlock := e.lockConversation(id)
	defer unlock()

	conv, err := e.store.GetConversation(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		conv = model.NewConversation(id)
	} else if err != nil {
		return nil, err
	}
	if req.GitHubRepoURL != "" {
		conv.GitHubRepoURL = strings.TrimSpace(req.GitHubRepoURL)
	}
	if req.ProjectName != "" {
		conv.ProjectName = strings.TrimSpace(req.ProjectName)
	}

	if last, ok := conv.LastMessage(); !ok || last.Role != model.RoleUser || last.Content != msg {
		conv.Messages = append(conv.Messages, model.Message{Role: model.RoleUser, Content: msg})
	}
	e.maybeFetchReadme(ctx, conv, msg)

	history := conv.Messages[:len(conv.Messages)-1]
	reply, err := e.gateway.Complete(ctx, buildSystemPrompt(conv), msg, history)
	if err != nil {
		conv.UpdatedAt = model.Now()
		if serr := e.store.SaveConversation(ctx, conv); serr != nil {
			slog.Error("save conversation after gateway failure", "conversation_id", id, "error", serr)
		}
		return nil, err
	}

	messageCount := len(conv.Messages)
	conv.Messages = append(conv.Messages, model.Message{Role: model.RoleAssistant, Content: reply})

	res := &ChatResult{
		ConversationID: id,
		Reply:          reply,
		DisplayReply:   strings.TrimSpace(sanitize.StripMarkers(reply, ReadyOpen, ReadyClose)),
	}

	summary, marked := sanitize.Between(reply, ReadyOpen, ReadyClose)
	if e.readyToGenerate(conv, msg, marked, messageCount) {
		conv.ReadyToGenerate = true
		conv.State = model.StateReady
		if !marked || summary == "" {
			summary = strings.Join(conv.UserTurns(), "\n")
		}
		e.generate(ctx, conv, summary, marked, res)
	}

	conv.UpdatedAt = model.Now()
	if err := e.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}

	res.State = conv.State
	res.ReadyToGenerate = conv.ReadyToGenerate
	return res, nil
}

// readyToGenerate decides whether this turn hands off to the pipeline.
// After a mockup exists only a fresh marker pair regenerates; a READY
// conversation whose last generation failed retries on every turn.
func (e *Engine) readyToGenerate(conv *model.Conversation, msg string, marked bool, messageCount int) bool {
	switch conv.State {
	case model.StateGenerated:
		return marked
	case model.StateReady:
		return true
	}
	return marked || (actionVerb.MatchString(msg) && messageCount >= MinMessagesForHeuristic)
}

func (e *Engine) generate(ctx context.Context, conv *model.Conversation, summary string, marked bool, res *ChatResult) {
	slog.Info("conversation ready, generating mockup", "conversation_id", conv.ID, "marker", marked)
	m, err := e.generator.Generate(ctx, mockup.GenerateRequest{
		Prompt:        summary,
		ProjectName:   conv.ProjectName,
		GitHubRepoURL: conv.GitHubRepoURL,
		Origin:        mockup.OriginChat,
	})
	if err != nil {
		slog.Error("chat generation failed", "conversation_id", conv.ID, "error", err)
		res.GenerationError = err.Error()
		return
	}
	conv.State = model.StateGenerated
	conv.MockupID = m.ID
	res.Mockup = m
}

// maybeFetchReadme caches a README preview on the conversation when the
// user asks for it. Failures are logged and ignored.
func (e *Engine) maybeFetchReadme(ctx context.Context, conv *model.Conversation, msg string) {
	if e.readmes == nil || conv.RepositoryReadme != "" || !readmeRequest.MatchString(msg) {
		return
	}
	repoURL := conv.GitHubRepoURL
	if repoURL == "" {
		repoURL = e.defaultRepoURL
	}
	if repoURL == "" {
		return
	}
	readme, err := e.readmes.Readme(ctx, repoURL)
	if err != nil {
		slog.Warn("readme fetch failed", "conversation_id", conv.ID, "repo", repoURL, "error", err)
		return
	}
	runes := []rune(readme)
	if len(runes) > readmePreviewChars {
		readme = string(runes[:readmePreviewChars])
	}
	conv.RepositoryReadme = readme
}

// lockConversation locks id and returns the matching unlock func. The map
// entry is removed when the last holder unlocks.
func (e *Engine) lockConversation(id string) func() {
	e.lockMu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &convLock{}
		e.locks[id] = l
	}
	l.refs++
	e.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.lockMu.Unlock()
	}
}
