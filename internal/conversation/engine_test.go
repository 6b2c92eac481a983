package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/pmgenie/internal/llm"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/store"
)

type scriptedGateway struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	systems []string
	history [][]model.Message
}

func (g *scriptedGateway) Complete(_ context.Context, system, _ string, history []model.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.systems = append(g.systems, system)
	g.history = append(g.history, append([]model.Message(nil), history...))
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "Tell me more.", nil
}

type fakeGenerator struct {
	reqs []mockup.GenerateRequest
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, req mockup.GenerateRequest) (*model.Mockup, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	m := model.NewMockup("m-"+string(rune('0'+len(f.reqs))), req.ProjectName, req.Prompt, "<!DOCTYPE html>")
	return &m, nil
}

type fakeReadmes struct {
	calls int
	body  string
	err   error
}

func (f *fakeReadmes) Readme(context.Context, string) (string, error) {
	f.calls++
	return f.body, f.err
}

func fixedID(id string) Option {
	return WithIDFunc(func() string { return id })
}

func TestChat_FirstMessageDoesNotGenerate(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"Who is the login page for?"}}
	gen := &fakeGenerator{}
	e := NewEngine(gw, NewMemoryStore(), gen, fixedID("c1"))

	res, err := e.Chat(context.Background(), ChatRequest{Message: "Build a login page"})
	require.NoError(t, err)

	assert.Equal(t, "c1", res.ConversationID)
	assert.Equal(t, model.StateGathering, res.State)
	assert.False(t, res.ReadyToGenerate)
	assert.Nil(t, res.Mockup)
	assert.Empty(t, gen.reqs)

	conv, err := e.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Contains(t, gw.systems[0], ReadyOpen)
}

func TestChat_MarkersTriggerGeneration(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		"Great, here is the plan.\n<READY_TO_GENERATE>\nA login page for nurses with SSO.\n</READY_TO_GENERATE>",
	}}
	gen := &fakeGenerator{}
	e := NewEngine(gw, NewMemoryStore(), gen, fixedID("c1"))

	res, err := e.Chat(context.Background(), ChatRequest{Message: "a login page for nurses", ProjectName: "Ward", GitHubRepoURL: "acme/ward"})
	require.NoError(t, err)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "A login page for nurses with SSO.", gen.reqs[0].Prompt)
	assert.Equal(t, "Ward", gen.reqs[0].ProjectName)
	assert.Equal(t, "acme/ward", gen.reqs[0].GitHubRepoURL)
	assert.Equal(t, mockup.OriginChat, gen.reqs[0].Origin)

	assert.Equal(t, model.StateGenerated, res.State)
	assert.True(t, res.ReadyToGenerate)
	require.NotNil(t, res.Mockup)
	assert.NotContains(t, res.DisplayReply, ReadyOpen)
	assert.Contains(t, res.DisplayReply, "A login page for nurses with SSO.")
	assert.Contains(t, res.Reply, ReadyOpen)

	conv, _ := e.Get(context.Background(), "c1")
	assert.Equal(t, res.Mockup.ID, conv.MockupID)
}

func TestChat_HeuristicFallback(t *testing.T) {
	gen := &fakeGenerator{}
	e := NewEngine(&scriptedGateway{}, NewMemoryStore(), gen, fixedID("c1"))
	ctx := context.Background()

	for _, msg := range []string{"a recipe app", "for home cooks"} {
		res, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: msg})
		require.NoError(t, err)
		assert.Equal(t, model.StateGathering, res.State)
	}

	// Third user message is the fifth message overall.
	res, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "ok, generate it"})
	require.NoError(t, err)
	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "a recipe app\nfor home cooks\nok, generate it", gen.reqs[0].Prompt)
	assert.Equal(t, model.StateGenerated, res.State)
}

func TestChat_VerbTooEarly(t *testing.T) {
	gen := &fakeGenerator{}
	e := NewEngine(&scriptedGateway{}, NewMemoryStore(), gen)
	ctx := context.Background()

	res, err := e.Chat(ctx, ChatRequest{Message: "a recipe app"})
	require.NoError(t, err)
	res, err = e.Chat(ctx, ChatRequest{ConversationID: res.ConversationID, Message: "create it"})
	require.NoError(t, err)
	assert.Empty(t, gen.reqs, "three messages is below the threshold")
	assert.Equal(t, model.StateGathering, res.State)
}

func TestChat_GeneratedStaysGenerated(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		"<READY_TO_GENERATE>todo app</READY_TO_GENERATE>",
		"Sure, what would you like to change?",
		"Use a flex row with the logo on the left.",
	}}
	gen := &fakeGenerator{}
	e := NewEngine(gw, NewMemoryStore(), gen, fixedID("c1"))
	ctx := context.Background()

	_, err := e.Chat(ctx, ChatRequest{Message: "todo app"})
	require.NoError(t, err)

	for _, msg := range []string{"thanks", "how would you build the header in React?"} {
		res, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: msg})
		require.NoError(t, err)
		assert.Equal(t, model.StateGenerated, res.State, msg)
		assert.True(t, res.ReadyToGenerate)
		assert.Nil(t, res.Mockup, msg)
	}
	assert.Len(t, gen.reqs, 1, "no automatic regeneration without a new readiness event")

	conv, err := e.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", conv.MockupID)
	assert.Contains(t, gw.systems[2], "already been generated")
}

func TestChat_GeneratedRegeneratesOnNewMarkers(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		"<READY_TO_GENERATE>todo app</READY_TO_GENERATE>",
		"<READY_TO_GENERATE>todo app, dark theme</READY_TO_GENERATE>",
	}}
	gen := &fakeGenerator{}
	e := NewEngine(gw, NewMemoryStore(), gen, fixedID("c1"))
	ctx := context.Background()

	_, err := e.Chat(ctx, ChatRequest{Message: "todo app"})
	require.NoError(t, err)
	res, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "please make a new dark version"})
	require.NoError(t, err)

	require.Len(t, gen.reqs, 2)
	assert.Equal(t, "todo app, dark theme", gen.reqs[1].Prompt)
	require.NotNil(t, res.Mockup)
	assert.Equal(t, "m-2", res.Mockup.ID)
}

func TestChat_GenerationFailureKeepsReady(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"<READY_TO_GENERATE>todo app</READY_TO_GENERATE>"}}
	gen := &fakeGenerator{err: errors.New("generate: rate limited")}
	e := NewEngine(gw, NewMemoryStore(), gen, fixedID("c1"))

	res, err := e.Chat(context.Background(), ChatRequest{Message: "todo app"})
	require.NoError(t, err)
	assert.Equal(t, model.StateReady, res.State)
	assert.True(t, res.ReadyToGenerate)
	assert.Contains(t, res.GenerationError, "rate limited")
	assert.Nil(t, res.Mockup)
}

func TestChat_ReadyRetriesGenerationNextTurn(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		"<READY_TO_GENERATE>todo app</READY_TO_GENERATE>",
		"Trying again.",
	}}
	gen := &fakeGenerator{err: errors.New("generate: rate limited")}
	e := NewEngine(gw, NewMemoryStore(), gen, fixedID("c1"))
	ctx := context.Background()

	_, err := e.Chat(ctx, ChatRequest{Message: "todo app"})
	require.NoError(t, err)

	gen.err = nil
	res, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "ok"})
	require.NoError(t, err)

	require.Len(t, gen.reqs, 2)
	assert.Equal(t, "todo app\nok", gen.reqs[1].Prompt, "no markers on the retry turn, so user turns are joined")
	assert.Equal(t, model.StateGenerated, res.State)
	assert.Empty(t, res.GenerationError)
	require.NotNil(t, res.Mockup)
}

func TestChat_GatewayFailureKeepsUserMessage(t *testing.T) {
	gw := &scriptedGateway{errs: []error{&llm.Error{Provider: "openai", Kind: llm.KindTransport}}}
	e := NewEngine(gw, NewMemoryStore(), &fakeGenerator{}, fixedID("c1"))
	ctx := context.Background()

	_, err := e.Chat(ctx, ChatRequest{Message: "a todo app"})
	kind, ok := llm.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, llm.KindTransport, kind)

	conv, err := e.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)

	// Retrying the same message does not duplicate it.
	_, err = e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "a todo app"})
	require.NoError(t, err)
	conv, _ = e.Get(ctx, "c1")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Empty(t, gw.history[1], "retry sends no prior history")
}

func TestChat_EmptyMessage(t *testing.T) {
	gw := &scriptedGateway{}
	e := NewEngine(gw, NewMemoryStore(), &fakeGenerator{})
	_, err := e.Chat(context.Background(), ChatRequest{Message: "  "})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Zero(t, gw.calls)
}

func TestChat_UnknownIDStartsFresh(t *testing.T) {
	e := NewEngine(&scriptedGateway{}, NewMemoryStore(), &fakeGenerator{})
	res, err := e.Chat(context.Background(), ChatRequest{ConversationID: "client-chosen", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "client-chosen", res.ConversationID)
}

func TestChat_ReadmeSideChannel(t *testing.T) {
	long := make([]rune, 3000)
	for i := range long {
		long[i] = 'r'
	}
	readmes := &fakeReadmes{body: string(long)}
	gw := &scriptedGateway{}
	e := NewEngine(gw, NewMemoryStore(), &fakeGenerator{}, fixedID("c1"), WithReadmeFetcher(readmes, "acme/default"))
	ctx := context.Background()

	_, err := e.Chat(ctx, ChatRequest{Message: "please check my README first"})
	require.NoError(t, err)
	_, err = e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "read me again"})
	require.NoError(t, err)

	assert.Equal(t, 1, readmes.calls, "cached after the first fetch")
	conv, _ := e.Get(ctx, "c1")
	assert.Len(t, []rune(conv.RepositoryReadme), readmePreviewChars)
	assert.Contains(t, gw.systems[0], "Repository README")
}

func TestChat_ReadmeFailureIsIgnored(t *testing.T) {
	readmes := &fakeReadmes{err: errors.New("404")}
	e := NewEngine(&scriptedGateway{}, NewMemoryStore(), &fakeGenerator{}, WithReadmeFetcher(readmes, ""))

	_, err := e.Chat(context.Background(), ChatRequest{Message: "read my readme", GitHubRepoURL: "acme/x"})
	require.NoError(t, err)
	assert.Equal(t, 1, readmes.calls)
}

func TestChat_ConcurrentSameConversation(t *testing.T) {
	e := NewEngine(&scriptedGateway{}, NewMemoryStore(), &fakeGenerator{}, fixedID("c1"))
	ctx := context.Background()
	_, err := e.Chat(ctx, ChatRequest{Message: "start"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "msg " + string(rune('a'+i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, _ := e.Get(ctx, "c1")
	assert.Len(t, conv.Messages, 18)
	for i, m := range conv.Messages {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
}

func TestChat_DurableStore(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := store.New(db)
	require.NoError(t, err)

	gw := &scriptedGateway{replies: []string{"q1", "<READY_TO_GENERATE>summary</READY_TO_GENERATE>"}}
	e := NewEngine(gw, s, &fakeGenerator{}, fixedID("c1"))
	ctx := context.Background()

	_, err = e.Chat(ctx, ChatRequest{Message: "a todo app"})
	require.NoError(t, err)
	res, err := e.Chat(ctx, ChatRequest{ConversationID: "c1", Message: "for students"})
	require.NoError(t, err)
	assert.Equal(t, model.StateGenerated, res.State)

	// A fresh engine over the same store sees the whole conversation.
	conv, err := NewEngine(gw, s, &fakeGenerator{}).Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)
	assert.True(t, conv.ReadyToGenerate)
	assert.Equal(t, res.Mockup.ID, conv.MockupID)
	assert.Len(t, gw.history[1], 2)
}

func (e *Engine) lockCount() int {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	return len(e.locks)
}

func TestChat_ReleasesConversationLocks(t *testing.T) {
	e := NewEngine(&scriptedGateway{}, NewMemoryStore(), &fakeGenerator{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Chat(ctx, ChatRequest{Message: "a todo app"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, e.lockCount())
}
