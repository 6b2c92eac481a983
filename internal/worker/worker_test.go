package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/pmgenie/internal/blob"
	"github.com/yangwenmai/pmgenie/internal/llm"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/render"
	"github.com/yangwenmai/pmgenie/internal/store"
)

type scriptedRenderer struct {
	errs  []error
	calls int
}

func (r *scriptedRenderer) Render(context.Context, string, int, int) ([]byte, error) {
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return nil, r.errs[i]
	}
	return []byte("\x89PNG"), nil
}

type env struct {
	store *store.Store
	blobs *blob.FSStore
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	db, err := store.OpenSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := store.New(db)
	require.NoError(t, err)
	blobs, err := blob.NewFSStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	return env{store: s, blobs: blobs}
}

func (e env) worker(r render.Renderer, maxAttempts int, opts ...Option) *Worker {
	p := mockup.NewPipeline(llm.StubGateway{}, e.store, e.blobs, mockup.WithRenderer(r, 0, 0))
	if len(opts) == 0 {
		opts = []Option{WithRetryDelay(0)}
	}
	return New(e.store, p, 10*time.Millisecond, maxAttempts, opts...)
}

func (e env) seed(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.store.CreateMockup(context.Background(), model.NewMockup(id, "P", "prompt", "<!DOCTYPE html><html></html>")))
}

func TestRunOnce_RendersPending(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1")
	w := e.worker(&scriptedRenderer{}, 3)
	ctx := context.Background()

	assert.True(t, w.RunOnce(ctx))
	assert.False(t, w.RunOnce(ctx), "nothing left to claim")

	m, err := e.store.GetMockup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.RenderRendered, m.RenderStatus)
	png, err := e.blobs.Get(ctx, m.ScreenshotFilename)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png)
}

func TestRunOnce_RetriesUntilMaxAttempts(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1")
	boom := errors.New("browser crashed")
	r := &scriptedRenderer{errs: []error{boom, boom, boom, boom}}
	w := e.worker(r, 2)
	ctx := context.Background()

	assert.True(t, w.RunOnce(ctx))
	assert.True(t, w.RunOnce(ctx))
	assert.False(t, w.RunOnce(ctx), "attempts exhausted")
	assert.Equal(t, 2, r.calls)

	m, err := e.store.GetMockup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.RenderFailed, m.RenderStatus)
	assert.Contains(t, m.RenderError, `"failed_step":"render"`)
}

func TestRunOnce_FailedThenRendered(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1")
	w := e.worker(&scriptedRenderer{errs: []error{errors.New("timeout")}}, 3)
	ctx := context.Background()

	require.True(t, w.RunOnce(ctx))
	require.True(t, w.RunOnce(ctx))

	m, err := e.store.GetMockup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.RenderRendered, m.RenderStatus)
}

func TestRunOnce_WaitsRetryDelay(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1")
	r := &scriptedRenderer{errs: []error{errors.New("timeout")}}
	w := e.worker(r, 3, WithRetryDelay(time.Minute))
	ctx := context.Background()

	require.True(t, w.RunOnce(ctx))
	assert.False(t, w.RunOnce(ctx), "failed mockup must wait out the retry delay")
	assert.Equal(t, 1, r.calls)

	w.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.True(t, w.RunOnce(ctx))
	assert.Equal(t, 2, r.calls)

	m, err := e.store.GetMockup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.RenderRendered, m.RenderStatus)
}

func TestRunOnce_UnavailableRendererIsBounded(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1")
	w := e.worker(render.Nop{}, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		w.RunOnce(ctx)
	}
	m, err := e.store.GetMockup(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.RenderPending, m.RenderStatus)
	assert.Equal(t, 2, m.RenderAttempts)
}

func TestStart_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1")
	w := e.worker(&scriptedRenderer{}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		m, err := e.store.GetMockup(context.Background(), "m1")
		return err == nil && m.RenderStatus == model.RenderRendered
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
