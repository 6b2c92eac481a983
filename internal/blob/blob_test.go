package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/pmgenie/internal/model"
)

func TestFSStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "mockups")
	s, err := NewFSStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "mockup_1.html", []byte("<html></html>"), "text/html"))
	got, err := s.Get(ctx, "mockup_1.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")

	require.NoError(t, s.Delete(ctx, "mockup_1.html"))
	_, err = s.Get(ctx, "mockup_1.html")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "mockup_1.html"), "deleting a missing blob is not an error")
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../x", "a/b", ".."} {
		assert.Error(t, s.Put(context.Background(), name, nil, ""), name)
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "mockups", Prefix: "/pm/"})
	require.NoError(t, err)
	assert.Equal(t, "pm/mockup_1.png", s.key("mockup_1.png"))
}
