package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRenderer_Render(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screenshot", r.URL.Path)
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "<html></html>", req.HTML)
		assert.Equal(t, DefaultWidth, req.Width)
		assert.Equal(t, DefaultHeight, req.Height)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG"))
	}))
	defer srv.Close()

	img, err := NewHTTPRenderer(srv.URL, 0).Render(context.Background(), "<html></html>", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img)
}

func TestHTTPRenderer_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "browser crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL, 0).Render(context.Background(), "<html></html>", 1400, 900)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusInternalServerError, rerr.StatusCode)
}

func TestNop(t *testing.T) {
	_, err := Nop{}.Render(context.Background(), "x", 1, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}
