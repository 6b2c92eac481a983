// Package api exposes the chat, mockup, feedback and ticket operations over
// HTTP. Every JSON response carries a success flag plus either a payload or
// a single error string.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yangwenmai/pmgenie/internal/analyzer"
	"github.com/yangwenmai/pmgenie/internal/blob"
	"github.com/yangwenmai/pmgenie/internal/conversation"
	"github.com/yangwenmai/pmgenie/internal/metrics"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/store"
	"github.com/yangwenmai/pmgenie/internal/tickets"
)

// maxRequestBody is the maximum allowed request body size (4 MB). Mockup
// HTML travels in request bodies.
const maxRequestBody int64 = 4 << 20

// RepoContexts resolves repository URLs into context bundles.
type RepoContexts interface {
	Build(ctx context.Context, repoURL string) (*model.RepoContext, error)
}

// JiraReader lists tracker state.
type JiraReader interface {
	Configured() bool
	BoardIssues(ctx context.Context) ([]tickets.BoardIssue, error)
	Projects(ctx context.Context) ([]tickets.Project, error)
}

// Deps are the services behind the handlers.
type Deps struct {
	Mockups    store.MockupRepository
	Blobs      blob.Store
	Pipeline   *mockup.Pipeline
	Chat       *conversation.Engine
	Analyzer   *analyzer.Analyzer
	Publisher  *tickets.Publisher
	Repos      RepoContexts
	Jira       JiraReader
	CORSOrigin string
	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	Deps
	mux *http.ServeMux
}

// New creates a new API server.
func New(d Deps) *Server {
	if d.CORSOrigin == "" {
		d.CORSOrigin = "*"
	}
	srv := &Server{Deps: d, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return countRequests(corsMiddleware(s.CORSOrigin, limitBody(jsonContent(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/chat/{id}", s.handleGetConversation)
	s.mux.HandleFunc("POST /api/chat/{id}/tickets", s.handleConversationTickets)

	s.mux.HandleFunc("POST /api/generate-mockup", s.handleGenerate)
	s.mux.HandleFunc("POST /api/refine-mockup", s.handleRefine)
	s.mux.HandleFunc("POST /api/edit-html", s.handleEditHTML)
	s.mux.HandleFunc("GET /api/mockups", s.handleListMockups)
	s.mux.HandleFunc("GET /api/mockups/{id}", s.handleGetMockup)
	s.mux.HandleFunc("GET /api/mockups/{id}/html", s.handleMockupHTML)
	s.mux.HandleFunc("GET /api/mockups/{id}/screenshot", s.handleScreenshot)
	s.mux.HandleFunc("POST /api/mockups/{id}/update", s.handleUpdateMockup)
	s.mux.HandleFunc("POST /api/mockups/{id}/refine", s.handleRefineStored)

	s.mux.HandleFunc("POST /api/mockups/{id}/feedback", s.handleAddFeedback)
	s.mux.HandleFunc("GET /api/mockups/{id}/feedback", s.handleListFeedback)

	s.mux.HandleFunc("POST /api/mockups/{id}/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/mockups/{id}/tickets", s.handleCreateTickets)
	s.mux.HandleFunc("POST /api/mockups/{id}/submit", s.handleSubmitMockup)
	s.mux.HandleFunc("GET /api/jira/tickets", s.handleJiraTickets)
	s.mux.HandleFunc("GET /api/jira/test", s.handleJiraTest)

	s.mux.HandleFunc("GET /api/repos/analyze", s.handleRepoAnalyze)

	if s.Metrics {
		s.mux.Handle("GET /metrics", metrics.Handler())
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeOK merges fields into a success envelope.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeFailure maps err onto the error taxonomy: invalid input is a client
// error, unknown ids are not found, everything else is a server error.
func writeFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return model.InvalidInput("invalid JSON body")
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
