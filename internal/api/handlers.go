package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/conversation"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/tickets"
)

// DefaultFeedbackAuthor is used when feedback arrives without an author.
const DefaultFeedbackAuthor = "Anonymous"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"status": "ok"})
}

// ---------------------------------------------------------------------------
// POST /api/chat
// ---------------------------------------------------------------------------

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	GitHubRepoURL  string `json:"github_repo_url"`
	ProjectName    string `json:"project_name"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "chat", err)
		return
	}

	// A client disconnect must not abort a generation in flight.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.Chat.Chat(ctx, conversation.ChatRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		GitHubRepoURL:  req.GitHubRepoURL,
		ProjectName:    req.ProjectName,
	})
	if err != nil {
		writeFailure(w, "chat", err)
		return
	}

	body := map[string]any{
		"conversation_id":   res.ConversationID,
		"message":           res.Reply,
		"display_message":   res.DisplayReply,
		"state":             res.State,
		"ready_to_generate": res.ReadyToGenerate,
	}
	if res.Mockup != nil {
		body["mockup"] = res.Mockup
		body["html_content"] = res.Mockup.HTMLContent
	}
	if res.GenerationError != "" {
		body["generation_error"] = res.GenerationError
	}
	writeOK(w, body)
}

// ---------------------------------------------------------------------------
// GET /api/chat/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.Chat.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "get conversation", err)
		return
	}
	writeOK(w, map[string]any{"conversation": conv})
}

// ---------------------------------------------------------------------------
// POST /api/chat/{id}/tickets
// ---------------------------------------------------------------------------

type ticketsRequest struct {
	GitHubRepoURL string `json:"github_repo_url"`
}

func (s *Server) handleConversationTickets(w http.ResponseWriter, r *http.Request) {
	var req ticketsRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "conversation tickets", err)
		return
	}
	conv, err := s.Chat.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "conversation tickets", err)
		return
	}
	if conv.MockupID == "" {
		writeError(w, http.StatusBadRequest, "conversation has no generated mockup yet")
		return
	}
	repoURL := strings.TrimSpace(req.GitHubRepoURL)
	if repoURL == "" {
		repoURL = conv.GitHubRepoURL
	}
	s.publishTickets(w, r, conv.MockupID, repoURL)
}

// ---------------------------------------------------------------------------
// POST /api/generate-mockup
// ---------------------------------------------------------------------------

type generateRequest struct {
	Prompt        string `json:"prompt"`
	ProjectName   string `json:"project_name"`
	GitHubRepoURL string `json:"github_repo_url"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "generate", err)
		return
	}
	m, err := s.Pipeline.Generate(context.WithoutCancel(r.Context()), mockup.GenerateRequest{
		Prompt:        req.Prompt,
		ProjectName:   req.ProjectName,
		GitHubRepoURL: strings.TrimSpace(req.GitHubRepoURL),
	})
	if err != nil {
		writeFailure(w, "generate", err)
		return
	}
	writeMockup(w, m)
}

func writeMockup(w http.ResponseWriter, m *model.Mockup) {
	writeOK(w, map[string]any{
		"mockup_id":    m.ID,
		"mockup":       m,
		"html_content": m.HTMLContent,
	})
}

// ---------------------------------------------------------------------------
// POST /api/refine-mockup, POST /api/mockups/{id}/refine
// ---------------------------------------------------------------------------

type refineRequest struct {
	OriginalHTML string   `json:"original_html"`
	Feedback     []string `json:"feedback"`
	ProjectName  string   `json:"project_name"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "refine", err)
		return
	}
	m, err := s.Pipeline.Refine(context.WithoutCancel(r.Context()), mockup.RefineRequest{
		OriginalHTML: req.OriginalHTML,
		Feedback:     req.Feedback,
		ProjectName:  req.ProjectName,
	})
	if err != nil {
		writeFailure(w, "refine", err)
		return
	}
	writeMockup(w, m)
}

func (s *Server) handleRefineStored(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "refine", err)
		return
	}
	m, err := s.Pipeline.Refine(context.WithoutCancel(r.Context()), mockup.RefineRequest{
		MockupID:    r.PathValue("id"),
		Feedback:    req.Feedback,
		ProjectName: req.ProjectName,
	})
	if err != nil {
		writeFailure(w, "refine", err)
		return
	}
	writeMockup(w, m)
}

// ---------------------------------------------------------------------------
// POST /api/edit-html
// ---------------------------------------------------------------------------

type editRequest struct {
	HTMLContent string `json:"html_content"`
	Instruction string `json:"instruction"`
}

func (s *Server) handleEditHTML(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "edit html", err)
		return
	}
	html, err := s.Pipeline.Edit(context.WithoutCancel(r.Context()), req.HTMLContent, req.Instruction)
	if err != nil {
		writeFailure(w, "edit html", err)
		return
	}
	writeOK(w, map[string]any{"html_content": html})
}

// ---------------------------------------------------------------------------
// GET /api/mockups
// ---------------------------------------------------------------------------

func (s *Server) handleListMockups(w http.ResponseWriter, r *http.Request) {
	f := model.MockupFilter{IncludeHTML: queryBool(r, "include_html")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	mockups, err := s.Mockups.ListMockups(r.Context(), f)
	if err != nil {
		writeFailure(w, "list mockups", err)
		return
	}
	writeOK(w, map[string]any{"mockups": mockups, "count": len(mockups)})
}

// ---------------------------------------------------------------------------
// GET /api/mockups/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetMockup(w http.ResponseWriter, r *http.Request) {
	m, err := s.Mockups.GetMockup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "get mockup", err)
		return
	}
	if !queryBool(r, "include_html") {
		m.HTMLContent = ""
	}
	writeOK(w, map[string]any{"mockup": m})
}

func (s *Server) handleMockupHTML(w http.ResponseWriter, r *http.Request) {
	m, err := s.Mockups.GetMockup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "get mockup html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m.HTMLContent))
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	m, err := s.Mockups.GetMockup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "get screenshot", err)
		return
	}
	if m.RenderStatus != model.RenderRendered {
		writeError(w, http.StatusNotFound, "screenshot not available")
		return
	}
	png, err := s.Blobs.Get(r.Context(), m.ScreenshotFilename)
	if err != nil {
		writeFailure(w, "get screenshot", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ---------------------------------------------------------------------------
// POST /api/mockups/{id}/update
// ---------------------------------------------------------------------------

type updateRequest struct {
	HTMLContent string `json:"html_content"`
}

func (s *Server) handleUpdateMockup(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "update mockup", err)
		return
	}
	m, err := s.Pipeline.Update(context.WithoutCancel(r.Context()), r.PathValue("id"), req.HTMLContent)
	if err != nil {
		writeFailure(w, "update mockup", err)
		return
	}
	writeOK(w, map[string]any{"mockup": m})
}

// ---------------------------------------------------------------------------
// POST/GET /api/mockups/{id}/feedback
// ---------------------------------------------------------------------------

type feedbackRequest struct {
	Feedback string `json:"feedback"`
	Author   string `json:"author"`
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "add feedback", err)
		return
	}
	text := strings.TrimSpace(req.Feedback)
	if text == "" {
		writeError(w, http.StatusBadRequest, "feedback is required")
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = DefaultFeedbackAuthor
	}
	fb, err := s.Mockups.AddFeedback(r.Context(), model.Feedback{
		MockupID: r.PathValue("id"),
		Author:   author,
		Text:     text,
	})
	if err != nil {
		writeFailure(w, "add feedback", err)
		return
	}
	writeOK(w, map[string]any{"feedback": fb})
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Mockups.GetMockup(r.Context(), id); err != nil {
		writeFailure(w, "list feedback", err)
		return
	}
	fb, err := s.Mockups.ListFeedback(r.Context(), id)
	if err != nil {
		writeFailure(w, "list feedback", err)
		return
	}
	writeOK(w, map[string]any{"feedback": fb, "count": len(fb)})
}

// ---------------------------------------------------------------------------
// Tickets
// ---------------------------------------------------------------------------

// analyzeMockup loads the mockup and repository context and synthesizes
// work items. The analysis itself never fails.
func (s *Server) analyzeMockup(ctx context.Context, mockupID, repoURL string) (*model.Mockup, []model.WorkItem, error) {
	m, err := s.Mockups.GetMockup(ctx, mockupID)
	if err != nil {
		return nil, nil, err
	}
	if repoURL == "" {
		repoURL = m.GitHubRepoURL
	}
	if repoURL == "" {
		return nil, nil, model.InvalidInput("github_repo_url is required")
	}
	if s.Repos == nil {
		return nil, nil, errors.New("repository access is not configured")
	}
	rc, err := s.Repos.Build(ctx, repoURL)
	if err != nil {
		return nil, nil, err
	}
	m.GitHubRepoURL = repoURL
	return m, s.Analyzer.Analyze(ctx, m.HTMLContent, rc), nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req ticketsRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "analyze", err)
		return
	}
	m, items, err := s.analyzeMockup(context.WithoutCancel(r.Context()), r.PathValue("id"), strings.TrimSpace(req.GitHubRepoURL))
	if err != nil {
		writeFailure(w, "analyze", err)
		return
	}
	writeOK(w, map[string]any{
		"mockup_id":       m.ID,
		"github_repo_url": m.GitHubRepoURL,
		"tickets":         items,
		"count":           len(items),
	})
}

func (s *Server) handleCreateTickets(w http.ResponseWriter, r *http.Request) {
	var req ticketsRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, "create tickets", err)
		return
	}
	s.publishTickets(w, r, r.PathValue("id"), strings.TrimSpace(req.GitHubRepoURL))
}

func (s *Server) publishTickets(w http.ResponseWriter, r *http.Request, mockupID, repoURL string) {
	if !s.jiraReady(w) {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	m, items, err := s.analyzeMockup(ctx, mockupID, repoURL)
	if err != nil {
		writeFailure(w, "create tickets", err)
		return
	}
	batch := s.Publisher.PublishAll(ctx, items, m.GitHubRepoURL, m.ID)
	writeOK(w, map[string]any{
		"mockup_id":       m.ID,
		"tickets":         items,
		"results":         batch.Results,
		"tickets_created": batch.Successful,
		"tickets_failed":  batch.Failed,
	})
}

func (s *Server) handleSubmitMockup(w http.ResponseWriter, r *http.Request) {
	if !s.jiraReady(w) {
		return
	}
	m, err := s.Mockups.GetMockup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "submit mockup", err)
		return
	}
	res := s.Publisher.SubmitMockup(context.WithoutCancel(r.Context()), m)
	if !res.Success {
		body := map[string]any{"success": false, "error": res.Error}
		if res.ErrorDetails != nil {
			body["error_details"] = res.ErrorDetails
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeOK(w, map[string]any{"issue_key": res.IssueKey, "issue_id": res.IssueID, "issue_url": res.IssueURL})
}

func (s *Server) jiraReady(w http.ResponseWriter) bool {
	if s.Jira == nil || !s.Jira.Configured() {
		writeError(w, http.StatusServiceUnavailable, tickets.ErrNotConfigured.Error())
		return false
	}
	return true
}

func (s *Server) handleJiraTickets(w http.ResponseWriter, r *http.Request) {
	if !s.jiraReady(w) {
		return
	}
	issues, err := s.Jira.BoardIssues(r.Context())
	if err != nil {
		writeFailure(w, "list jira tickets", err)
		return
	}
	if issues == nil {
		issues = []tickets.BoardIssue{}
	}
	writeOK(w, map[string]any{"tickets": issues, "count": len(issues)})
}

func (s *Server) handleJiraTest(w http.ResponseWriter, r *http.Request) {
	if !s.jiraReady(w) {
		return
	}
	projects, err := s.Jira.Projects(r.Context())
	if err != nil {
		writeFailure(w, "jira connection test", err)
		return
	}
	writeOK(w, map[string]any{"message": "connected to Jira", "project_count": len(projects)})
}

// ---------------------------------------------------------------------------
// GET /api/repos/analyze
// ---------------------------------------------------------------------------

type repoFileSummary struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

func (s *Server) handleRepoAnalyze(w http.ResponseWriter, r *http.Request) {
	repoURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if repoURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if s.Repos == nil {
		writeError(w, http.StatusServiceUnavailable, "repository access is not configured")
		return
	}
	rc, err := s.Repos.Build(r.Context(), repoURL)
	if err != nil {
		writeFailure(w, "analyze repository", err)
		return
	}
	files := make([]repoFileSummary, len(rc.Files))
	for i, f := range rc.Files {
		files[i] = repoFileSummary{Path: f.Path, Size: f.Size}
	}
	writeOK(w, map[string]any{
		"repository": rc,
		"has_readme": rc.HasReadme(),
		"files":      files,
	})
}
