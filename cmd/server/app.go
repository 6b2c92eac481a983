package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/yangwenmai/pmgenie/internal/analyzer"
	"github.com/yangwenmai/pmgenie/internal/blob"
	"github.com/yangwenmai/pmgenie/internal/config"
	"github.com/yangwenmai/pmgenie/internal/conversation"
	"github.com/yangwenmai/pmgenie/internal/events"
	"github.com/yangwenmai/pmgenie/internal/github"
	"github.com/yangwenmai/pmgenie/internal/llm"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/render"
	"github.com/yangwenmai/pmgenie/internal/store"
	"github.com/yangwenmai/pmgenie/internal/tickets"
)

// app holds the wired services shared by every command.
type app struct {
	cfg       config.Config
	db        *sql.DB
	store     *store.Store
	blobs     blob.Store
	gateway   llm.Gateway
	repos     *github.Builder
	pipeline  *mockup.Pipeline
	chat      *conversation.Engine
	analyzer  *analyzer.Analyzer
	jira      *tickets.JiraClient
	publisher *tickets.Publisher
	events    events.Publisher
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	a.db, err = store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.store, err = store.New(a.db)
	if err != nil {
		a.db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.blobs, err = newBlobStore(cfg)
	if err != nil {
		a.db.Close()
		return nil, err
	}

	a.gateway, err = newGateway(ctx, cfg)
	if err != nil {
		a.db.Close()
		return nil, err
	}

	a.events = newEvents(cfg)

	a.repos = github.NewBuilder(
		github.NewClient(cfg.GitHubToken, github.WithAPIBase(cfg.GitHubAPIBase)),
		cfg.RepoCacheTTL,
	)

	var renderer render.Renderer = render.Nop{}
	if cfg.RendererURL != "" {
		renderer = render.NewHTTPRenderer(cfg.RendererURL, cfg.RendererTimeout)
	} else {
		slog.Info("RENDERER_URL not set, mockups are stored without previews")
	}

	a.pipeline = mockup.NewPipeline(a.gateway, a.store, a.blobs,
		mockup.WithRepoContext(a.repos),
		mockup.WithRenderer(renderer, cfg.ViewportWidth, cfg.ViewportHeight),
		mockup.WithEvents(a.events),
	)
	a.chat = conversation.NewEngine(a.gateway, a.store, a.pipeline,
		conversation.WithReadmeFetcher(a.repos, cfg.GitHubDefaultURL),
	)
	a.analyzer = analyzer.New(a.gateway)
	a.jira = tickets.NewJiraClient(tickets.JiraConfig{
		BaseURL:    cfg.JiraBaseURL,
		Email:      cfg.JiraEmail,
		Token:      cfg.JiraToken,
		ProjectKey: cfg.JiraProjectKey,
		IssueType:  cfg.JiraIssueType,
		BoardID:    cfg.JiraBoardID,
	})
	a.publisher = tickets.NewPublisher(a.jira, a.events)
	return a, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		slog.Warn("close events", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("close db", "error", err)
	}
}

func newBlobStore(cfg config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "s3", "minio":
		s, err := blob.NewS3Store(blob.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 blob store: %w", err)
		}
		slog.Info("using s3 blob store", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return s, nil
	case "fs", "":
		s, err := blob.NewFSStore(cfg.BlobDir)
		if err != nil {
			return nil, fmt.Errorf("init fs blob store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

func newGateway(ctx context.Context, cfg config.Config) (llm.Gateway, error) {
	if cfg.UseStubs() {
		slog.Warn("no API key for the selected provider, using stub gateway", "provider", cfg.LLMProvider)
		return llm.Instrument(llm.StubGateway{}, "stub"), nil
	}

	params := llm.Params{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.LLMTimeout,
	}

	var g llm.Gateway
	switch cfg.LLMProvider {
	case "claude":
		opts := []llm.ClaudeOption{llm.WithClaudeModel(cfg.AnthropicModel), llm.WithClaudeParams(params)}
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, llm.WithClaudeBaseURL(cfg.AnthropicBaseURL))
		}
		g = llm.NewClaudeClient(cfg.AnthropicKey, opts...)
	case "gemini":
		opts := []llm.GeminiOption{llm.WithGeminiModel(cfg.GeminiModel), llm.WithGeminiParams(params)}
		if cfg.GeminiBaseURL != "" {
			opts = append(opts, llm.WithGeminiBaseURL(cfg.GeminiBaseURL))
		}
		gc, err := llm.NewGeminiClient(ctx, cfg.GeminiKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		g = gc
	case "ollama":
		g = llm.NewOllamaClient(cfg.OllamaURL, llm.WithOllamaModel(cfg.OllamaModel), llm.WithOllamaParams(params))
	case "openai":
		g = llm.NewOpenAIClient(cfg.OpenAIKey,
			llm.WithModel(cfg.OpenAIModel),
			llm.WithBaseURL(cfg.OpenAIBaseURL),
			llm.WithParams(params),
		)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	slog.Info("using model gateway", "provider", cfg.LLMProvider)

	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.InitialBackoff = cfg.RetryBackoff
	return llm.WithRetry(llm.Instrument(g, cfg.LLMProvider), policy), nil
}

func newEvents(cfg config.Config) events.Publisher {
	if cfg.NATSURL == "" {
		return events.Nop{}
	}
	p, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		slog.Warn("NATS unavailable, domain events disabled", "url", cfg.NATSURL, "error", err)
		return events.Nop{}
	}
	slog.Info("publishing domain events", "url", cfg.NATSURL)
	return p
}
