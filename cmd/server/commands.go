package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/pmgenie/internal/api"
	"github.com/yangwenmai/pmgenie/internal/mockup"
	"github.com/yangwenmai/pmgenie/internal/model"
	"github.com/yangwenmai/pmgenie/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background render worker",
	RunE:  runServe,
}

var (
	genPrompt  string
	genProject string
	genRepo    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a mockup from a prompt and print it as JSON",
	Example: `  pmgenie generate --prompt "A dashboard listing open invoices" --project billing
  pmgenie generate --prompt "Settings page" --repo https://github.com/acme/web`,
	RunE: runGenerate,
}

var (
	anaMockup  string
	anaRepo    string
	anaPublish bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Derive implementation tickets from a stored mockup",
	Long: `Compares a stored mockup with a GitHub repository and prints the
resulting work items. With --publish the items are filed in Jira and the
batch result is printed instead.`,
	RunE: runAnalyze,
}

func init() {
	generateCmd.Flags().StringVar(&genPrompt, "prompt", "", "Product description to turn into a mockup (required)")
	generateCmd.Flags().StringVar(&genProject, "project", "", "Project name")
	generateCmd.Flags().StringVar(&genRepo, "repo", "", "GitHub repository URL used to enhance the prompt")
	generateCmd.MarkFlagRequired("prompt")

	analyzeCmd.Flags().StringVar(&anaMockup, "mockup", "", "Mockup ID (required)")
	analyzeCmd.Flags().StringVar(&anaRepo, "repo", "", "GitHub repository URL (defaults to the mockup's own)")
	analyzeCmd.Flags().BoolVar(&anaPublish, "publish", false, "File the work items in Jira")
	analyzeCmd.MarkFlagRequired("mockup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.RendererURL != "" {
		w := worker.New(a.store, a.pipeline, a.cfg.WorkerInterval, a.cfg.RenderMaxAttempts,
			worker.WithRetryDelay(a.cfg.RenderRetryDelay))
		go w.Start(ctx)
	}

	srv := api.New(api.Deps{
		Mockups:    a.store,
		Blobs:      a.blobs,
		Pipeline:   a.pipeline,
		Chat:       a.chat,
		Analyzer:   a.analyzer,
		Publisher:  a.publisher,
		Repos:      a.repos,
		Jira:       a.jira,
		CORSOrigin: a.cfg.CORSOrigin,
		Metrics:    a.cfg.Metrics,
	})
	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("pmgenie server listening", "addr", "http://localhost:"+a.cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.pipeline.Generate(ctx, mockup.GenerateRequest{
		Prompt:        genPrompt,
		ProjectName:   genProject,
		GitHubRepoURL: strings.TrimSpace(genRepo),
		Origin:        mockup.OriginGenerate,
	})
	if err != nil {
		return err
	}
	return printJSON(m)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.store.GetMockup(ctx, anaMockup)
	if err != nil {
		return err
	}
	repoURL := strings.TrimSpace(anaRepo)
	if repoURL == "" {
		repoURL = m.GitHubRepoURL
	}
	if repoURL == "" {
		return model.InvalidInput("--repo is required when the mockup has no repository")
	}
	rc, err := a.repos.Build(ctx, repoURL)
	if err != nil {
		return fmt.Errorf("build repository context: %w", err)
	}

	items := a.analyzer.Analyze(ctx, m.HTMLContent, rc)
	slog.Info("analysis complete", "mockup_id", m.ID, "items", len(items))
	if !anaPublish {
		return printJSON(items)
	}
	if !a.jira.Configured() {
		return errors.New("jira is not configured (set JIRA_BASE_URL, JIRA_EMAIL and JIRA_API_TOKEN)")
	}
	return printJSON(a.publisher.PublishAll(ctx, items, repoURL, m.ID))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
