package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "DB_PATH", "BLOB_BACKEND", "BLOB_DIR", "S3_USE_SSL",
		"LLM_PROVIDER", "OPENAI_API_KEY", "NVIDIA_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_TIMEOUT",
		"LLM_RETRY_ATTEMPTS", "JIRA_BASE_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_BOARD_ID",
		"WORKER_INTERVAL", "RENDER_RETRY_DELAY", "CORS_ORIGIN", "METRICS_ENABLED", "NATS_URL", "RENDERER_URL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, "openai")
	}
	if cfg.OpenAIBaseURL != "https://integrate.api.nvidia.com/v1" {
		t.Errorf("OpenAIBaseURL = %q, want NVIDIA default", cfg.OpenAIBaseURL)
	}
	if cfg.Temperature != 0.6 || cfg.TopP != 0.95 || cfg.MaxTokens != 16000 {
		t.Errorf("generation params = %v/%v/%d", cfg.Temperature, cfg.TopP, cfg.MaxTokens)
	}
	if cfg.LLMTimeout != 120*time.Second {
		t.Errorf("LLMTimeout = %v, want 120s", cfg.LLMTimeout)
	}
	if cfg.RetryAttempts != 1 {
		t.Errorf("RetryAttempts = %d, want 1", cfg.RetryAttempts)
	}
	if cfg.ViewportWidth != 1400 || cfg.ViewportHeight != 900 {
		t.Errorf("viewport = %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if !cfg.Metrics {
		t.Error("Metrics should default to true")
	}
	if cfg.RenderRetryDelay != 30*time.Second {
		t.Errorf("RenderRetryDelay = %v, want 30s", cfg.RenderRetryDelay)
	}
	if cfg.JiraConfigured() {
		t.Error("JiraConfigured should be false without credentials")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://aiberm.com/v1")
	t.Setenv("OPENAI_MODEL", "google/gemini-2.5-flash")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("JIRA_BOARD_ID", "7")
	t.Setenv("LLM_PROVIDER", "OpenAI")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.OpenAIBaseURL != "https://aiberm.com/v1" {
		t.Errorf("OpenAIBaseURL = %q, want Aiberm URL", cfg.OpenAIBaseURL)
	}
	if cfg.OpenAIModel != "google/gemini-2.5-flash" {
		t.Errorf("OpenAIModel = %q, want %q", cfg.OpenAIModel, "google/gemini-2.5-flash")
	}
	if cfg.OpenAIKey != "sk-test-key" {
		t.Errorf("OpenAIKey = %q, want %q", cfg.OpenAIKey, "sk-test-key")
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.S3UseSSL {
		t.Error("S3UseSSL should be false")
	}
	if cfg.JiraBoardID != 7 {
		t.Errorf("JiraBoardID = %d, want 7", cfg.JiraBoardID)
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want lower-cased", cfg.LLMProvider)
	}
}

func TestLoad_NVIDIAKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("NVIDIA_API_KEY", "nvapi-x")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAIKey != "nvapi-x" {
		t.Errorf("OpenAIKey = %q, want NVIDIA key", cfg.OpenAIKey)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pmgenie.yaml")
	content := `port: "9090"
llm_provider: claude
worker_interval: 30s
jira_base_url: https://acme.atlassian.net
jira_email: pm@acme.io
jira_api_token: tok
metrics: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, env should win over file", cfg.Port)
	}
	if cfg.LLMProvider != "claude" {
		t.Errorf("LLMProvider = %q, want claude", cfg.LLMProvider)
	}
	if cfg.WorkerInterval != 30*time.Second {
		t.Errorf("WorkerInterval = %v, want 30s", cfg.WorkerInterval)
	}
	if !cfg.JiraConfigured() {
		t.Error("JiraConfigured should be true")
	}
	if cfg.Metrics {
		t.Error("Metrics should be false from file")
	}
	if cfg.MaxTokens != 16000 {
		t.Errorf("MaxTokens = %d, defaults should survive a partial file", cfg.MaxTokens)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestUseStubs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantStub bool
	}{
		{"openai without key", Config{LLMProvider: "openai"}, true},
		{"openai with key", Config{LLMProvider: "openai", OpenAIKey: "sk-x"}, false},
		{"claude without key", Config{LLMProvider: "claude"}, true},
		{"claude with key", Config{LLMProvider: "claude", AnthropicKey: "sk-x"}, false},
		{"gemini without key", Config{LLMProvider: "gemini"}, true},
		{"gemini with key", Config{LLMProvider: "gemini", GeminiKey: "key"}, false},
		{"ollama always false", Config{LLMProvider: "ollama"}, false},
		{"stub requested", Config{LLMProvider: "stub", OpenAIKey: "sk-x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.UseStubs(); got != tt.wantStub {
				t.Errorf("UseStubs() = %v, want %v", got, tt.wantStub)
			}
		})
	}
}

func TestEnvHelpers_Invalid(t *testing.T) {
	t.Setenv("TEST_DUR_INVALID", "not-a-duration")
	t.Setenv("TEST_INT_INVALID", "abc")
	t.Setenv("TEST_FLOAT_INVALID", "x.y")
	t.Setenv("TEST_BOOL_INVALID", "maybe")

	if got := envDuration("TEST_DUR_INVALID", 5*time.Second); got != 5*time.Second {
		t.Errorf("envDuration = %v, want fallback 5s", got)
	}
	if got := envInt("TEST_INT_INVALID", 42); got != 42 {
		t.Errorf("envInt = %d, want fallback 42", got)
	}
	if got := envFloat("TEST_FLOAT_INVALID", 0.5); got != 0.5 {
		t.Errorf("envFloat = %v, want fallback 0.5", got)
	}
	if got := envBool("TEST_BOOL_INVALID", true); got != true {
		t.Errorf("envBool = %v, want fallback true", got)
	}
}
