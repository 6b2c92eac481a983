// Package config provides centralized configuration for the pmgenie server.
// Values come from built-in defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (including a .env file), in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `yaml:"port"`

	// DBPath is the path to the SQLite database file.
	DBPath string `yaml:"db_path"`

	// BlobBackend selects where HTML and screenshots live: "fs" or "s3".
	BlobBackend string `yaml:"blob_backend"`
	BlobDir     string `yaml:"blob_dir"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3UseSSL    bool   `yaml:"s3_use_ssl"`

	// LLMProvider selects the model backend: "openai", "claude", "gemini",
	// "ollama" or "stub".
	LLMProvider string `yaml:"llm_provider"`

	// OpenAI-compatible endpoint (NVIDIA NIM unless overridden).
	OpenAIKey     string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`

	AnthropicKey     string `yaml:"anthropic_api_key"`
	AnthropicModel   string `yaml:"anthropic_model"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`

	GeminiKey     string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	GeminiBaseURL string `yaml:"gemini_base_url"`

	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`

	// Generation parameters shared by every provider.
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	MaxTokens   int           `yaml:"max_tokens"`
	LLMTimeout  time.Duration `yaml:"llm_timeout"`

	// Caller retry policy. One attempt disables retries.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	GitHubToken      string        `yaml:"github_token"`
	GitHubAPIBase    string        `yaml:"github_api_base"`
	GitHubDefaultURL string        `yaml:"github_default_repo_url"`
	RepoCacheTTL     time.Duration `yaml:"repo_cache_ttl"`

	JiraBaseURL    string `yaml:"jira_base_url"`
	JiraEmail      string `yaml:"jira_email"`
	JiraToken      string `yaml:"jira_api_token"`
	JiraProjectKey string `yaml:"jira_project_key"`
	JiraIssueType  string `yaml:"jira_issue_type"`
	JiraBoardID    int    `yaml:"jira_board_id"`

	// RendererURL is the headless-browser screenshot service. Empty
	// disables previews.
	RendererURL     string        `yaml:"renderer_url"`
	RendererTimeout time.Duration `yaml:"renderer_timeout"`
	ViewportWidth   int           `yaml:"viewport_width"`
	ViewportHeight  int           `yaml:"viewport_height"`

	// NATSURL enables domain events when set.
	NATSURL string `yaml:"nats_url"`

	// WorkerInterval is the polling interval of the preview worker.
	WorkerInterval    time.Duration `yaml:"worker_interval"`
	RenderMaxAttempts int           `yaml:"render_max_attempts"`
	RenderRetryDelay  time.Duration `yaml:"render_retry_delay"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `yaml:"cors_origin"`

	// Metrics mounts /metrics.
	Metrics bool `yaml:"metrics"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:              "8080",
		DBPath:            "pmgenie.db",
		BlobBackend:       "fs",
		BlobDir:           "mockups",
		S3Region:          "us-east-1",
		S3Bucket:          "pmgenie",
		S3UseSSL:          true,
		LLMProvider:       "openai",
		OpenAIBaseURL:     "https://integrate.api.nvidia.com/v1",
		OpenAIModel:       "nvidia/llama-3.3-nemotron-super-49b-v1.5",
		AnthropicModel:    "claude-sonnet-4-20250514",
		GeminiModel:       "gemini-2.5-flash",
		OllamaURL:         "http://localhost:11434",
		OllamaModel:       "llama3",
		Temperature:       0.6,
		TopP:              0.95,
		MaxTokens:         16000,
		LLMTimeout:        120 * time.Second,
		RetryAttempts:     1,
		RetryBackoff:      2 * time.Second,
		GitHubAPIBase:     "https://api.github.com",
		RepoCacheTTL:      10 * time.Minute,
		JiraProjectKey:    "KAN",
		JiraIssueType:     "Task",
		JiraBoardID:       1,
		RendererTimeout:   60 * time.Second,
		ViewportWidth:     1400,
		ViewportHeight:    900,
		WorkerInterval:    5 * time.Second,
		RenderMaxAttempts: 3,
		RenderRetryDelay:  30 * time.Second,
		CORSOrigin:        "*",
		Metrics:           true,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.DBPath = envOr("DB_PATH", c.DBPath)

	c.BlobBackend = envOr("BLOB_BACKEND", c.BlobBackend)
	c.BlobDir = envOr("BLOB_DIR", c.BlobDir)
	c.S3Endpoint = envOr("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = envOr("S3_REGION", c.S3Region)
	c.S3Bucket = envOr("S3_BUCKET", c.S3Bucket)
	c.S3Prefix = envOr("S3_PREFIX", c.S3Prefix)
	c.S3AccessKey = envOr("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOr("S3_SECRET_KEY", c.S3SecretKey)
	c.S3UseSSL = envBool("S3_USE_SSL", c.S3UseSSL)

	c.LLMProvider = strings.ToLower(envOr("LLM_PROVIDER", c.LLMProvider))
	c.OpenAIKey = envOr("OPENAI_API_KEY", envOr("NVIDIA_API_KEY", c.OpenAIKey))
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.AnthropicKey = envOr("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.AnthropicBaseURL = envOr("ANTHROPIC_BASE_URL", c.AnthropicBaseURL)
	c.GeminiKey = envOr("GEMINI_API_KEY", c.GeminiKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)
	c.GeminiBaseURL = envOr("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = envOr("OLLAMA_MODEL", c.OllamaModel)

	c.Temperature = envFloat("LLM_TEMPERATURE", c.Temperature)
	c.TopP = envFloat("LLM_TOP_P", c.TopP)
	c.MaxTokens = envInt("LLM_MAX_TOKENS", c.MaxTokens)
	c.LLMTimeout = envDuration("LLM_TIMEOUT", c.LLMTimeout)
	c.RetryAttempts = envInt("LLM_RETRY_ATTEMPTS", c.RetryAttempts)
	c.RetryBackoff = envDuration("LLM_RETRY_BACKOFF", c.RetryBackoff)

	c.GitHubToken = envOr("GITHUB_TOKEN", c.GitHubToken)
	c.GitHubAPIBase = envOr("GITHUB_API_BASE", c.GitHubAPIBase)
	c.GitHubDefaultURL = envOr("GITHUB_REPO_URL", c.GitHubDefaultURL)
	c.RepoCacheTTL = envDuration("REPO_CACHE_TTL", c.RepoCacheTTL)

	c.JiraBaseURL = envOr("JIRA_BASE_URL", c.JiraBaseURL)
	c.JiraEmail = envOr("JIRA_EMAIL", c.JiraEmail)
	c.JiraToken = envOr("JIRA_API_TOKEN", c.JiraToken)
	c.JiraProjectKey = envOr("JIRA_PROJECT_KEY", c.JiraProjectKey)
	c.JiraIssueType = envOr("JIRA_ISSUE_TYPE", c.JiraIssueType)
	c.JiraBoardID = envInt("JIRA_BOARD_ID", c.JiraBoardID)

	c.RendererURL = envOr("RENDERER_URL", c.RendererURL)
	c.RendererTimeout = envDuration("RENDERER_TIMEOUT", c.RendererTimeout)
	c.ViewportWidth = envInt("VIEWPORT_WIDTH", c.ViewportWidth)
	c.ViewportHeight = envInt("VIEWPORT_HEIGHT", c.ViewportHeight)

	c.NATSURL = envOr("NATS_URL", c.NATSURL)
	c.WorkerInterval = envDuration("WORKER_INTERVAL", c.WorkerInterval)
	c.RenderMaxAttempts = envInt("RENDER_MAX_ATTEMPTS", c.RenderMaxAttempts)
	c.RenderRetryDelay = envDuration("RENDER_RETRY_DELAY", c.RenderRetryDelay)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.Metrics = envBool("METRICS_ENABLED", c.Metrics)
}

// UseStubs returns true when the stub gateway should serve model calls:
// explicitly requested, or no API key for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case "stub":
		return true
	case "claude":
		return c.AnthropicKey == ""
	case "gemini":
		return c.GeminiKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

// JiraConfigured reports whether tracker credentials are present.
func (c Config) JiraConfigured() bool {
	return c.JiraBaseURL != "" && c.JiraEmail != "" && c.JiraToken != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
