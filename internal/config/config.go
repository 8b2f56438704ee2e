package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for a codex-replier run.
// It is resolved once at process start and never mutated afterwards.
type Config struct {
	// Event source
	EventPath string `env:"GITHUB_EVENT_PATH"`

	// Trigger settings
	TriggerPrefix string `env:"INPUT_TRIGGER_PREFIX" envDefault:"/codex"`
	MentionAuthor bool   `env:"INPUT_MENTION_AUTHOR" envDefault:"true"`

	// Model settings
	Model               string `env:"INPUT_MODEL" envDefault:"o4-mini"`
	FallbackModel       string `env:"INPUT_FALLBACK_MODEL" envDefault:"gpt-4o-mini"`
	SystemPrompt        string `env:"INPUT_SYSTEM_PROMPT"`
	DisableChatFallback bool   `env:"CODEX_DISABLE_CHAT_FALLBACK"`

	// Prompt context settings
	IncludeMetadata   bool `env:"INPUT_INCLUDE_METADATA" envDefault:"true"`
	IncludeThread     bool `env:"INPUT_INCLUDE_THREAD" envDefault:"true"`
	MaxContextChars   int  `env:"INPUT_MAX_CONTEXT_CHARS" envDefault:"12000"`
	MaxThreadComments int  `env:"INPUT_MAX_THREAD_COMMENTS" envDefault:"10"`

	// Codex CLI settings
	UseCLI      bool   `env:"INPUT_USE_CLI" envDefault:"true"`
	CLITemplate string `env:"CODEX_CLI_TEMPLATE"`

	DryRun bool `env:"CODEX_DRY_RUN"`

	// OpenAI settings
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`

	// GitHub settings
	GitHubToken      string `env:"GITHUB_TOKEN"`
	GitHubAPIURL     string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	GitHubAppID      string `env:"GITHUB_APP_ID"`
	GitHubPrivateKey string `env:"GITHUB_PRIVATE_KEY"`
	OutputPath       string `env:"GITHUB_OUTPUT"`

	// Server settings (serve mode only)
	Port          int    `env:"PORT" envDefault:"8000"`
	WebhookSecret string `env:"GITHUB_WEBHOOK_SECRET"`

	// Timeouts
	CLITimeout    time.Duration `env:"CODEX_CLI_TIMEOUT" envDefault:"180s"`
	OpenAITimeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"120s"`
	GitHubTimeout time.Duration `env:"GITHUB_TIMEOUT" envDefault:"60s"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT"`
	GitHubActions bool   `env:"GITHUB_ACTIONS"`
}

// Load resolves configuration from the given environment map.
// Empty values are treated as unset so that blank action inputs fall back to defaults.
func Load(environ map[string]string) (Config, error) {
	vars := make(map[string]string, len(environ))
	for k, v := range environ {
		if strings.TrimSpace(v) == "" {
			continue
		}
		vars[k] = v
	}

	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: vars,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(false): func(v string) (interface{}, error) {
				return ParseBool(v), nil
			},
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("parse configuration: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// FromOS builds an environment map from the current process environment.
func FromOS() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

// ParseBool reports whether value is one of 1/true/yes/on (case-insensitive).
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (c *Config) normalize() {
	c.TriggerPrefix = strings.TrimSpace(c.TriggerPrefix)
	if c.TriggerPrefix == "" {
		c.TriggerPrefix = "/codex"
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = "o4-mini"
	}
	c.FallbackModel = strings.TrimSpace(c.FallbackModel)
	if c.FallbackModel == "" {
		c.FallbackModel = "gpt-4o-mini"
	}
	c.OpenAIBaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAIBaseURL), "/")
	c.GitHubAPIURL = strings.TrimRight(strings.TrimSpace(c.GitHubAPIURL), "/")
	c.GitHubPrivateKey = normalizePrivateKey(c.GitHubPrivateKey)

	if c.MaxContextChars < 0 {
		c.MaxContextChars = 0
	}
	if c.MaxThreadComments < 0 {
		c.MaxThreadComments = 0
	}
	if c.CLITimeout <= 0 {
		c.CLITimeout = 180 * time.Second
	}
	if c.OpenAITimeout <= 0 {
		c.OpenAITimeout = 120 * time.Second
	}
	if c.GitHubTimeout <= 0 {
		c.GitHubTimeout = 60 * time.Second
	}
}

// HasGitHubApp reports whether GitHub App credentials are configured.
func (c Config) HasGitHubApp() bool {
	return c.GitHubAppID != "" && c.GitHubPrivateKey != ""
}

// ValidateServer checks the settings required by the webhook server.
func (c Config) ValidateServer() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be greater than 0")
	}
	return nil
}

func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}
