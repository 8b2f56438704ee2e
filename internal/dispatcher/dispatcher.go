package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cexll/codex-replier/internal/logging"
	"github.com/cexll/codex-replier/internal/prompt"
	"github.com/cexll/codex-replier/internal/provider/openai"
)

const (
	// CompletionOnlyPrefix marks model families the chat endpoint rejects.
	CompletionOnlyPrefix = "codex"

	// NoTextPlaceholder is posted when every stage came back empty.
	NoTextPlaceholder = "(No text response received from the model.)"

	apiErrorPrefix = "(OpenAI error) "
)

// CLI runs the local Codex command line tool.
type CLI interface {
	Run(ctx context.Context, prompt string) (string, bool)
}

// Completer calls the hosted completion endpoints.
type Completer interface {
	Respond(ctx context.Context, model, input string) (openai.Result, error)
	Chat(ctx context.Context, model, system, user string) (openai.Result, error)
}

// Config controls which stages run and with which models.
type Config struct {
	Model               string
	FallbackModel       string
	DryRun              bool
	UseCLI              bool
	DisableChatFallback bool
}

// Dispatcher produces a reply by walking the CLI, Responses and Chat stages
// in order, stopping at the first that yields text.
type Dispatcher struct {
	cli    CLI
	api    Completer
	cfg    Config
	logger *slog.Logger
}

// New creates a dispatcher. cli may be nil, which disables the CLI stage.
func New(cli CLI, api Completer, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{cli: cli, api: api, cfg: cfg, logger: logger}
}

// Reply returns the text to post for p. Only a failed Responses call is
// returned as an error; every other failure degrades to text.
func (d *Dispatcher) Reply(ctx context.Context, p prompt.Payload) (string, error) {
	if d.cfg.DryRun {
		return fmt.Sprintf("(dry-run) prompt: %s | model: %s", p.Combined, d.cfg.Model), nil
	}

	if d.cfg.UseCLI && d.cli != nil {
		if text, ok := d.runCLI(ctx, p.Combined); ok {
			return text, nil
		}
		d.logger.Info("All CLI attempts failed; falling back to API")
	}

	text, err := d.respond(ctx, p.Combined)
	if err != nil {
		return "", err
	}
	if text != "" {
		return text, nil
	}

	if d.cfg.DisableChatFallback {
		return NoTextPlaceholder, nil
	}
	return d.chat(ctx, p), nil
}

func (d *Dispatcher) runCLI(ctx context.Context, input string) (string, bool) {
	done := logging.Group(d.logger, "Trying Codex CLI")
	defer done()
	return d.cli.Run(ctx, input)
}

func (d *Dispatcher) respond(ctx context.Context, input string) (string, error) {
	done := logging.Group(d.logger, "Calling OpenAI")
	defer done()

	res, err := d.api.Respond(ctx, d.cfg.Model, input)
	if err != nil {
		return "", fmt.Errorf("OpenAI call failed: %w", err)
	}
	if res.ErrorMessage != "" {
		return apiErrorPrefix + res.ErrorMessage, nil
	}
	return res.Text, nil
}

func (d *Dispatcher) chat(ctx context.Context, p prompt.Payload) string {
	model := ChatModel(d.cfg.Model, d.cfg.FallbackModel)

	done := logging.Group(d.logger, "Calling OpenAI chat fallback")
	defer done()

	res, err := d.api.Chat(ctx, model, p.System, p.User)
	if err != nil {
		d.logger.Warn("Chat fallback failed", "model", model, "error", err)
		return apiErrorPrefix + "chat fallback failed: " + err.Error()
	}
	if res.ErrorMessage != "" {
		return apiErrorPrefix + res.ErrorMessage
	}
	if res.Text == "" {
		return NoTextPlaceholder
	}
	return res.Text
}

// ChatModel picks the model for the chat endpoint, substituting fallback for
// completion-only families.
func ChatModel(model, fallback string) string {
	if strings.HasPrefix(model, CompletionOnlyPrefix) && fallback != "" {
		return fallback
	}
	return model
}
