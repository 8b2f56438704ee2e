package codex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
)

const (
	// DefaultTimeout bounds each CLI candidate.
	DefaultTimeout = 180 * time.Second

	promptPlaceholder = "{prompt}"
	modelPlaceholder  = "{model}"

	stderrLogLimit = 400
)

var execCommandContext = exec.CommandContext

// defaultCandidates are tried in order when no template is configured.
var defaultCandidates = [][]string{
	{"npx", "-y", "@openai/codex@latest", "exec", "-"},
	{"npx", "-y", "@openai/codex@latest", "exec", promptPlaceholder},
}

// Invocation is a single argv vector plus optional standard input.
type Invocation struct {
	Args  []string
	Stdin string
}

// State tracks an Attempt through Pending -> Ran -> Accepted|Rejected.
type State int

const (
	Pending State = iota
	Ran
	Accepted
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ran:
		return "ran"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Attempt records one candidate execution.
type Attempt struct {
	Invocation Invocation
	State      State
	ExitCode   int
	Stdout     string
	Stderr     string
	Err        error
	Duration   time.Duration
}

// Candidates expands template into the ordered invocations to try. An empty
// template yields the built-in npx candidates. Each template argument has
// {prompt} and {model} substituted in place; without a {prompt} placeholder
// the prompt is passed on stdin.
func Candidates(template, prompt, model string) ([]Invocation, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		out := make([]Invocation, 0, len(defaultCandidates))
		for _, args := range defaultCandidates {
			out = append(out, expand(args, prompt, model))
		}
		return out, nil
	}

	args, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("parse CLI template: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("CLI template is empty")
	}
	return []Invocation{expand(args, prompt, model)}, nil
}

func expand(args []string, prompt, model string) Invocation {
	inv := Invocation{Args: make([]string, len(args))}
	hasPrompt := false
	for i, arg := range args {
		if strings.Contains(arg, promptPlaceholder) {
			hasPrompt = true
		}
		arg = strings.ReplaceAll(arg, promptPlaceholder, prompt)
		arg = strings.ReplaceAll(arg, modelPlaceholder, model)
		inv.Args[i] = arg
	}
	if !hasPrompt {
		inv.Stdin = prompt
	}
	return inv
}

// Runner executes the Codex CLI candidates in order.
type Runner struct {
	template string
	model    string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRunner creates a Runner. A zero timeout uses DefaultTimeout.
func NewRunner(template, model string, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{template: template, model: model, timeout: timeout, logger: logger}
}

// Run tries each candidate and returns the first accepted output. The
// boolean is false when no candidate produced text.
func (r *Runner) Run(ctx context.Context, prompt string) (string, bool) {
	candidates, err := Candidates(r.template, prompt, r.model)
	if err != nil {
		r.logger.Warn("Codex CLI template unusable; skipping CLI", "error", err)
		return "", false
	}

	for _, inv := range candidates {
		attempt := r.attempt(ctx, inv)
		switch attempt.State {
		case Accepted:
			r.logger.Debug("Codex CLI produced a reply",
				"command", attempt.Invocation.Args[0],
				"duration", attempt.Duration)
			return strings.TrimSpace(attempt.Stdout), true
		case Rejected:
			r.logger.Info(rejection(attempt), "command", attempt.Invocation.Args[0])
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", false
}

func (r *Runner) attempt(ctx context.Context, inv Invocation) Attempt {
	a := Attempt{Invocation: inv, State: Pending}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := execCommandContext(runCtx, inv.Args[0], inv.Args[1:]...)
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	a.Duration = time.Since(start)
	a.State = Ran
	a.Stdout = stdout.String()
	a.Stderr = stderr.String()
	a.ExitCode = exitCode(cmd, err)

	switch {
	case err != nil:
		a.Err = err
		if runCtx.Err() == context.DeadlineExceeded {
			a.Err = fmt.Errorf("timed out after %v: %w", r.timeout, context.DeadlineExceeded)
		}
		a.State = Rejected
	case strings.TrimSpace(a.Stdout) == "":
		a.State = Rejected
	default:
		a.State = Accepted
	}
	return a
}

// rejection describes why a candidate was not accepted.
func rejection(a Attempt) string {
	var exitErr *exec.ExitError
	switch {
	case a.Err == nil:
		return "CLI produced no output"
	case errors.As(a.Err, &exitErr):
		return fmt.Sprintf("CLI exited with %d: %s", a.ExitCode, truncate(a.Stderr, stderrLogLimit))
	default:
		return "CLI failed: " + a.Err.Error()
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return 0
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
