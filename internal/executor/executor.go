package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cexll/codex-replier/internal/config"
	"github.com/cexll/codex-replier/internal/dispatcher"
	"github.com/cexll/codex-replier/internal/event"
	"github.com/cexll/codex-replier/internal/ghoutput"
	"github.com/cexll/codex-replier/internal/github"
	"github.com/cexll/codex-replier/internal/prompt"
	"github.com/cexll/codex-replier/internal/provider/codex"
	"github.com/cexll/codex-replier/internal/provider/openai"
	"github.com/cexll/codex-replier/internal/trigger"
)

const (
	errorDetailLimit = 400
	permissionsHint  = "Ensure the workflow grants 'issues: write' and 'pull-requests: write' permissions"
)

// Result describes what a run did.
type Result struct {
	Skipped    bool
	Reason     string
	Body       string
	Posted     bool
	CommentURL string
}

// Executor runs the reply pipeline for a single event.
type Executor struct {
	cfg    config.Config
	logger *slog.Logger
	cli    dispatcher.CLI
	api    dispatcher.Completer
	creds  github.Credentials
}

// New creates an executor wired to the Codex CLI and OpenAI API from cfg.
func New(cfg config.Config, logger *slog.Logger) *Executor {
	var cli dispatcher.CLI
	if cfg.UseCLI {
		cli = codex.NewRunner(cfg.CLITemplate, cfg.Model, cfg.CLITimeout, logger)
	}
	api := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAITimeout)
	return NewWithDeps(cfg, logger, cli, api)
}

// NewWithDeps creates an executor with custom CLI and API backends (useful for testing).
func NewWithDeps(cfg config.Config, logger *slog.Logger, cli dispatcher.CLI, api dispatcher.Completer) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	creds := github.Credentials{Token: cfg.GitHubToken}
	if cfg.HasGitHubApp() {
		creds.App = &github.AppAuth{
			AppID:      cfg.GitHubAppID,
			PrivateKey: cfg.GitHubPrivateKey,
			BaseURL:    cfg.GitHubAPIURL,
		}
	}
	return &Executor{cfg: cfg, logger: logger, cli: cli, api: api, creds: creds}
}

// Execute filters ev, builds a prompt, obtains a reply and posts it.
// Skipped events return a Result with Skipped set and a nil error.
func (e *Executor) Execute(ctx context.Context, ev *event.Event) (Result, error) {
	res, err := e.execute(ctx, ev)
	e.writeOutputs(res)
	return res, err
}

func (e *Executor) execute(ctx context.Context, ev *event.Event) (Result, error) {
	decision := trigger.Evaluate(ev, e.cfg.TriggerPrefix)
	if decision.Skip {
		e.logger.Log(ctx, decision.Level, decision.Reason)
		return Result{Skipped: true, Reason: decision.Reason}, nil
	}

	if e.cfg.OpenAIAPIKey == "" {
		e.logger.Error("Missing OPENAI_API_KEY secret")
		return Result{}, ErrMissingOpenAIKey
	}
	if !e.creds.Configured() {
		e.logger.Error("Missing GITHUB_TOKEN")
		return Result{}, ErrMissingGitHubCredential
	}

	addr := ev.Address()
	client, err := e.githubClient(ctx, addr)
	if err != nil {
		e.logger.Error("GitHub authentication failed", "error", err)
		return Result{}, err
	}

	var lister prompt.CommentLister
	if client != nil {
		lister = client
	}
	builder := prompt.NewBuilder(prompt.Options{
		IncludeMetadata:   e.cfg.IncludeMetadata,
		IncludeThread:     e.cfg.IncludeThread,
		MaxContextChars:   e.cfg.MaxContextChars,
		MaxThreadComments: e.cfg.MaxThreadComments,
		SystemPrompt:      e.cfg.SystemPrompt,
		Model:             e.cfg.Model,
	}, lister, e.logger)
	payload := builder.Build(ctx, prompt.Input{Event: ev, Address: addr, Request: decision.Request})

	d := dispatcher.New(e.cli, e.api, dispatcher.Config{
		Model:               e.cfg.Model,
		FallbackModel:       e.cfg.FallbackModel,
		DryRun:              e.cfg.DryRun,
		UseCLI:              e.cfg.UseCLI,
		DisableChatFallback: e.cfg.DisableChatFallback,
	}, e.logger)
	reply, err := d.Reply(ctx, payload)
	if err != nil {
		e.logger.Error(err.Error())
		return Result{}, err
	}

	body := e.mention(ev) + github.SanitizeReply(reply)
	res := Result{Body: body}

	if !addr.Complete() {
		e.logger.Error("Cannot resolve repository/issue context to post comment")
		return res, ErrUnresolvedAddress
	}

	if e.cfg.DryRun {
		e.logger.Info(fmt.Sprintf("Would post to %s:\n%s", addr, body), "dry_run", true)
		return res, nil
	}

	comment, err := client.CreateComment(ctx, addr.Owner, addr.Repo, addr.Number, body)
	if err != nil {
		e.logger.Error("Failed to post comment: " + github.ErrorDetail(err, errorDetailLimit))
		if github.IsForbidden(err) {
			e.logger.Error(permissionsHint)
		}
		return res, err
	}

	res.Posted = true
	res.CommentURL = comment.HTMLURL
	e.logger.Info("Posted reply to "+addr.String(), "url", comment.HTMLURL)
	return res, nil
}

// githubClient returns nil when the event lacks the repository needed to
// authenticate or address API calls.
func (e *Executor) githubClient(ctx context.Context, addr event.Address) (*github.Client, error) {
	if addr.Owner == "" || addr.Repo == "" {
		return nil, nil
	}
	ts, err := e.creds.TokenSource(ctx, addr.Owner, addr.Repo)
	if err != nil {
		return nil, err
	}
	return github.NewClient(ctx, ts, e.cfg.GitHubAPIURL, e.cfg.GitHubTimeout)
}

func (e *Executor) mention(ev *event.Event) string {
	if !e.cfg.MentionAuthor || ev.Comment.User.Login == "" {
		return ""
	}
	return "@" + ev.Comment.User.Login + " "
}

func (e *Executor) writeOutputs(res Result) {
	if e.cfg.OutputPath == "" {
		return
	}
	err := ghoutput.Write(e.cfg.OutputPath, map[string]string{
		"replied":     strconv.FormatBool(res.Posted),
		"comment_url": res.CommentURL,
	})
	if err != nil {
		e.logger.Warn("Could not write step outputs", "error", err)
	}
}
