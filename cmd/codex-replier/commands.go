package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/cexll/codex-replier/internal/config"
	"github.com/cexll/codex-replier/internal/event"
	"github.com/cexll/codex-replier/internal/executor"
	"github.com/cexll/codex-replier/internal/logging"
	"github.com/cexll/codex-replier/internal/webhook"
)

type serveFunc func(addr string, handler http.Handler) error

// Options stores CLI flags shared between commands.
type Options struct {
	EnvFile   string
	LogLevel  string
	LogFormat string
	EventPath string
	DryRun    bool
	Port      int
}

func newRootCommand(opts *Options, serve serveFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codex-replier",
		Short: "Answer /codex issue and pull request comments with OpenAI Codex",
		Long: "codex-replier reads a GitHub issue_comment event, and when the comment starts with the trigger prefix " +
			"it asks Codex (CLI first, then the OpenAI API) for a reply and posts it back as a comment.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "Load environment variables from this file (default .env when present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "Log format (actions, text); defaults to actions inside GitHub Actions")
	addRunFlags(cmd, opts)

	cmd.AddCommand(newRunCommand(opts), newServeCommand(opts, serve))
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVar(&opts.EventPath, "event", "", "Path to the event payload (overrides GITHUB_EVENT_PATH)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Log the reply instead of posting it")
}

func newRunCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reply to the comment in the current GitHub Actions event (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func newServeCommand(opts *Options, serve serveFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a GitHub webhook endpoint that replies to issue comments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, opts, serve)
		},
	}
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Listen port (overrides PORT)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Log replies instead of posting them")
	return cmd
}

func runAction(cmd *cobra.Command, opts *Options) error {
	cfg, logger, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	ev, err := event.Load(cfg.EventPath)
	if errors.Is(err, event.ErrNoEvent) {
		logger.Info("No event payload found; nothing to do")
		return nil
	}
	if err != nil {
		logger.Error("Failed to read event payload", "error", err)
		return &reportedError{err: err}
	}

	if _, err := executor.New(cfg, logger).Execute(cmd.Context(), ev); err != nil {
		return &reportedError{err: err}
	}
	return nil
}

func runServer(cmd *cobra.Command, opts *Options, serve serveFunc) error {
	cfg, logger, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	handler := webhook.NewHandler(cfg.WebhookSecret, executor.New(cfg, logger), logger)

	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"service":"codex-replier","status":"running","trigger":%q}`, cfg.TriggerPrefix)
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Server listening",
		"addr", addr,
		"trigger", cfg.TriggerPrefix,
		"model", cfg.Model,
		"github_app", cfg.HasGitHubApp(),
		"dry_run", cfg.DryRun)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// setup loads .env, overlays flags onto the environment and builds the
// configuration and logger.
func setup(cmd *cobra.Command, opts *Options) (config.Config, *slog.Logger, error) {
	if opts.EnvFile != "" {
		if err := loadDotEnv(opts.EnvFile); err != nil {
			return config.Config{}, nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	} else {
		_ = loadDotEnv()
	}

	environ := config.FromOS()
	overlayFlags(cmd, opts, environ)

	cfg, err := config.Load(environ)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, newLogger(cfg), nil
}

func overlayFlags(cmd *cobra.Command, opts *Options, environ map[string]string) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("event") {
		environ["GITHUB_EVENT_PATH"] = opts.EventPath
	}
	if changed("dry-run") {
		environ["CODEX_DRY_RUN"] = strconv.FormatBool(opts.DryRun)
	}
	if changed("port") {
		environ["PORT"] = strconv.Itoa(opts.Port)
	}
	if changed("log-level") {
		environ["LOG_LEVEL"] = opts.LogLevel
	}
	if changed("log-format") {
		environ["LOG_FORMAT"] = opts.LogFormat
	}
}

// newLogger writes workflow commands to stdout, where the runner parses
// them, and tinted text to stderr.
func newLogger(cfg config.Config) *slog.Logger {
	format := logging.ResolveFormat(cfg.LogFormat, cfg.GitHubActions)
	var w io.Writer = stderr
	if format == logging.FormatActions {
		w = stdout
	}
	return logging.NewLogger(w, format, logging.ParseLevel(cfg.LogLevel))
}
