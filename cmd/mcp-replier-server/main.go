package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/codex-replier/internal/config"
	"github.com/cexll/codex-replier/internal/dispatcher"
	"github.com/cexll/codex-replier/internal/logging"
	"github.com/cexll/codex-replier/internal/provider/codex"
	"github.com/cexll/codex-replier/internal/provider/openai"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.FromOS())
	// stdout carries the MCP stream.
	logger := logging.NewLogger(os.Stderr, logging.FormatText, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.OpenAIAPIKey == "" {
		logger.Error("Missing OPENAI_API_KEY secret")
		os.Exit(1)
	}

	var cli dispatcher.CLI
	if cfg.UseCLI {
		cli = codex.NewRunner(cfg.CLITemplate, cfg.Model, cfg.CLITimeout, logger)
	}
	d := dispatcher.New(cli, openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAITimeout), dispatcher.Config{
		Model:               cfg.Model,
		FallbackModel:       cfg.FallbackModel,
		DryRun:              cfg.DryRun,
		UseCLI:              cfg.UseCLI,
		DisableChatFallback: cfg.DisableChatFallback,
	}, logger)

	server := newServer(&replyTool{replier: d, defaultSystem: cfg.SystemPrompt, logger: logger})
	logger.Info("Starting MCP server on stdio", "tool", toolName, "model", cfg.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
