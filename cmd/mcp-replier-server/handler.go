package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/codex-replier/internal/prompt"
)

const toolName = "codex_reply"

// Replier produces reply text for an assembled prompt.
type Replier interface {
	Reply(ctx context.Context, p prompt.Payload) (string, error)
}

// ReplyParams defines the input parameters for the codex_reply tool.
type ReplyParams struct {
	Prompt       string `json:"prompt" jsonschema:"The request to answer"`
	SystemPrompt string `json:"system_prompt,omitempty" jsonschema:"Optional system instruction; defaults to INPUT_SYSTEM_PROMPT"`
}

type replyTool struct {
	replier       Replier
	defaultSystem string
	logger        *slog.Logger
}

func newServer(tool *replyTool) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "codex-replier",
		Version: "v1.0.0",
	}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        toolName,
		Description: "Ask Codex for a reply (CLI first, then the OpenAI API) without posting it anywhere",
	}, tool.Handle)
	return server
}

// Handle answers a codex_reply call. Model failures are reported as tool
// errors rather than protocol errors.
func (t *replyTool) Handle(ctx context.Context, _ *mcp.CallToolRequest, params ReplyParams) (*mcp.CallToolResult, any, error) {
	request := strings.TrimSpace(params.Prompt)
	if request == "" {
		return nil, nil, fmt.Errorf("prompt parameter is required")
	}

	system := params.SystemPrompt
	if system == "" {
		system = t.defaultSystem
	}

	t.logger.Info("Received codex_reply request", "chars", len(request))
	text, err := t.replier.Reply(ctx, prompt.Compose(system, "", request))
	if err != nil {
		t.logger.Error("codex_reply failed", "error", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
			IsError: true,
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}
