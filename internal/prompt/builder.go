// Package prompt assembles the model input from a trigger comment, issue
// metadata and recent thread comments.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cexll/codex-replier/internal/event"
	ghclient "github.com/cexll/codex-replier/internal/github"
)

// ThreadBodyLimit caps each thread comment body, in characters.
const ThreadBodyLimit = 1200

// CommentLister lists the conversation comments on an issue or PR.
type CommentLister interface {
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]ghclient.Comment, error)
}

// Options controls which context blocks are included and their size limits.
type Options struct {
	IncludeMetadata   bool
	IncludeThread     bool
	MaxContextChars   int
	MaxThreadComments int
	SystemPrompt      string
	Model             string
}

// Input is the per-event data a prompt is built from.
type Input struct {
	Event   *event.Event
	Address event.Address
	Request string
}

// Builder assembles model prompts from trigger events.
type Builder struct {
	opts     Options
	comments CommentLister
	logger   *slog.Logger
}

// NewBuilder creates a Builder. comments may be nil, which disables thread context.
func NewBuilder(opts Options, comments CommentLister, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{opts: opts, comments: comments, logger: logger}
}

// Build assembles the payload for in. Thread fetch failures degrade to no
// thread context.
func (b *Builder) Build(ctx context.Context, in Input) Payload {
	var blocks []string

	if b.opts.IncludeMetadata {
		if meta := b.metadataBlock(in); meta != "" {
			blocks = append(blocks, meta)
		}
	}

	if b.opts.IncludeThread {
		if thread := b.threadBlock(ctx, in); thread != "" {
			blocks = append(blocks, thread)
		}
	}

	contextText := strings.Join(blocks, blockSep)
	if b.opts.MaxContextChars > 0 {
		contextText = Truncate(contextText, b.opts.MaxContextChars)
	}

	return Compose(b.opts.SystemPrompt, contextText, in.Request)
}

func (b *Builder) metadataBlock(in Input) string {
	var lines []string

	if repo := in.Address.FullName(); repo != "" {
		lines = append(lines, "Repository: "+repo)
	}

	if in.Address.Number > 0 {
		kind := "Issue"
		if in.Event != nil && in.Event.Issue.IsPR() {
			kind = "PR"
		}
		line := fmt.Sprintf("%s #%d", kind, in.Address.Number)
		if in.Event != nil && in.Event.Issue.Title != "" {
			line += ": " + in.Event.Issue.Title
		}
		lines = append(lines, line)
	}

	if in.Event != nil && in.Event.Issue.HTMLURL != "" {
		lines = append(lines, "URL: "+in.Event.Issue.HTMLURL)
	}

	if b.opts.Model != "" {
		lines = append(lines, "Model: "+b.opts.Model)
	}

	if len(lines) == 0 {
		return ""
	}
	return "[Context]\n" + strings.Join(lines, "\n")
}

func (b *Builder) threadBlock(ctx context.Context, in Input) string {
	if b.comments == nil || !in.Address.Complete() {
		return ""
	}

	var triggerID int64
	if in.Event != nil {
		triggerID = in.Event.Comment.ID
	}

	comments := b.fetchThread(ctx, in.Address, triggerID)
	if len(comments) == 0 {
		return ""
	}

	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		body := Truncate(normalizeNewlines(c.Body), ThreadBodyLimit)
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Author, body))
	}
	return "[Recent Thread]\n" + strings.Join(lines, "\n")
}

// fetchThread returns up to MaxThreadComments of the most recent comments,
// oldest first, excluding the triggering comment.
func (b *Builder) fetchThread(ctx context.Context, addr event.Address, triggerID int64) []ghclient.Comment {
	if b.opts.MaxThreadComments <= 0 {
		return nil
	}

	all, err := b.comments.ListIssueComments(ctx, addr.Owner, addr.Repo, addr.Number)
	if err != nil {
		b.logger.Warn("Could not fetch thread context; continuing without it", "error", err)
		return nil
	}

	kept := make([]ghclient.Comment, 0, len(all))
	for _, c := range all {
		if triggerID != 0 && c.ID == triggerID {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})

	if len(kept) > b.opts.MaxThreadComments {
		kept = kept[len(kept)-b.opts.MaxThreadComments:]
	}
	return kept
}
