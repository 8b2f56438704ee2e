// Package logging provides slog loggers for local runs (tint) and for
// GitHub Actions workflow commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

const (
	// FormatActions renders records as GitHub Actions workflow commands.
	FormatActions = "actions"
	// FormatText renders colorized human-readable lines.
	FormatText = "text"
)

// ParseLevel converts a textual log level into a slog.Level.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveFormat picks the explicit format when set, otherwise workflow
// commands inside GitHub Actions and tinted text elsewhere.
func ResolveFormat(format string, inActions bool) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatActions:
		return FormatActions
	case FormatText:
		return FormatText
	}
	if inActions {
		return FormatActions
	}
	return FormatText
}

// NewLogger constructs a slog.Logger for the given format and level.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if format == FormatActions {
		return slog.New(NewActionsHandler(w, "Codex Replier", level))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type grouper interface {
	startGroup(title string)
	endGroup()
}

// Group opens a collapsible log group when the logger writes workflow
// commands. The returned func closes it.
func Group(logger *slog.Logger, title string) func() {
	if logger == nil {
		return func() {}
	}
	if g, ok := logger.Handler().(grouper); ok {
		g.startGroup(title)
		return g.endGroup
	}
	logger.Debug(title)
	return func() {}
}
