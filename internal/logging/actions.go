package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ActionsHandler is a slog.Handler that writes GitHub Actions workflow
// commands: debug -> ::debug::, info -> ::notice::, warn -> ::warning::,
// error -> ::error::.
type ActionsHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	title string
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewActionsHandler creates a handler that titles annotations with title.
func NewActionsHandler(w io.Writer, title string, level slog.Leveler) *ActionsHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ActionsHandler{
		mu:    &sync.Mutex{},
		w:     w,
		title: title,
		level: level,
	}
}

func (h *ActionsHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ActionsHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.group, a)
		return true
	})

	line := commandLine(r.Level, h.title, sb.String())

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *ActionsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *ActionsHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *ActionsHandler) startGroup(title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = fmt.Fprintf(h.w, "::group::%s\n", escapeData(title))
}

func (h *ActionsHandler) endGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.w, "::endgroup::\n")
}

func writeAttr(sb *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(sb, " %s=%v", key, a.Value.Any())
}

func commandLine(level slog.Level, title, msg string) string {
	data := escapeData(msg)
	switch {
	case level < slog.LevelInfo:
		return "::debug::" + data + "\n"
	case level < slog.LevelWarn:
		return fmt.Sprintf("::notice title=%s::%s\n", escapeProperty(title), data)
	case level < slog.LevelError:
		return fmt.Sprintf("::warning title=%s::%s\n", escapeProperty(title), data)
	default:
		return fmt.Sprintf("::error title=%s::%s\n", escapeProperty(title), data)
	}
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	s = strings.ReplaceAll(s, ",", "%2C")
	return s
}
