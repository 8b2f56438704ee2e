// Package trigger decides whether a comment event should be answered.
package trigger

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/cexll/codex-replier/internal/event"
)

// CreatedAction is the only event action that triggers a reply.
const CreatedAction = "created"

// Decision is the result of evaluating an event against the trigger prefix.
// When Skip is true, Reason explains why and Level is the severity to log it at.
type Decision struct {
	Request string
	Skip    bool
	Reason  string
	Level   slog.Level
}

// Evaluate applies the trigger checks in order, stopping at the first failure:
// action must be "created", the trimmed body must start with prefix, and
// the text after the prefix must be non-empty.
func Evaluate(ev *event.Event, prefix string) Decision {
	if ev.Action != CreatedAction {
		return skip(slog.LevelInfo, fmt.Sprintf("Event action '%s' not 'created'; skipping", ev.Action))
	}

	body := strings.TrimSpace(ev.Comment.Body)
	if !strings.HasPrefix(body, prefix) {
		return skip(slog.LevelInfo, fmt.Sprintf("Comment does not start with prefix '%s'; skipping", prefix))
	}

	request := strings.TrimLeftFunc(body[len(prefix):], unicode.IsSpace)
	if request == "" {
		return skip(slog.LevelWarn, "Empty prompt after prefix; nothing to do")
	}

	return Decision{Request: request}
}

func skip(level slog.Level, reason string) Decision {
	return Decision{Skip: true, Reason: reason, Level: level}
}
