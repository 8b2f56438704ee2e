package executor

import (
	"errors"

	"github.com/cexll/codex-replier/internal/event"
)

var (
	// ErrMissingOpenAIKey means OPENAI_API_KEY is not set.
	ErrMissingOpenAIKey = errors.New("missing OPENAI_API_KEY secret")
	// ErrMissingGitHubCredential means neither GITHUB_TOKEN nor App credentials are set.
	ErrMissingGitHubCredential = errors.New("missing GITHUB_TOKEN")
	// ErrUnresolvedAddress means the event lacks the owner, repository or number to post to.
	ErrUnresolvedAddress = errors.New("cannot resolve repository/issue context to post comment")
)

// ExitCode maps a run error to a process exit status. A missing event
// payload is a quiet no-op.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, event.ErrNoEvent) {
		return 0
	}
	return 1
}

// IsConfigError reports whether err is a missing-credential failure.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingOpenAIKey) || errors.Is(err, ErrMissingGitHubCredential)
}
