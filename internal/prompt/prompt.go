package prompt

import "strings"

// Ellipsis marks truncated text.
const Ellipsis = "…"

const (
	systemHeader = "[System]\n"
	userHeader   = "[User Request]\n"
	blockSep     = "\n\n"
)

// Payload is the assembled request in both transport shapes.
type Payload struct {
	// Combined is the single-string form for the Responses endpoint and the CLI.
	Combined string
	// System and User are the role-structured form for the Chat endpoint.
	System string
	User   string
}

// Compose joins an optional system instruction, an optional context block
// and the user request into a Payload.
func Compose(system, context, request string) Payload {
	user := userHeader + request
	if context != "" {
		user = context + blockSep + user
	}

	combined := user
	if system != "" {
		combined = systemHeader + system + blockSep + user
	}

	return Payload{
		Combined: combined,
		System:   system,
		User:     user,
	}
}

// Truncate shortens s to at most limit characters, replacing the tail with
// an ellipsis when it is cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	return string(runes[:limit-1]) + Ellipsis
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
