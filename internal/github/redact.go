package github

import "regexp"

const redactedToken = "[REDACTED_TOKEN]"

var (
	reInvisible = regexp.MustCompile("[\u200B\uFEFF\u202A-\u202E\u2066-\u2069]")

	reSecrets = []*regexp.Regexp{
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,255}\b`),
		regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,255}\b`),
		regexp.MustCompile(`\bsk-(?:proj-|svcacct-|admin-)?[A-Za-z0-9_-]{20,}`),
	}
)

// RedactSecrets censors GitHub and OpenAI credentials that a model may echo
// back from its environment.
func RedactSecrets(s string) string {
	for _, re := range reSecrets {
		s = re.ReplaceAllString(s, redactedToken)
	}
	return s
}

// SanitizeReply prepares model output for posting as a comment: zero-width
// spaces, byte order marks and bidi controls are dropped and credentials
// redacted. Joiners are kept so emoji and script sequences survive.
func SanitizeReply(s string) string {
	if s == "" {
		return s
	}
	return RedactSecrets(reInvisible.ReplaceAllString(s, ""))
}
