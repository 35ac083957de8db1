// Package redact strips credentials and personal data from error text
// before it is persisted or published. Error messages from AI providers,
// HTTP senders and database drivers end up in interaction and notification
// rows, dead-lettered jobs and job.failed events, all of which outlive the
// request that produced them.
package redact

import "regexp"

// Placeholders substituted for redacted values.
const (
	Placeholder           = "[REDACTED]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	KeyPlaceholder        = "[REDACTED_KEY]"
	JWTPlaceholder        = "[REDACTED_JWT]"
	EmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules run in order. Connection strings go before emails, since
// user:pass@host would otherwise read as an address.
var rules = []rule{
	{
		re:   regexp.MustCompile(`(?i)\b(postgres(?:ql)?|rediss?)://[^\s@/]+@`),
		repl: "$1://" + CredentialPlaceholder + "@",
	},
	{
		re:   regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{8,}`),
		repl: "Bearer " + KeyPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(api[_-]?key|key|access_token|token|secret|password|passwd|pwd)=[^&\s"']{3,}`),
		repl: "$1=" + Placeholder,
	},
	{
		re:   regexp.MustCompile(`(?i)"(api[_-]?key|token|secret|password)"\s*:\s*"[^"]*"`),
		repl: `"$1":"` + Placeholder + `"`,
	},
	{
		re:   regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		repl: JWTPlaceholder,
	},
	// OpenAI and Anthropic (sk-...), Google (AIza...) and SendGrid (SG.x.y) keys.
	{
		re:   regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_-]{16,}|AIza[0-9A-Za-z_-]{30,}|SG\.[A-Za-z0-9_-]{16,}\.[A-Za-z0-9_-]{16,})`),
		repl: KeyPlaceholder,
	},
	{
		re:   regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		repl: EmailPlaceholder,
	},
}

// String returns s with credentials, keys, tokens and email addresses
// replaced by placeholders.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// Error redacts err's message. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
