package apierror

import "regexp"

const maxClientMessageLength = 256

var (
	dsnPattern = regexp.MustCompile(`\b(?:postgres(?:ql)?|mysql|redis|rediss|mongodb|amqp)(?:\+\w+)?://\S+`)

	// Unix and Windows absolute paths with at least two segments.
	pathPattern = regexp.MustCompile(`(?:[A-Za-z]:\\|/)(?:[\w.\-]+[/\\]){1,}[\w.\-]+`)

	credentialPattern = regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api[_-]?key|credential|authorization)\s*[=:]\s*\S+`)

	sqlPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|alter|create|truncate)\b[^;]{0,300}`)
)

// Redact strips file-system paths, connection strings, credentials, and
// literal query text from s and bounds its length. Applied to every
// client-visible message regardless of code path.
func Redact(s string) string {
	s = dsnPattern.ReplaceAllString(s, "[redacted-dsn]")
	s = credentialPattern.ReplaceAllString(s, "$1=[redacted]")
	s = sqlPattern.ReplaceAllString(s, "[redacted-query]")
	s = pathPattern.ReplaceAllString(s, "[redacted-path]")

	if len(s) > maxClientMessageLength {
		s = s[:maxClientMessageLength-3] + "..."
	}
	return s
}
