// Package logging masks credentials before they reach the logs.
package logging

import (
	"regexp"
)

// RedactedText replaces sensitive data.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style connection strings
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// api_key=..., key=... query parameters
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// OpenAI and Anthropic style secret keys that providers echo in error bodies
	providerKeyPattern = regexp.MustCompile(`sk-(ant-)?[A-Za-z0-9_-]{16,}`)

	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)
)

// SanitizeConnectionString removes the password from a Postgres or Redis
// connection string. Use it before logging any DSN.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllStringFunc(sanitized, maskURLPassword)
}

// maskURLPassword turns "://user:secret@" into "://user:[REDACTED]@".
func maskURLPassword(m string) string {
	for i := 3; i < len(m); i++ {
		if m[i] == ':' {
			return m[:i+1] + RedactedText + "@"
		}
	}
	return m
}

// SanitizeError returns err's message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString masks credentials in free text such as provider error bodies.
func SanitizeString(s string) string {
	sanitized := SanitizeConnectionString(s)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	return sanitized
}

// TruncateString truncates s to maxLen bytes and adds an ellipsis if needed.
// Used for logging client-entered text.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
