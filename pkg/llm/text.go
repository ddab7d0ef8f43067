package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> blocks that reasoning models may emit.
var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes every <think> block and surrounding whitespace.
// Everything else is left untouched.
func StripThinking(response string) string {
	return strings.TrimSpace(thinkTagPattern.ReplaceAllString(response, ""))
}
